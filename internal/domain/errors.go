package domain

import "errors"

// ErrNotFound возвращается, когда запрошенная строка отсутствует.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists возвращается репозиторием при нарушении уникального
// ключа (owner, date). Это ожидаемая гонка, вызывающий перечитывает
// победившую строку.
var ErrAlreadyExists = errors.New("already exists")

// ErrEmptyContent возвращается при попытке создать запись без текста.
var ErrEmptyContent = errors.New("entry content is empty")

// ErrEmptyTitle возвращается при попытке создать запись без заголовка.
var ErrEmptyTitle = errors.New("entry title is empty")

// ErrNoQuote возвращается NLP-провайдером, если пригодной цитаты нет.
var ErrNoQuote = errors.New("no usable quote")
