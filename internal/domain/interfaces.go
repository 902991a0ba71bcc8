package domain

import (
	"context"
	"time"
)

// UserRepo управляет владельцами дневников.
type UserRepo interface {
	UpsertBySubject(identity Identity) (User, bool, error)
	GetBySubject(subject string) (User, error)
	// ListActiveOwners возвращает пользователей, у которых есть хотя бы
	// одна запись, созданная в указанный календарный день.
	ListActiveOwners(day time.Time) ([]User, error)
	DeleteUserData(userID int64) error
}

// EntryRepo управляет записями дневника.
type EntryRepo interface {
	CreateEntry(entry Entry) (Entry, error)
	GetEntry(userID, entryID int64) (Entry, error)
	UpdateEntry(entry Entry) (Entry, error)
	ListEntries(userID int64, limit, offset int) ([]Entry, error)
	// ListEntriesSince возвращает записи с created_at >= since,
	// новые первыми.
	ListEntriesSince(userID int64, since time.Time) ([]Entry, error)
}

// QuoteRepo хранит цитаты дня. Дата строки назначается сервером БД.
type QuoteRepo interface {
	// GetQuoteForToday возвращает цитату за текущую дату сервера БД
	// или ErrNotFound.
	GetQuoteForToday(userID int64) (DailyQuote, error)
	// CreateQuoteForToday вставляет строку с quote_date по часам БД.
	// Нарушение уникального ключа транслируется в ErrAlreadyExists.
	CreateQuoteForToday(userID int64, content QuoteContent) error
}

// SummaryRepo хранит сводки.
type SummaryRepo interface {
	GetLatestSummary(userID int64) (DailySummary, error)
	GetSummaryForDate(userID int64, date time.Time) (DailySummary, error)
	// CreateSummary транслирует нарушение уникального ключа
	// (user_id, summary_date) в ErrAlreadyExists.
	CreateSummary(summary DailySummary) error
}

// Clock отдаёт текущую дату по часам сервера БД, а не процесса:
// клиент и БД могут жить в разных часовых поясах.
type Clock interface {
	CurrentDate() (time.Time, error)
}

// Classifier размечает текст записи эмоциями. Ошибка не фатальна:
// запись сохраняется без эмоций.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]EmotionScore, error)
}

// InsightProvider — внешний NLP-сервис генерации цитат и сводок.
type InsightProvider interface {
	GenerateQuote(ctx context.Context, entries []Entry) (QuoteContent, error)
	GenerateSummary(ctx context.Context, entries []Entry) (SummaryContent, error)
}

// IdentityVerifier проверяет bearer-токен у внешнего провайдера.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
