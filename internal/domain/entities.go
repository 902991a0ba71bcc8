package domain

import "time"

// User описывает владельца дневника. Subject — идентификатор
// из внешнего провайдера аутентификации, он неизменяем.
type User struct {
	ID            int64
	Subject       string
	Email         string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EmotionScore — одна эмоция записи с уверенностью классификатора в [0,1].
type EmotionScore struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Entry представляет запись дневника. Emotions может быть nil,
// если классификация не выполнялась или завершилась ошибкой.
type Entry struct {
	ID        int64
	UserID    int64
	Title     string
	Content   string
	Emotions  []EmotionScore
	Favorite  bool
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// DailyQuote — сгенерированная цитата дня. QuoteDate назначается
// сервером БД, на пару (UserID, QuoteDate) действует уникальный ключ.
type DailyQuote struct {
	ID          int64
	UserID      int64
	Title       string
	Quote       string
	Author      string
	Citation    string
	Explanation string
	QuoteDate   time.Time
	CreatedAt   time.Time
}

// DailySummary — сводка за скользящее 7-дневное окно.
// На пару (UserID, SummaryDate) действует уникальный ключ.
type DailySummary struct {
	ID              int64
	UserID          int64
	Summary         string
	KeyThemes       []string
	EmotionalTrends map[string]float64
	EntryCount      int
	PeriodStart     time.Time
	PeriodEnd       time.Time
	SummaryDate     time.Time
	CreatedAt       time.Time
}

// EmotionTrendBucket — счётчики категорий за один интервал 30-дневного
// окна. Бакеты не пересекаются и вычисляются заново при каждом запросе.
type EmotionTrendBucket struct {
	OffsetDays int `json:"offset_days"`
	Positive   int `json:"positive"`
	Negative   int `json:"negative"`
	Ambiguous  int `json:"ambiguous"`
}

// TopEmotion — позиция рейтинга эмоций за 30 дней.
type TopEmotion struct {
	Emotion string `json:"emotion"`
	Count   int    `json:"count"`
}

// QuoteContent — ответ NLP-провайдера на запрос цитаты.
type QuoteContent struct {
	Title       string
	Quote       string
	Author      string
	Citation    string
	Explanation string
}

// SummaryContent — ответ NLP-провайдера на запрос сводки.
type SummaryContent struct {
	Summary         string
	KeyThemes       []string
	EmotionalTrends map[string]float64
}

// Identity — результат проверки bearer-токена у провайдера.
type Identity struct {
	Subject       string `json:"subject"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}
