package insights

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"journal-insights/internal/domain"
	"journal-insights/internal/infra/metrics"
)

// Сентинелы — успешные ответы "показывать пока нечего", не ошибки.
const (
	MsgStartJournaling = "Start journaling to receive your daily inspirational quote!"
	MsgQuoteNotReady   = "Your daily quote is not ready yet, please try again later."
	MsgNoSummaries     = "No summaries available yet. Write a few journal entries to get your first one!"
	MsgNoRecentEntries = "No journal entries found in the last 30 days."
)

// QuoteResult — цитата дня либо сентинел-сообщение.
type QuoteResult struct {
	Quote   *domain.DailyQuote
	Message string
}

// SummaryResult — сводка либо сентинел-сообщение.
type SummaryResult struct {
	Summary *domain.DailySummary
	Message string
}

// TopEmotionsResult — рейтинг эмоций либо сентинел-сообщение.
type TopEmotionsResult struct {
	Emotions []domain.TopEmotion
	Message  string
}

// Service реализует построение инсайтов поверх записей дневника.
type Service struct {
	entries   domain.EntryRepo
	quotes    domain.QuoteRepo
	summaries domain.SummaryRepo
	clock     domain.Clock
	provider  domain.InsightProvider
	log       zerolog.Logger
}

// NewService создаёт сервис инсайтов.
func NewService(entries domain.EntryRepo, quotes domain.QuoteRepo, summaries domain.SummaryRepo, clock domain.Clock, provider domain.InsightProvider, logger zerolog.Logger) *Service {
	return &Service{entries: entries, quotes: quotes, summaries: summaries, clock: clock, provider: provider, log: logger}
}

// DailyQuote возвращает цитату дня, генерируя её при первом запросе.
// Повторные запросы в течение дня отдаются из кэша без обращения к NLP.
func (s *Service) DailyQuote(ctx context.Context, userID int64) (QuoteResult, error) {
	metrics.IncInsightRequest("quote")

	quote, err := s.quotes.GetQuoteForToday(userID)
	if err == nil {
		metrics.IncInsightCacheHit("quote")
		return QuoteResult{Quote: &quote}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return QuoteResult{}, fmt.Errorf("чтение цитаты дня: %w", err)
	}

	entries, err := s.windowEntries(userID, domain.SummaryWindowDays)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("записи за окно цитаты: %w", err)
	}
	if len(entries) == 0 {
		return QuoteResult{Message: MsgStartJournaling}, nil
	}

	start := time.Now()
	content, err := s.provider.GenerateQuote(ctx, entries)
	metrics.ObserveInsightBuild("quote", start, err)
	if err != nil || strings.TrimSpace(content.Quote) == "" {
		// Мягкий сбой генерации не кэшируется: следующий запрос
		// повторит попытку.
		if err != nil && !errors.Is(err, domain.ErrNoQuote) {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("insights: генерация цитаты не удалась")
		}
		return QuoteResult{Message: MsgQuoteNotReady}, nil
	}

	if err := s.quotes.CreateQuoteForToday(userID, content); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return QuoteResult{}, fmt.Errorf("сохранение цитаты дня: %w", err)
	}

	// Перечитываем строку после вставки: дата назначается сервером БД,
	// и при конфликте уникального ключа так возвращается победившая строка.
	quote, err = s.quotes.GetQuoteForToday(userID)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("перечитывание цитаты дня: %w", err)
	}
	return QuoteResult{Quote: &quote}, nil
}

// DailySummary возвращает сводку за сегодня, при необходимости генерируя
// новую. При сбое регенерации возвращается последняя устаревшая сводка.
func (s *Service) DailySummary(ctx context.Context, userID int64) (SummaryResult, error) {
	metrics.IncInsightRequest("summary")

	today, err := s.clock.CurrentDate()
	if err != nil {
		return SummaryResult{}, fmt.Errorf("дата сервера БД: %w", err)
	}

	latest, err := s.summaries.GetLatestSummary(userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.firstSummary(ctx, userID, today)
	case err != nil:
		return SummaryResult{}, fmt.Errorf("чтение последней сводки: %w", err)
	}

	if sameDate(latest.SummaryDate, today) {
		metrics.IncInsightCacheHit("summary")
		return SummaryResult{Summary: &latest}, nil
	}

	entries, err := s.windowEntries(userID, domain.SummaryWindowDays)
	if err != nil {
		return SummaryResult{}, fmt.Errorf("записи за окно сводки: %w", err)
	}
	if len(entries) == 0 {
		// Окно опустело — отдаём устаревшую сводку, это не ошибка.
		return SummaryResult{Summary: &latest}, nil
	}

	if err := s.generate(ctx, userID, today, entries); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("insights: регенерация сводки не удалась")
	}

	fresh, err := s.summaries.GetSummaryForDate(userID, today)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return SummaryResult{Summary: &latest}, nil
		}
		return SummaryResult{}, fmt.Errorf("чтение свежей сводки: %w", err)
	}
	return SummaryResult{Summary: &fresh}, nil
}

func (s *Service) firstSummary(ctx context.Context, userID int64, today time.Time) (SummaryResult, error) {
	entries, err := s.windowEntries(userID, domain.SummaryWindowDays)
	if err != nil {
		return SummaryResult{}, fmt.Errorf("записи за окно сводки: %w", err)
	}
	if len(entries) == 0 {
		return SummaryResult{Message: MsgNoSummaries}, nil
	}
	if err := s.generate(ctx, userID, today, entries); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("insights: первая сводка не удалась")
		return SummaryResult{Message: MsgNoSummaries}, nil
	}
	fresh, err := s.summaries.GetSummaryForDate(userID, today)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return SummaryResult{Message: MsgNoSummaries}, nil
		}
		return SummaryResult{}, fmt.Errorf("чтение свежей сводки: %w", err)
	}
	return SummaryResult{Summary: &fresh}, nil
}

// GenerateSummaryForToday — маршрут планировщика: генерирует сводку за
// сегодня, если её ещё нет и окно не пустое. Идемпотентен.
func (s *Service) GenerateSummaryForToday(ctx context.Context, userID int64) error {
	today, err := s.clock.CurrentDate()
	if err != nil {
		return fmt.Errorf("дата сервера БД: %w", err)
	}
	if _, err := s.summaries.GetSummaryForDate(userID, today); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("проверка сводки: %w", err)
	}
	entries, err := s.windowEntries(userID, domain.SummaryWindowDays)
	if err != nil {
		return fmt.Errorf("записи за окно сводки: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	return s.generate(ctx, userID, today, entries)
}

func (s *Service) generate(ctx context.Context, userID int64, today time.Time, entries []domain.Entry) error {
	start := time.Now()
	content, err := s.provider.GenerateSummary(ctx, entries)
	metrics.ObserveInsightBuild("summary", start, err)
	if err != nil {
		return fmt.Errorf("генерация сводки: %w", err)
	}
	summary := domain.DailySummary{
		UserID:          userID,
		Summary:         content.Summary,
		KeyThemes:       content.KeyThemes,
		EmotionalTrends: content.EmotionalTrends,
		EntryCount:      len(entries),
		PeriodStart:     today.AddDate(0, 0, -domain.SummaryWindowDays),
		PeriodEnd:       today.AddDate(0, 0, -1),
		SummaryDate:     today,
	}
	if err := s.summaries.CreateSummary(summary); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Параллельный запрос успел первым, его строка и есть ответ.
			return nil
		}
		return fmt.Errorf("сохранение сводки: %w", err)
	}
	return nil
}

// EmotionTrends раскладывает эмоции записей за 30 дней по семи смежным
// бакетам. Результат никогда не кэшируется и не бывает ошибкой при
// пустом окне: возвращаются нулевые бакеты.
func (s *Service) EmotionTrends(userID int64) ([]domain.EmotionTrendBucket, error) {
	metrics.IncInsightRequest("emotion_trends")

	now := time.Now().UTC()
	entries, err := s.entries.ListEntriesSince(userID, now.AddDate(0, 0, -domain.TrendWindowDays))
	if err != nil {
		return nil, fmt.Errorf("записи за окно трендов: %w", err)
	}
	return bucketEmotions(entries, now), nil
}

// bucketEmotions распределяет записи по полуинтервалам (now-k, now-k_prev].
// Каждая пара (запись, эмоция) даёт ровно один инкремент.
func bucketEmotions(entries []domain.Entry, now time.Time) []domain.EmotionTrendBucket {
	buckets := make([]domain.EmotionTrendBucket, len(domain.TrendBucketOffsets))
	for i, offset := range domain.TrendBucketOffsets {
		buckets[i] = domain.EmotionTrendBucket{OffsetDays: offset}
	}
	for _, entry := range entries {
		idx := bucketIndex(entry.CreatedAt, now)
		if idx < 0 {
			continue
		}
		for _, score := range entry.Emotions {
			switch domain.CategorizeEmotion(score.Emotion) {
			case domain.EmotionPositive:
				buckets[idx].Positive++
			case domain.EmotionNegative:
				buckets[idx].Negative++
			default:
				buckets[idx].Ambiguous++
			}
		}
	}
	return buckets
}

func bucketIndex(createdAt, now time.Time) int {
	prev := 0
	for i, offset := range domain.TrendBucketOffsets {
		lower := now.AddDate(0, 0, -offset)
		upper := now.AddDate(0, 0, -prev)
		if createdAt.After(lower) && !createdAt.After(upper) {
			return i
		}
		prev = offset
	}
	return -1
}

// TopEmotions возвращает до пяти самых частых эмоций за 30 дней.
func (s *Service) TopEmotions(userID int64) (TopEmotionsResult, error) {
	metrics.IncInsightRequest("top_emotions")

	since := time.Now().UTC().AddDate(0, 0, -domain.TrendWindowDays)
	entries, err := s.entries.ListEntriesSince(userID, since)
	if err != nil {
		return TopEmotionsResult{}, fmt.Errorf("записи за окно рейтинга: %w", err)
	}
	if len(entries) == 0 {
		return TopEmotionsResult{Message: MsgNoRecentEntries}, nil
	}

	counts := make(map[string]int)
	for _, entry := range entries {
		for _, score := range entry.Emotions {
			label := strings.ToLower(strings.TrimSpace(score.Emotion))
			if label == "" {
				continue
			}
			counts[label]++
		}
	}
	if len(counts) == 0 {
		return TopEmotionsResult{Message: MsgNoRecentEntries}, nil
	}

	ranked := make([]domain.TopEmotion, 0, len(counts))
	for emotion, count := range counts {
		ranked = append(ranked, domain.TopEmotion{Emotion: emotion, Count: count})
	}
	// Вторичный ключ лексикографический, чтобы порядок был устойчив.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Emotion < ranked[j].Emotion
	})
	if len(ranked) > domain.TopEmotionsLimit {
		ranked = ranked[:domain.TopEmotionsLimit]
	}
	return TopEmotionsResult{Emotions: ranked}, nil
}

func (s *Service) windowEntries(userID int64, days int) ([]domain.Entry, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	return s.entries.ListEntriesSince(userID, since)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
