package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"journal-insights/internal/domain"
)

const dateKey = "2006-01-02"

type stubEntries struct {
	entries []domain.Entry
}

func (s *stubEntries) CreateEntry(e domain.Entry) (domain.Entry, error) { return e, nil }
func (s *stubEntries) GetEntry(int64, int64) (domain.Entry, error)      { return domain.Entry{}, nil }
func (s *stubEntries) UpdateEntry(e domain.Entry) (domain.Entry, error) { return e, nil }
func (s *stubEntries) ListEntries(int64, int, int) ([]domain.Entry, error) {
	return s.entries, nil
}
func (s *stubEntries) ListEntriesSince(_ int64, since time.Time) ([]domain.Entry, error) {
	var out []domain.Entry
	for _, e := range s.entries {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubQuotes struct {
	quote       domain.DailyQuote
	exists      bool
	createErr   error
	createCalls int
}

func (s *stubQuotes) GetQuoteForToday(int64) (domain.DailyQuote, error) {
	if !s.exists {
		return domain.DailyQuote{}, domain.ErrNotFound
	}
	return s.quote, nil
}

func (s *stubQuotes) CreateQuoteForToday(userID int64, content domain.QuoteContent) error {
	s.createCalls++
	if s.createErr != nil {
		if errors.Is(s.createErr, domain.ErrAlreadyExists) {
			s.exists = true
		}
		return s.createErr
	}
	s.quote = domain.DailyQuote{ID: 1, UserID: userID, Title: content.Title, Quote: content.Quote, Explanation: content.Explanation}
	s.exists = true
	return nil
}

type stubSummaries struct {
	latest    *domain.DailySummary
	byDate    map[string]domain.DailySummary
	createErr error
	created   []domain.DailySummary
}

func (s *stubSummaries) GetLatestSummary(int64) (domain.DailySummary, error) {
	if s.latest == nil {
		return domain.DailySummary{}, domain.ErrNotFound
	}
	return *s.latest, nil
}

func (s *stubSummaries) GetSummaryForDate(_ int64, date time.Time) (domain.DailySummary, error) {
	if sum, ok := s.byDate[date.Format(dateKey)]; ok {
		return sum, nil
	}
	return domain.DailySummary{}, domain.ErrNotFound
}

func (s *stubSummaries) CreateSummary(summary domain.DailySummary) error {
	if s.createErr != nil {
		return s.createErr
	}
	if s.byDate == nil {
		s.byDate = make(map[string]domain.DailySummary)
	}
	s.created = append(s.created, summary)
	s.byDate[summary.SummaryDate.Format(dateKey)] = summary
	return nil
}

type stubClock struct {
	today time.Time
}

func (s *stubClock) CurrentDate() (time.Time, error) { return s.today, nil }

type stubProvider struct {
	quote        domain.QuoteContent
	quoteErr     error
	summary      domain.SummaryContent
	summaryErr   error
	quoteCalls   int
	summaryCalls int
}

func (s *stubProvider) GenerateQuote(context.Context, []domain.Entry) (domain.QuoteContent, error) {
	s.quoteCalls++
	return s.quote, s.quoteErr
}

func (s *stubProvider) GenerateSummary(context.Context, []domain.Entry) (domain.SummaryContent, error) {
	s.summaryCalls++
	return s.summary, s.summaryErr
}

func today() time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func entryAgo(days int, emotions ...string) domain.Entry {
	scores := make([]domain.EmotionScore, 0, len(emotions))
	for _, e := range emotions {
		scores = append(scores, domain.EmotionScore{Emotion: e, Confidence: 0.8})
	}
	return domain.Entry{
		ID:        int64(days + 1),
		UserID:    1,
		Title:     "запись",
		Content:   "текст",
		Emotions:  scores,
		CreatedAt: time.Now().UTC().AddDate(0, 0, -days).Add(-time.Hour),
	}
}

func newService(entries *stubEntries, quotes *stubQuotes, summaries *stubSummaries, provider *stubProvider) *Service {
	return NewService(entries, quotes, summaries, &stubClock{today: today()}, provider, zerolog.Nop())
}

func TestDailyQuoteCacheHit(t *testing.T) {
	quotes := &stubQuotes{quote: domain.DailyQuote{ID: 7, Quote: "cached"}, exists: true}
	provider := &stubProvider{}
	service := newService(&stubEntries{}, quotes, &stubSummaries{}, provider)

	res, err := service.DailyQuote(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Quote == nil || res.Quote.Quote != "cached" {
		t.Fatalf("ожидали цитату из кэша")
	}
	if provider.quoteCalls != 0 {
		t.Fatalf("при кэш-хите NLP вызываться не должен")
	}
}

func TestDailyQuoteGeneratedOnce(t *testing.T) {
	entries := &stubEntries{entries: []domain.Entry{entryAgo(1, "joy")}}
	quotes := &stubQuotes{}
	provider := &stubProvider{quote: domain.QuoteContent{Title: "t", Quote: "q", Explanation: "e"}}
	service := newService(entries, quotes, &stubSummaries{}, provider)

	first, err := service.DailyQuote(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := service.DailyQuote(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if first.Quote == nil || second.Quote == nil {
		t.Fatalf("обе попытки должны вернуть цитату")
	}
	if *first.Quote != *second.Quote {
		t.Fatalf("повторный запрос должен вернуть идентичную строку")
	}
	if provider.quoteCalls != 1 || quotes.createCalls != 1 {
		t.Fatalf("ожидали ровно одну генерацию и одну вставку, получили %d/%d", provider.quoteCalls, quotes.createCalls)
	}
}

func TestDailyQuoteEmptyWindow(t *testing.T) {
	quotes := &stubQuotes{}
	provider := &stubProvider{}
	service := newService(&stubEntries{}, quotes, &stubSummaries{}, provider)

	res, err := service.DailyQuote(context.Background(), 1)
	if err != nil {
		t.Fatalf("пустое окно не должно быть ошибкой: %v", err)
	}
	if res.Message != MsgStartJournaling {
		t.Fatalf("ожидали сентинел, получили %q", res.Message)
	}
	if provider.quoteCalls != 0 || quotes.createCalls != 0 {
		t.Fatalf("при пустом окне не должно быть ни генерации, ни записи")
	}
}

func TestDailyQuoteGenerationFailureNotCached(t *testing.T) {
	entries := &stubEntries{entries: []domain.Entry{entryAgo(2, "joy")}}
	quotes := &stubQuotes{}
	provider := &stubProvider{quoteErr: errors.New("nlp timeout")}
	service := newService(entries, quotes, &stubSummaries{}, provider)

	res, err := service.DailyQuote(context.Background(), 1)
	if err != nil {
		t.Fatalf("сбой генерации должен быть мягким: %v", err)
	}
	if res.Message != MsgQuoteNotReady {
		t.Fatalf("ожидали сентинел, получили %q", res.Message)
	}
	if quotes.createCalls != 0 {
		t.Fatalf("сбой генерации кэшироваться не должен")
	}
}

func TestDailyQuoteUniqueConflictReturnsWinner(t *testing.T) {
	entries := &stubEntries{entries: []domain.Entry{entryAgo(1, "joy")}}
	quotes := &stubQuotes{quote: domain.DailyQuote{ID: 9, Quote: "winner"}, createErr: domain.ErrAlreadyExists}
	provider := &stubProvider{quote: domain.QuoteContent{Quote: "loser"}}
	service := newService(entries, quotes, &stubSummaries{}, provider)

	res, err := service.DailyQuote(context.Background(), 1)
	if err != nil {
		t.Fatalf("конфликт уникальности не должен быть ошибкой: %v", err)
	}
	if res.Quote == nil || res.Quote.Quote != "winner" {
		t.Fatalf("ожидали строку победившей вставки")
	}
}

func TestDailySummaryCacheHitForToday(t *testing.T) {
	current := domain.DailySummary{ID: 3, SummaryDate: today(), Summary: "сегодня"}
	summaries := &stubSummaries{latest: &current}
	provider := &stubProvider{}
	service := newService(&stubEntries{}, &stubQuotes{}, summaries, provider)

	res, err := service.DailySummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Summary == nil || res.Summary.ID != 3 {
		t.Fatalf("ожидали сегодняшнюю сводку без регенерации")
	}
	if provider.summaryCalls != 0 {
		t.Fatalf("свежая сводка не должна перегенерироваться")
	}
}

func TestDailySummaryStaleFallbackOnEmptyWindow(t *testing.T) {
	stale := domain.DailySummary{ID: 5, SummaryDate: today().AddDate(0, 0, -3), Summary: "старая"}
	summaries := &stubSummaries{latest: &stale}
	service := newService(&stubEntries{}, &stubQuotes{}, summaries, &stubProvider{})

	res, err := service.DailySummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("пустое окно не должно быть ошибкой: %v", err)
	}
	if res.Summary == nil || res.Summary.ID != 5 || res.Summary.Summary != "старая" {
		t.Fatalf("ожидали устаревшую сводку без изменений")
	}
}

func TestDailySummaryStaleFallbackOnGenerationFailure(t *testing.T) {
	stale := domain.DailySummary{ID: 5, SummaryDate: today().AddDate(0, 0, -1), Summary: "старая"}
	entries := &stubEntries{entries: []domain.Entry{entryAgo(1, "joy")}}
	summaries := &stubSummaries{latest: &stale}
	provider := &stubProvider{summaryErr: errors.New("nlp down")}
	service := newService(entries, &stubQuotes{}, summaries, provider)

	res, err := service.DailySummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("сбой регенерации должен быть мягким: %v", err)
	}
	if res.Summary == nil || res.Summary.ID != 5 {
		t.Fatalf("ожидали откат к устаревшей сводке")
	}
}

func TestDailySummaryRegeneratesForToday(t *testing.T) {
	stale := domain.DailySummary{ID: 5, SummaryDate: today().AddDate(0, 0, -1)}
	entries := &stubEntries{entries: []domain.Entry{entryAgo(1, "joy"), entryAgo(2, "calm")}}
	summaries := &stubSummaries{latest: &stale}
	provider := &stubProvider{summary: domain.SummaryContent{Summary: "новая", KeyThemes: []string{"рост"}}}
	service := newService(entries, &stubQuotes{}, summaries, provider)

	res, err := service.DailySummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Summary == nil || res.Summary.Summary != "новая" {
		t.Fatalf("ожидали свежую сводку")
	}
	if len(summaries.created) != 1 {
		t.Fatalf("ожидали одну вставку сводки")
	}
	created := summaries.created[0]
	if created.EntryCount != 2 {
		t.Fatalf("entry_count должен равняться числу записей окна, получили %d", created.EntryCount)
	}
	if !created.SummaryDate.Equal(today()) {
		t.Fatalf("summary_date должен быть сегодняшним")
	}
	if !created.PeriodStart.Equal(today().AddDate(0, 0, -7)) || !created.PeriodEnd.Equal(today().AddDate(0, 0, -1)) {
		t.Fatalf("границы окна анализа неверны: %v..%v", created.PeriodStart, created.PeriodEnd)
	}
}

func TestDailySummaryNoEntriesSentinel(t *testing.T) {
	service := newService(&stubEntries{}, &stubQuotes{}, &stubSummaries{}, &stubProvider{})

	res, err := service.DailySummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("новый пользователь не должен получать ошибку: %v", err)
	}
	if res.Message != MsgNoSummaries {
		t.Fatalf("ожидали сентинел, получили %q", res.Message)
	}
}

func TestGenerateSummaryForTodayIdempotent(t *testing.T) {
	existing := domain.DailySummary{ID: 1, SummaryDate: today()}
	summaries := &stubSummaries{byDate: map[string]domain.DailySummary{today().Format(dateKey): existing}}
	provider := &stubProvider{}
	entries := &stubEntries{entries: []domain.Entry{entryAgo(1, "joy")}}
	service := newService(entries, &stubQuotes{}, summaries, provider)

	if err := service.GenerateSummaryForToday(context.Background(), 1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if provider.summaryCalls != 0 {
		t.Fatalf("при существующей сводке генерация должна быть no-op")
	}
}

func TestEmotionTrendsBucketPlacement(t *testing.T) {
	entries := &stubEntries{entries: []domain.Entry{
		entryAgo(0, "joy"),
		entryAgo(3, "anger"),
		entryAgo(7, "surprise"),
		entryAgo(12, "gratitude"),
	}}
	service := newService(entries, &stubQuotes{}, &stubSummaries{}, &stubProvider{})

	buckets, err := service.EmotionTrends(1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(buckets) != 7 {
		t.Fatalf("ожидали 7 бакетов, получили %d", len(buckets))
	}
	byOffset := make(map[int]domain.EmotionTrendBucket)
	for _, b := range buckets {
		byOffset[b.OffsetDays] = b
	}
	if byOffset[1].Positive != 1 {
		t.Fatalf("запись нулевого дня должна попасть в бакет 1")
	}
	if byOffset[5].Negative != 1 {
		t.Fatalf("запись трёхдневной давности должна попасть в бакет 5")
	}
	if byOffset[10].Ambiguous != 1 {
		t.Fatalf("запись семидневной давности должна попасть в бакет 10")
	}
	if byOffset[15].Positive != 1 {
		t.Fatalf("запись 12-дневной давности должна попасть в бакет 15")
	}
	for _, offset := range []int{20, 25, 30} {
		b := byOffset[offset]
		if b.Positive != 0 || b.Negative != 0 || b.Ambiguous != 0 {
			t.Fatalf("бакет %d должен быть нулевым", offset)
		}
	}
}

func TestEmotionTrendsCountsEveryEmotionOnce(t *testing.T) {
	entries := &stubEntries{entries: []domain.Entry{entryAgo(0, "gratitude", "joy")}}
	service := newService(entries, &stubQuotes{}, &stubSummaries{}, &stubProvider{})

	buckets, err := service.EmotionTrends(1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if buckets[0].Positive != 2 || buckets[0].Negative != 0 || buckets[0].Ambiguous != 0 {
		t.Fatalf("ожидали positive=2 в первом бакете, получили %+v", buckets[0])
	}
}

func TestEmotionTrendsEmptyWindowReturnsZeroBuckets(t *testing.T) {
	service := newService(&stubEntries{}, &stubQuotes{}, &stubSummaries{}, &stubProvider{})

	buckets, err := service.EmotionTrends(1)
	if err != nil {
		t.Fatalf("отсутствие данных не должно быть ошибкой: %v", err)
	}
	if len(buckets) != 7 {
		t.Fatalf("все 7 бакетов должны возвращаться всегда")
	}
	for _, b := range buckets {
		if b.Positive != 0 || b.Negative != 0 || b.Ambiguous != 0 {
			t.Fatalf("ожидали нулевые бакеты")
		}
	}
}

func TestTopEmotionsOrdering(t *testing.T) {
	var list []domain.Entry
	add := func(emotion string, n int) {
		for i := 0; i < n; i++ {
			list = append(list, entryAgo(i%5, emotion))
		}
	}
	add("joy", 5)
	add("fear", 3)
	add("calm", 3)
	add("pride", 1)
	service := newService(&stubEntries{entries: list}, &stubQuotes{}, &stubSummaries{}, &stubProvider{})

	res, err := service.TopEmotions(1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(res.Emotions) != 4 {
		t.Fatalf("рейтинг не дополняется до пяти: ожидали 4, получили %d", len(res.Emotions))
	}
	if res.Emotions[0].Emotion != "joy" || res.Emotions[0].Count != 5 {
		t.Fatalf("joy должен быть первым")
	}
	for i := 1; i < len(res.Emotions); i++ {
		if res.Emotions[i].Count > res.Emotions[i-1].Count {
			t.Fatalf("счётчики должны не возрастать")
		}
	}
	if res.Emotions[1].Emotion != "calm" || res.Emotions[2].Emotion != "fear" {
		t.Fatalf("при равных счётчиках порядок лексикографический")
	}
}

func TestTopEmotionsTruncatesToFive(t *testing.T) {
	var list []domain.Entry
	for i, emotion := range []string{"joy", "fear", "calm", "pride", "hope", "anger"} {
		for n := 0; n <= i; n++ {
			list = append(list, entryAgo(0, emotion))
		}
	}
	service := newService(&stubEntries{entries: list}, &stubQuotes{}, &stubSummaries{}, &stubProvider{})

	res, err := service.TopEmotions(1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(res.Emotions) != 5 {
		t.Fatalf("ожидали усечение до 5, получили %d", len(res.Emotions))
	}
}

func TestTopEmotionsEmptyWindowSentinel(t *testing.T) {
	service := newService(&stubEntries{}, &stubQuotes{}, &stubSummaries{}, &stubProvider{})

	res, err := service.TopEmotions(1)
	if err != nil {
		t.Fatalf("пустое окно не должно быть ошибкой: %v", err)
	}
	if res.Message != MsgNoRecentEntries {
		t.Fatalf("ожидали сентинел, получили %q", res.Message)
	}
	if len(res.Emotions) != 0 {
		t.Fatalf("при сентинеле список должен быть пустым")
	}
}
