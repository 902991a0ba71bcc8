package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"journal-insights/internal/domain"
	"journal-insights/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo         = (*Postgres)(nil)
	_ domain.EntryRepo        = (*Postgres)(nil)
	_ domain.QuoteRepo        = (*Postgres)(nil)
	_ domain.SummaryRepo      = (*Postgres)(nil)
	_ domain.Clock            = (*Postgres)(nil)
	_ domain.ScheduleTaskRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CurrentDate возвращает текущую дату по часам сервера БД. Ключи кэша
// считаются от неё, а не от часов процесса или клиента.
func (p *Postgres) CurrentDate() (time.Time, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var date time.Time
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT CURRENT_DATE`).Scan(&date)
	metrics.ObserveNetworkRequest("postgres", "current_date", "", start, err)
	return date, err
}

// UpsertBySubject реализует domain.UserRepo.
func (p *Postgres) UpsertBySubject(identity domain.Identity) (domain.User, bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		user    domain.User
		created bool
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (subject, email, email_verified)
VALUES ($1, $2, $3)
ON CONFLICT (subject) DO UPDATE SET email = EXCLUDED.email, email_verified = EXCLUDED.email_verified, updated_at = now()
RETURNING id, subject, email, email_verified, created_at, updated_at, (xmax = 0) AS inserted
`, identity.Subject, identity.Email, identity.EmailVerified).Scan(&user.ID, &user.Subject, &user.Email, &user.EmailVerified, &user.CreatedAt, &user.UpdatedAt, &created)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	if err != nil {
		return domain.User{}, false, err
	}
	return user, created, nil
}

// GetBySubject возвращает пользователя по идентификатору провайдера.
func (p *Postgres) GetBySubject(subject string) (domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, subject, email, email_verified, created_at, updated_at
FROM users WHERE subject = $1
`, subject).Scan(&user.ID, &user.Subject, &user.Email, &user.EmailVerified, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_get_by_subject", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	return user, err
}

// ListActiveOwners возвращает пользователей с записями за указанный день.
func (p *Postgres) ListActiveOwners(day time.Time) ([]domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT u.id, u.subject, u.email, u.email_verified, u.created_at, u.updated_at
FROM users u
JOIN journal_entries e ON e.user_id = u.id
WHERE e.created_at >= $1 AND e.created_at < $1 + INTERVAL '1 day'
`, day)
	metrics.ObserveNetworkRequest("postgres", "users_list_active", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Subject, &u.Email, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUserData удаляет пользователя. Записи, цитаты и сводки
// удаляются каскадом по внешним ключам.
func (p *Postgres) DeleteUserData(userID int64) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	metrics.ObserveNetworkRequest("postgres", "users_delete", "users", start, err)
	return err
}

// CreateEntry сохраняет запись дневника.
func (p *Postgres) CreateEntry(entry domain.Entry) (domain.Entry, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	emotions, err := marshalEmotions(entry.Emotions)
	if err != nil {
		return domain.Entry{}, err
	}
	start := time.Now()
	err = p.pool.QueryRow(ctx, `
INSERT INTO journal_entries (user_id, title, content, emotions, favorite)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at
`, entry.UserID, entry.Title, entry.Content, emotions, entry.Favorite).Scan(&entry.ID, &entry.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "journal_entries_insert", "journal_entries", start, err)
	if err != nil {
		return domain.Entry{}, err
	}
	return entry, nil
}

// GetEntry возвращает запись владельца.
func (p *Postgres) GetEntry(userID, entryID int64) (domain.Entry, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, user_id, title, content, emotions, favorite, created_at, updated_at
FROM journal_entries WHERE user_id = $1 AND id = $2
`, userID, entryID)
	entry, err := scanEntry(row)
	metrics.ObserveNetworkRequest("postgres", "journal_entries_get", "journal_entries", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entry{}, domain.ErrNotFound
	}
	return entry, err
}

// UpdateEntry обновляет заголовок, текст и эмоции записи.
func (p *Postgres) UpdateEntry(entry domain.Entry) (domain.Entry, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	emotions, err := marshalEmotions(entry.Emotions)
	if err != nil {
		return domain.Entry{}, err
	}
	var updatedAt time.Time
	start := time.Now()
	err = p.pool.QueryRow(ctx, `
UPDATE journal_entries
SET title = $3, content = $4, emotions = $5, favorite = $6, updated_at = now()
WHERE user_id = $1 AND id = $2
RETURNING updated_at
`, entry.UserID, entry.ID, entry.Title, entry.Content, emotions, entry.Favorite).Scan(&updatedAt)
	metrics.ObserveNetworkRequest("postgres", "journal_entries_update", "journal_entries", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Entry{}, err
	}
	entry.UpdatedAt = &updatedAt
	return entry, nil
}

// ListEntries возвращает страницу записей, новые первыми.
func (p *Postgres) ListEntries(userID int64, limit, offset int) ([]domain.Entry, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, title, content, emotions, favorite, created_at, updated_at
FROM journal_entries WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	metrics.ObserveNetworkRequest("postgres", "journal_entries_list", "journal_entries", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListEntriesSince возвращает записи с created_at >= since.
func (p *Postgres) ListEntriesSince(userID int64, since time.Time) ([]domain.Entry, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, title, content, emotions, favorite, created_at, updated_at
FROM journal_entries WHERE user_id = $1 AND created_at >= $2
ORDER BY created_at DESC
`, userID, since)
	metrics.ObserveNetworkRequest("postgres", "journal_entries_list_since", "journal_entries", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// GetQuoteForToday возвращает цитату за текущую дату сервера БД.
func (p *Postgres) GetQuoteForToday(userID int64) (domain.DailyQuote, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		quote    domain.DailyQuote
		author   sql.NullString
		citation sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, user_id, title, quote, author, citation, explanation, quote_date, created_at
FROM daily_quotes WHERE user_id = $1 AND quote_date = CURRENT_DATE
`, userID).Scan(&quote.ID, &quote.UserID, &quote.Title, &quote.Quote, &author, &citation, &quote.Explanation, &quote.QuoteDate, &quote.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "daily_quotes_get_today", "daily_quotes", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailyQuote{}, domain.ErrNotFound
	}
	if author.Valid {
		quote.Author = author.String
	}
	if citation.Valid {
		quote.Citation = citation.String
	}
	return quote, err
}

// CreateQuoteForToday вставляет цитату; quote_date назначает сервер БД.
// Гонка двух запросов разрешается уникальным ключом (user_id, quote_date):
// проигравший получает ErrAlreadyExists и перечитывает победившую строку.
func (p *Postgres) CreateQuoteForToday(userID int64, content domain.QuoteContent) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO daily_quotes (user_id, title, quote, author, citation, explanation)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
`, userID, content.Title, content.Quote, content.Author, content.Citation, content.Explanation)
	metrics.ObserveNetworkRequest("postgres", "daily_quotes_insert", "daily_quotes", start, err)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// GetLatestSummary возвращает самую свежую сводку пользователя.
func (p *Postgres) GetLatestSummary(userID int64) (domain.DailySummary, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, user_id, summary, key_themes, emotional_trends, entry_count, period_start, period_end, summary_date, created_at
FROM daily_summaries WHERE user_id = $1
ORDER BY summary_date DESC
LIMIT 1
`, userID)
	summary, err := scanSummary(row)
	metrics.ObserveNetworkRequest("postgres", "daily_summaries_get_latest", "daily_summaries", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailySummary{}, domain.ErrNotFound
	}
	return summary, err
}

// GetSummaryForDate возвращает сводку за конкретную дату.
func (p *Postgres) GetSummaryForDate(userID int64, date time.Time) (domain.DailySummary, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, user_id, summary, key_themes, emotional_trends, entry_count, period_start, period_end, summary_date, created_at
FROM daily_summaries WHERE user_id = $1 AND summary_date = $2
`, userID, date)
	summary, err := scanSummary(row)
	metrics.ObserveNetworkRequest("postgres", "daily_summaries_get_for_date", "daily_summaries", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailySummary{}, domain.ErrNotFound
	}
	return summary, err
}

// CreateSummary вставляет сводку, транслируя нарушение уникального
// ключа (user_id, summary_date) в ErrAlreadyExists.
func (p *Postgres) CreateSummary(summary domain.DailySummary) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	themes, err := json.Marshal(summary.KeyThemes)
	if err != nil {
		return err
	}
	trends, err := json.Marshal(summary.EmotionalTrends)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO daily_summaries (user_id, summary, key_themes, emotional_trends, entry_count, period_start, period_end, summary_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, summary.UserID, summary.Summary, themes, trends, summary.EntryCount, summary.PeriodStart, summary.PeriodEnd, summary.SummaryDate)
	metrics.ObserveNetworkRequest("postgres", "daily_summaries_insert", "daily_summaries", start, err)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// AcquireScheduleTask вставляет запись о запуске задачи и возвращает
// true, если удалось.
func (p *Postgres) AcquireScheduleTask(userID int64, scheduledFor time.Time) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `
INSERT INTO schedule_tasks (user_id, scheduled_for)
VALUES ($1, $2)
ON CONFLICT (user_id, scheduled_for) DO NOTHING
`, userID, scheduledFor)
	metrics.ObserveNetworkRequest("postgres", "schedule_tasks_acquire", "schedule_tasks", start, err)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func marshalEmotions(emotions []domain.EmotionScore) ([]byte, error) {
	if emotions == nil {
		return nil, nil
	}
	return json.Marshal(emotions)
}

func scanEntry(row pgx.Row) (domain.Entry, error) {
	var (
		entry     domain.Entry
		emotions  []byte
		updatedAt sql.NullTime
	)
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.Title, &entry.Content, &emotions, &entry.Favorite, &entry.CreatedAt, &updatedAt); err != nil {
		return domain.Entry{}, err
	}
	if len(emotions) > 0 {
		if err := json.Unmarshal(emotions, &entry.Emotions); err != nil {
			return domain.Entry{}, err
		}
	}
	if updatedAt.Valid {
		ts := updatedAt.Time
		entry.UpdatedAt = &ts
	}
	return entry, nil
}

func collectEntries(rows pgx.Rows) ([]domain.Entry, error) {
	var entries []domain.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanSummary(row pgx.Row) (domain.DailySummary, error) {
	var (
		summary domain.DailySummary
		themes  []byte
		trends  []byte
	)
	if err := row.Scan(&summary.ID, &summary.UserID, &summary.Summary, &themes, &trends, &summary.EntryCount, &summary.PeriodStart, &summary.PeriodEnd, &summary.SummaryDate, &summary.CreatedAt); err != nil {
		return domain.DailySummary{}, err
	}
	if len(themes) > 0 {
		if err := json.Unmarshal(themes, &summary.KeyThemes); err != nil {
			return domain.DailySummary{}, err
		}
	}
	if len(trends) > 0 {
		if err := json.Unmarshal(trends, &summary.EmotionalTrends); err != nil {
			return domain.DailySummary{}, err
		}
	}
	return summary, nil
}
