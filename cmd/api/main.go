package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"journal-insights/internal/adapters/classifier"
	"journal-insights/internal/adapters/identity"
	"journal-insights/internal/adapters/nlp"
	"journal-insights/internal/adapters/repo"
	"journal-insights/internal/domain"
	"journal-insights/internal/infra/cache"
	"journal-insights/internal/infra/config"
	"journal-insights/internal/infra/db"
	httpinfra "journal-insights/internal/infra/http"
	"journal-insights/internal/infra/log"
	"journal-insights/internal/infra/metrics"
	openai "journal-insights/internal/infra/openai"
	insightsusecase "journal-insights/internal/usecase/insights"
	journalusecase "journal-insights/internal/usecase/journal"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := cache.NewRedis(redisClient)

	verifier := buildVerifier(cfg, redisCache, logger)
	emotionClassifier, provider := buildNLP(cfg, logger)

	journalSvc := journalusecase.NewService(repoAdapter, emotionClassifier, logger.With().Str("component", "journal").Logger())
	insightsSvc := insightsusecase.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter, provider, logger.With().Str("component", "insights").Logger())

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	registerRoutes(server.Router, verifier, repoAdapter, journalSvc, insightsSvc, logger)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	go func() {
		logger.Info().Msg("api: старт")
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func buildVerifier(cfg config.AppConfig, redisCache domain.Cache, logger zerolog.Logger) domain.IdentityVerifier {
	client, err := identity.NewClient(cfg.Identity.UserinfoURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: провайдер идентичности не настроен")
	}
	ttl := time.Duration(cfg.Identity.CacheTTL) * time.Second
	return identity.NewCached(client, redisCache, ttl, logger.With().Str("component", "identity").Logger())
}

// buildNLP выбирает реализации по конфигу: OpenAI при наличии ключа,
// иначе встроенные эвристики.
func buildNLP(cfg config.AppConfig, logger zerolog.Logger) (domain.Classifier, domain.InsightProvider) {
	if cfg.OpenAI.APIKey == "" {
		logger.Warn().Msg("api: OPENAI_API_KEY не задан, используются эвристики")
		return classifier.NewSimple(), nlp.NewSimple()
	}
	timeout := time.Duration(cfg.OpenAI.Timeout) * time.Second
	client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, timeout)
	return classifier.NewOpenAI(client, cfg.OpenAI.Model, timeout),
		nlp.NewOpenAI(client, cfg.OpenAI.Model, timeout)
}

type createEntryRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type entryResponse struct {
	ID        int64                 `json:"id"`
	Title     string                `json:"title"`
	Content   string                `json:"content"`
	Emotions  []domain.EmotionScore `json:"emotions,omitempty"`
	Favorite  bool                  `json:"favorite"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt *time.Time            `json:"updated_at,omitempty"`
}

type quoteResponse struct {
	Title       string    `json:"title"`
	Quote       string    `json:"quote"`
	Author      string    `json:"author,omitempty"`
	Citation    string    `json:"citation,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	QuoteDate   string    `json:"quote_date"`
	CreatedAt   time.Time `json:"created_at"`
}

type summaryResponse struct {
	Summary         string             `json:"summary"`
	KeyThemes       []string           `json:"key_themes,omitempty"`
	EmotionalTrends map[string]float64 `json:"emotional_trends,omitempty"`
	EntryCount      int                `json:"entry_count"`
	PeriodStart     string             `json:"period_start"`
	PeriodEnd       string             `json:"period_end"`
	SummaryDate     string             `json:"summary_date"`
}

func registerRoutes(r chi.Router, verifier domain.IdentityVerifier, users domain.UserRepo, journalSvc *journalusecase.Service, insightsSvc *insightsusecase.Service, logger zerolog.Logger) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(protected chi.Router) {
		protected.Use(httpinfra.BearerAuthMiddleware(verifier))

		// Запись создаёт владельца при первом обращении: это
		// единственный маршрут, который регистрирует пользователя.
		protected.Post("/api/v1/journals", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			ident, ok := httpinfra.IdentityFrom(r.Context())
			if !ok {
				httpinfra.WriteError(w, http.StatusUnauthorized, "missing identity")
				return
			}
			var req createEntryRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			user, created, err := users.UpsertBySubject(ident)
			if err != nil {
				logger.Error().Err(err).Msg("api: регистрация владельца")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to save entry")
				return
			}
			if created {
				logger.Info().Int64("user_id", user.ID).Msg("api: новый владелец дневника")
			}
			entry, err := journalSvc.CreateEntry(r.Context(), user.ID, req.Title, req.Content)
			if err != nil {
				writeEntryError(w, err, logger)
				return
			}
			httpinfra.WriteJSON(w, http.StatusCreated, toEntryResponse(entry))
		})

		protected.Get("/api/v1/journals", func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolveUser(w, r, users)
			if !ok {
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			entries, err := journalSvc.ListEntries(user.ID, limit, offset)
			if err != nil {
				logger.Error().Err(err).Msg("api: список записей")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to list entries")
				return
			}
			out := make([]entryResponse, 0, len(entries))
			for _, e := range entries {
				out = append(out, toEntryResponse(e))
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
		})

		protected.Get("/api/v1/journals/{id}", func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolveUser(w, r, users)
			if !ok {
				return
			}
			entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid entry id")
				return
			}
			entry, err := journalSvc.GetEntry(user.ID, entryID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					httpinfra.WriteError(w, http.StatusNotFound, "entry not found")
					return
				}
				logger.Error().Err(err).Msg("api: чтение записи")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to read entry")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, toEntryResponse(entry))
		})

		protected.Put("/api/v1/journals/{id}", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			user, ok := resolveUser(w, r, users)
			if !ok {
				return
			}
			entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid entry id")
				return
			}
			var req createEntryRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			entry, err := journalSvc.UpdateEntry(r.Context(), user.ID, entryID, req.Title, req.Content)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					httpinfra.WriteError(w, http.StatusNotFound, "entry not found")
					return
				}
				writeEntryError(w, err, logger)
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, toEntryResponse(entry))
		})

		protected.Get("/api/v1/insights/quote", func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolveUser(w, r, users)
			if !ok {
				return
			}
			result, err := insightsSvc.DailyQuote(r.Context(), user.ID)
			if err != nil {
				logger.Error().Err(err).Msg("api: цитата дня")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to build quote")
				return
			}
			if result.Quote == nil {
				httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"message": result.Message})
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"quote": toQuoteResponse(*result.Quote)})
		})

		protected.Get("/api/v1/insights/summary", func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolveUser(w, r, users)
			if !ok {
				return
			}
			result, err := insightsSvc.DailySummary(r.Context(), user.ID)
			if err != nil {
				logger.Error().Err(err).Msg("api: сводка")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to build summary")
				return
			}
			if result.Summary == nil {
				httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"message": result.Message})
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"summary": toSummaryResponse(*result.Summary)})
		})

		protected.Get("/api/v1/insights/topEmotions", func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolveUser(w, r, users)
			if !ok {
				return
			}
			result, err := insightsSvc.TopEmotions(user.ID)
			if err != nil {
				logger.Error().Err(err).Msg("api: рейтинг эмоций")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to build top emotions")
				return
			}
			if result.Message != "" {
				httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"message": result.Message})
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"emotions": result.Emotions})
		})

		protected.Get("/api/v1/insights/emotionTrends", func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolveUser(w, r, users)
			if !ok {
				return
			}
			buckets, err := insightsSvc.EmotionTrends(user.ID)
			if err != nil {
				logger.Error().Err(err).Msg("api: тренды эмоций")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to build emotion trends")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
		})

		protected.Delete("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolveUser(w, r, users)
			if !ok {
				return
			}
			if err := users.DeleteUserData(user.ID); err != nil {
				logger.Error().Err(err).Int64("user_id", user.ID).Msg("api: удаление данных пользователя")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to delete user data")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
}

// resolveUser находит владельца по subject из токена. Читающие маршруты
// не создают пользователей.
func resolveUser(w http.ResponseWriter, r *http.Request, users domain.UserRepo) (domain.User, bool) {
	ident, ok := httpinfra.IdentityFrom(r.Context())
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "missing identity")
		return domain.User{}, false
	}
	user, err := users.GetBySubject(ident.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			httpinfra.WriteError(w, http.StatusNotFound, "user not found")
			return domain.User{}, false
		}
		httpinfra.WriteError(w, http.StatusInternalServerError, "failed to resolve user")
		return domain.User{}, false
	}
	return user, true
}

func writeEntryError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	switch {
	case errors.Is(err, domain.ErrEmptyTitle):
		httpinfra.WriteError(w, http.StatusBadRequest, "title must not be empty")
	case errors.Is(err, domain.ErrEmptyContent):
		httpinfra.WriteError(w, http.StatusBadRequest, "content must not be empty")
	default:
		logger.Error().Err(err).Msg("api: сохранение записи")
		httpinfra.WriteError(w, http.StatusInternalServerError, "failed to save entry")
	}
}

func toEntryResponse(e domain.Entry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		Title:     e.Title,
		Content:   e.Content,
		Emotions:  e.Emotions,
		Favorite:  e.Favorite,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func toQuoteResponse(q domain.DailyQuote) quoteResponse {
	return quoteResponse{
		Title:       q.Title,
		Quote:       q.Quote,
		Author:      q.Author,
		Citation:    q.Citation,
		Explanation: q.Explanation,
		QuoteDate:   q.QuoteDate.Format("2006-01-02"),
		CreatedAt:   q.CreatedAt,
	}
}

func toSummaryResponse(s domain.DailySummary) summaryResponse {
	return summaryResponse{
		Summary:         s.Summary,
		KeyThemes:       s.KeyThemes,
		EmotionalTrends: s.EmotionalTrends,
		EntryCount:      s.EntryCount,
		PeriodStart:     s.PeriodStart.Format("2006-01-02"),
		PeriodEnd:       s.PeriodEnd.Format("2006-01-02"),
		SummaryDate:     s.SummaryDate.Format("2006-01-02"),
	}
}
