package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"journal-insights/internal/adapters/nlp"
	"journal-insights/internal/adapters/repo"
	"journal-insights/internal/domain"
	"journal-insights/internal/infra/config"
	"journal-insights/internal/infra/db"
	"journal-insights/internal/infra/log"
	"journal-insights/internal/infra/metrics"
	openai "journal-insights/internal/infra/openai"
	"journal-insights/internal/infra/queue"
	insightsusecase "journal-insights/internal/usecase/insights"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	summaryQueue := buildQueue(cfg, redisClient, logger)
	provider := buildProvider(cfg, logger)
	insightsSvc := insightsusecase.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter, provider, logger.With().Str("component", "insights").Logger())

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")
	logger.Info().Msg("worker: старт")

	for {
		job, err := summaryQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("worker: остановка")
				return
			}
			metrics.SummaryJobErrors.Inc()
			logger.Error().Err(err).Msg("worker: чтение очереди")
			time.Sleep(time.Second)
			continue
		}
		if err := insightsSvc.GenerateSummaryForToday(ctx, job.UserID); err != nil {
			metrics.SummaryJobErrors.Inc()
			logger.Error().Err(err).
				Str("job_id", job.ID).
				Int64("user_id", job.UserID).
				Msg("worker: генерация сводки не удалась")
			continue
		}
		logger.Info().Str("job_id", job.ID).Int64("user_id", job.UserID).Msg("worker: сводка готова")
	}
}

func buildQueue(cfg config.AppConfig, redisClient *redis.Client, logger zerolog.Logger) domain.SummaryQueue {
	if cfg.Queues.Backend == "amqp" {
		q, err := queue.NewAMQPSummaryQueue(cfg.Queues.AMQPURL, cfg.Queues.Summary)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: нет подключения к RabbitMQ")
		}
		return q
	}
	return queue.NewRedisSummaryQueue(redisClient, cfg.Queues.Summary)
}

func buildProvider(cfg config.AppConfig, logger zerolog.Logger) domain.InsightProvider {
	if cfg.OpenAI.APIKey == "" {
		logger.Warn().Msg("worker: OPENAI_API_KEY не задан, используется эвристика")
		return nlp.NewSimple()
	}
	timeout := time.Duration(cfg.OpenAI.Timeout) * time.Second
	client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, timeout)
	return nlp.NewOpenAI(client, cfg.OpenAI.Model, timeout)
}
