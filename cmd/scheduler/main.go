package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"journal-insights/internal/adapters/repo"
	"journal-insights/internal/domain"
	"journal-insights/internal/infra/cache"
	"journal-insights/internal/infra/config"
	"journal-insights/internal/infra/db"
	"journal-insights/internal/infra/log"
	"journal-insights/internal/infra/metrics"
	"journal-insights/internal/infra/queue"
	scheduleusecase "journal-insights/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := cache.NewRedis(redisClient)

	summaryQueue := buildQueue(cfg, redisClient, logger)
	scheduleSvc := scheduleusecase.NewService(repoAdapter, repoAdapter, summaryQueue, repoAdapter, logger.With().Str("component", "schedule").Logger())

	fireHour, fireMinute, err := parseDailyAt(cfg.Scheduler.DailyAt)
	if err != nil {
		logger.Fatal().Err(err).Str("daily_at", cfg.Scheduler.DailyAt).Msg("scheduler: некорректное время запуска")
	}

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")
	logger.Info().Str("daily_at", cfg.Scheduler.DailyAt).Msg("scheduler: старт")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case now := <-ticker.C:
			now = now.UTC()
			if now.Hour() != fireHour || now.Minute() != fireMinute {
				continue
			}
			planDaily(ctx, scheduleSvc, redisCache, now, logger)
		}
	}
}

// planDaily берёт суточный замок в Redis, чтобы при нескольких репликах
// планирование выполнилось один раз. Сам план идемпотентен и за счёт
// schedule_tasks, замок лишь экономит пустые проходы.
func planDaily(ctx context.Context, svc *scheduleusecase.Service, locks domain.Cache, now time.Time, logger zerolog.Logger) {
	key := "schedule:daily:" + now.Format("2006-01-02")
	err := locks.Once(key, 12*time.Hour, func() error {
		planned, err := svc.PlanDaily(ctx)
		if err != nil {
			return err
		}
		metrics.SummaryJobsPlannedTotal.Add(float64(planned))
		logger.Info().Int("planned", planned).Msg("scheduler: задачи поставлены")
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("scheduler: планирование не удалось")
	}
}

func buildQueue(cfg config.AppConfig, redisClient *redis.Client, logger zerolog.Logger) domain.SummaryQueue {
	if cfg.Queues.Backend == "amqp" {
		q, err := queue.NewAMQPSummaryQueue(cfg.Queues.AMQPURL, cfg.Queues.Summary)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: нет подключения к RabbitMQ")
		}
		return q
	}
	return queue.NewRedisSummaryQueue(redisClient, cfg.Queues.Summary)
}

func parseDailyAt(value string) (int, int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("ожидался формат HH:MM, получено %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("некорректный час %q", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("некорректная минута %q", parts[1])
	}
	return hour, minute, nil
}
