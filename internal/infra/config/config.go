package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Identity struct {
		UserinfoURL string `envconfig:"IDENTITY_USERINFO_URL"`
		CacheTTL    int    `envconfig:"IDENTITY_CACHE_TTL_SECONDS" default:"300"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string `envconfig:"OPENAI_API_KEY"`
		BaseURL string `envconfig:"OPENAI_BASE_URL"`
		Model   string `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout int    `envconfig:"OPENAI_TIMEOUT_SECONDS" default:"15"`
	} `envconfig:""`

	Scheduler struct {
		DailyAt string `envconfig:"SCHEDULER_DAILY_AT" default:"03:00"`
	} `envconfig:""`

	Queues struct {
		Backend string `envconfig:"SUMMARY_QUEUE_BACKEND" default:"redis"`
		Summary string `envconfig:"SUMMARY_QUEUE_KEY" default:"summary_jobs"`
		AMQPURL string `envconfig:"AMQP_URL"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
