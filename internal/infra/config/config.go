package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"UTC"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Engage struct {
		PassInterval    time.Duration `envconfig:"ENGAGE_PASS_INTERVAL" default:"1m"`
		DispatchTimeout time.Duration `envconfig:"ENGAGE_DISPATCH_TIMEOUT" default:"8s"`
		RetryBackoff    time.Duration `envconfig:"ENGAGE_RETRY_BACKOFF" default:"30m"`
		Horizon         time.Duration `envconfig:"ENGAGE_HORIZON" default:"72h"`
		MinEntryAge     time.Duration `envconfig:"ENGAGE_MIN_ENTRY_AGE" default:"10m"`
		FollowUpAfter   time.Duration `envconfig:"ENGAGE_FOLLOW_UP_AFTER" default:"48h"`
		MaxPerPass      int           `envconfig:"ENGAGE_MAX_PER_PASS" default:"3"`
	} `envconfig:""`

	Queues struct {
		Backend string `envconfig:"QUEUE_BACKEND" default:"redis"`
		PassKey string `envconfig:"PASS_QUEUE_KEY" default:"engage_pass_jobs"`
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
