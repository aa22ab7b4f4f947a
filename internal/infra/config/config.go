package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	Transport   string `envconfig:"BOT_TRANSPORT" default:"discord"`

	Discord struct {
		Token         string `envconfig:"DISCORD_TOKEN"`
		OwnerID       string `envconfig:"DISCORD_OWNER_ID"`
		DefaultPrefix string `envconfig:"DEFAULT_PREFIX" default:"!"`
	} `envconfig:""`

	Telegram struct {
		Token         string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL    string `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret string `envconfig:"TG_WEBHOOK_SECRET"`
		OwnerID       string `envconfig:"TG_OWNER_ID"`
	} `envconfig:""`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Services struct {
		FicSourceURL  string        `envconfig:"FIC_SOURCE_URL" default:"http://localhost:3055"`
		FavouritesURL string        `envconfig:"FAVOURITES_URL" default:"http://localhost:3056"`
		Timeout       time.Duration `envconfig:"SERVICE_TIMEOUT" default:"30s"`
		RPS           float64       `envconfig:"SERVICE_RPS" default:"10"`
		Retries       uint64        `envconfig:"SERVICE_RETRIES" default:"2"`
	} `envconfig:""`

	Limits struct {
		CommandCooldown    time.Duration `envconfig:"COMMAND_COOLDOWN" default:"3s"`
		RecsCooldown       time.Duration `envconfig:"RECS_COOLDOWN" default:"60s"`
		FullParseThreshold int           `envconfig:"FULL_PARSE_THRESHOLD" default:"500"`
		PageSize           int           `envconfig:"PAGE_SIZE" default:"10"`
		Workers            int           `envconfig:"WORKERS" default:"8"`
		TrackedMessageTTL  time.Duration `envconfig:"TRACKED_MESSAGE_TTL" default:"24h"`
	} `envconfig:""`

	Queues struct {
		Backend      string `envconfig:"CONTINUATION_QUEUE_BACKEND" default:"redis"`
		Continuation string `envconfig:"CONTINUATION_QUEUE_KEY" default:"continuation_jobs"`
		Consumers    int    `envconfig:"CONTINUATION_CONSUMERS" default:"2"`
	} `envconfig:""`
}

// OwnerID возвращает идентификатор владельца бота для выбранной платформы.
func (c AppConfig) OwnerID() string {
	if c.Transport == "telegram" {
		return c.Telegram.OwnerID
	}
	return c.Discord.OwnerID
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
