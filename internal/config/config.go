package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App        App        `yaml:"app"`
	Log        Log        `yaml:"log"`
	Ops        Ops        `yaml:"ops"`
	Postgres   Postgres   `yaml:"postgres"`
	Redis      Redis      `yaml:"redis"`
	Kafka      Kafka      `yaml:"kafka"`
	Webhook    Webhook    `yaml:"webhook"`
	Consumer   Consumer   `yaml:"consumer"`
	Reconciler Reconciler `yaml:"reconciler"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"adoption-pipeline"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Ops struct {
	Port string `yaml:"port" env:"OPS_PORT" env-default:"9090"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"adoption_db"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`

	AdoptionRequestTopic string `yaml:"adoption_request_topic" env:"KAFKA_ADOPTION_REQUEST_TOPIC" env-default:"adoption.request"`
	AdoptionCreatedTopic string `yaml:"adoption_created_topic" env:"KAFKA_ADOPTION_CREATED_TOPIC" env-default:"adoption.created"`
	WebhookPublishTopic  string `yaml:"webhook_publish_topic" env:"KAFKA_WEBHOOK_PUBLISH_TOPIC" env-default:"webhook.publish"`

	OrchestratorGroupID string `yaml:"orchestrator_group_id" env:"KAFKA_ORCHESTRATOR_GROUP_ID" env-default:"adoption-service"`
	AnimalGroupID       string `yaml:"animal_group_id" env:"KAFKA_ANIMAL_GROUP_ID" env-default:"animal-service"`
	WebhookGroupID      string `yaml:"webhook_group_id" env:"KAFKA_WEBHOOK_GROUP_ID" env-default:"webhook-service"`
}

type Webhook struct {
	URL           string        `yaml:"url" env:"WEBHOOK_URL" env-default:"http://localhost:9000/webhook"`
	Secret        string        `yaml:"secret" env:"WEBHOOK_SECRET" env-default:"change-me"`
	MaxRetries    int           `yaml:"max_retries" env:"WEBHOOK_MAX_RETRIES" env-default:"6"`
	HTTPTimeout   time.Duration `yaml:"http_timeout" env:"WEBHOOK_HTTP_TIMEOUT" env-default:"5s"`
	BackoffBase   time.Duration `yaml:"backoff_base" env:"WEBHOOK_BACKOFF_BASE" env-default:"500ms"`
	BackoffCap    time.Duration `yaml:"backoff_cap" env:"WEBHOOK_BACKOFF_CAP" env-default:"30s"`
	DeadLetterKey string        `yaml:"dead_letter_key" env:"WEBHOOK_DEAD_LETTER_KEY" env-default:"webhook:dead_letter"`
}

type Consumer struct {
	Workers int `yaml:"workers" env:"CONSUMER_WORKERS" env-default:"3"`
}

type Reconciler struct {
	Interval   time.Duration `yaml:"interval" env:"RECONCILER_INTERVAL" env-default:"30s"`
	PendingAge time.Duration `yaml:"pending_age" env:"RECONCILER_PENDING_AGE" env-default:"5m"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	return cfg, nil
}
