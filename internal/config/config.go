package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/interfacehive/credit-engine/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every env-sourced value the engine reads. Nothing else may
// touch env vars or dotenv files directly.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"credit_engine"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	MigrationsDir string `env:"MIGRATIONS_DIR" default:"migrations"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE" default:"credit_engine"`

	EventStream            string        `env:"EVENT_STREAM" default:"contribution-events"`
	EventConsumerGroup     string        `env:"EVENT_CONSUMER_GROUP" default:"notifier"`
	EventConsumerName      string        `env:"EVENT_CONSUMER_NAME"`
	EventMaxRetries        int           `env:"EVENT_MAX_RETRIES" default:"3"`
	EventVisibilityTimeout time.Duration `env:"EVENT_VISIBILITY_TIMEOUT"`
	EventPollInterval      time.Duration `env:"EVENT_POLL_INTERVAL"`
	EventBatchSize         int64         `env:"EVENT_BATCH_SIZE" default:"10"`
	EventStreamMaxLen      int64         `env:"EVENT_STREAM_MAX_LEN"`
	EventEnableDLQ         bool          `env:"EVENT_ENABLE_DLQ" default:"1"`

	NotifierSinkURL string `env:"NOTIFIER_SINK_URL"`
	NotifierWorkers int    `env:"NOTIFIER_WORKERS" default:"4"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration file "+path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Config")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
