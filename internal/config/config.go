package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/waveline/campaign-engine/pkg/logger"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every environment-driven setting of the engine. Only this
// struct may be used to read configuration values; no direct access to env,
// ini or any other config source should be made elsewhere.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"campaign_engine"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
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

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	// Delivery-status and button-click event streams consumed by the
	// reconciler. Both share the consumer-group tuning below.
	StatusStreamName        string        `env:"STATUS_STREAM_NAME" default:"delivery_status_events"`
	ClickStreamName         string        `env:"CLICK_STREAM_NAME" default:"button_click_events"`
	StreamConsumerGroup     string        `env:"STREAM_CONSUMER_GROUP" default:"reconciler"`
	StreamConsumerName      string        `env:"STREAM_CONSUMER_NAME" default:"reconciler"`
	StreamMaxRetries        int           `env:"STREAM_MAX_RETRIES" default:"3"`
	StreamVisibilityTimeout time.Duration `env:"STREAM_VISIBILITY_TIMEOUT" default:"30s"`
	StreamPollInterval      time.Duration `env:"STREAM_POLL_INTERVAL" default:"1s"`
	StreamBatchSize         int64         `env:"STREAM_BATCH_SIZE" default:"10"`
	StreamMaxLen            int64         `env:"STREAM_MAX_LEN" default:"100000"`
	StreamEnableDLQ         bool          `env:"STREAM_ENABLE_DLQ" default:"true"`

	// Batch dispatcher tuning. DispatchBatchDelay bounds outbound throughput
	// to the gateway's rate limit.
	DispatchBatchSize    int           `env:"DISPATCH_BATCH_SIZE" default:"50"`
	DispatchPollInterval time.Duration `env:"DISPATCH_POLL_INTERVAL" default:"2s"`
	DispatchBatchDelay   time.Duration `env:"DISPATCH_BATCH_DELAY" default:"1s"`
	DispatchSendTimeout  time.Duration `env:"DISPATCH_SEND_TIMEOUT" default:"10s"`
	DispatchStaleQueued  time.Duration `env:"DISPATCH_STALE_QUEUED_AFTER" default:"5m"`

	// Campaign admission bound.
	CampaignMaxRecipients int `env:"CAMPAIGN_MAX_RECIPIENTS" default:"10000"`

	// Recency window for correlating a button click to its template send.
	AttributionWindow time.Duration `env:"ATTRIBUTION_WINDOW" default:"168h"`

	GatewayPrimaryUrl string `env:"GATEWAY_PRIMARY_URL"`
	GatewayBackupUrl  string `env:"GATEWAY_BACKUP_URL"`
	GatewayApiKey     string `env:"GATEWAY_API_KEY"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
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
