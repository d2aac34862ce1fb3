package config

import (
	"github.com/rs/zerolog"

	"github.com/pkg/errors"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

const MsgFailedToReadConfiguration = "failed to read configuration"

var ErrFailedToReadConfiguration = errors.New(MsgFailedToReadConfiguration)

type Configuration struct {
	PostgresDB struct {
		Host     string `envconfig:"DB_SERVER" required:"true" default:"localhost"`
		Port     uint32 `envconfig:"DB_PORT" required:"true" default:"5432"`
		User     string `envconfig:"DB_USER" required:"true" default:"postgres"`
		Pass     string `envconfig:"DB_PASS" required:"true" default:"postgres"`
		Database string `envconfig:"DB_DATABASE" required:"true" default:"branchpulse"`
		SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	}
	APIPort                      uint16        `envconfig:"API_PORT" default:"8080"`
	Authorization                bool          `envconfig:"AUTHORIZATION" default:"true"`
	EnableTLS                    bool          `envconfig:"ENABLE_TLS" default:"false"`
	TLSCertPath                  string        `envconfig:"TLS_CERT_PATH" default:"../branchpulse_cert.pem"`
	TLSKeyPath                   string        `envconfig:"TLS_KEY_PATH" default:"../branchpulse_key.pem"`
	Development                  bool          `envconfig:"DEVELOPMENT" default:"false"`
	PermittedOrigin              string        `envconfig:"PERMITTED_ORIGIN_URL" default:"*"`
	OIDCBaseURL                  string        `envconfig:"OIDC_BASE_URL" default:"https://iam.branchpulse.org/realms/branchpulse.org"`
	LogLevel                     zerolog.Level `envconfig:"LOG_LEVEL" default:"1"`
	ApplicationName              string        `envconfig:"APPLICATION_NAME" default:"notifier"`
	DBSchema                     string        `envconfig:"DB_SCHEMA" default:"notifier"`
	SessionCookieName            string        `envconfig:"SESSION_COOKIE_NAME" default:"branchpulse_session"`
	RedisUrl                     string        `envconfig:"REDIS_URL" required:"true" default:"localhost"`
	RedisPort                    int           `envconfig:"REDIS_PORT" default:"6379"`
	IdleThresholdSeconds         int           `envconfig:"CONNECTION_IDLE_THRESHOLD_SECONDS" default:"60"`
	StaleThresholdSeconds        int           `envconfig:"CONNECTION_STALE_THRESHOLD_SECONDS" default:"300"`
	DisconnectThresholdSeconds   int           `envconfig:"CONNECTION_DISCONNECT_THRESHOLD_SECONDS" default:"600"`
	HealthSweepIntervalSeconds   int           `envconfig:"HEALTH_SWEEP_INTERVAL_SECONDS" default:"30"`
	HeartbeatIntervalSeconds     int           `envconfig:"HEARTBEAT_INTERVAL_SECONDS" default:"25"`
	ConnectionEventBufferSize    int           `envconfig:"CONNECTION_EVENT_BUFFER_SIZE" default:"16"`
	EventRetentionMinutes        int           `envconfig:"EVENT_RETENTION_MINUTES" default:"60"`
	MaxEventsPerBucket           int           `envconfig:"MAX_EVENTS_PER_BUCKET" default:"500"`
	PruneIntervalSeconds         int           `envconfig:"PRUNE_INTERVAL_SECONDS" default:"60"`
	StoreFailoverCooldownSeconds int           `envconfig:"STORE_FAILOVER_COOLDOWN_SECONDS" default:"30"`
	QueryDefaultLimit            int           `envconfig:"QUERY_DEFAULT_LIMIT" default:"100"`
	QueryMaxLimit                int           `envconfig:"QUERY_MAX_LIMIT" default:"500"`
	ConnectionRateLimitPerMinute int           `envconfig:"CONNECTION_RATE_LIMIT_PER_MINUTE" default:"30"`
	PublishRateLimitPerMinute    int           `envconfig:"PUBLISH_RATE_LIMIT_PER_MINUTE" default:"120"`
	LongPollEventBufferSize      int           `envconfig:"LONG_POLL_EVENT_BUFFER_SIZE" default:"250"`
	LongPollEventTTLSeconds      int           `envconfig:"LONG_POLL_EVENT_TTL_SECONDS" default:"3600"`
}

var Settings Configuration

func ReadConfiguration() (Configuration, error) {
	var config Configuration
	err := envconfig.Process("", &config)
	if err != nil {
		err = errors.Wrap(err, MsgFailedToReadConfiguration)
		log.Error().Err(err).Msgf("%s\n", ErrFailedToReadConfiguration)
		return config, err
	}
	return config, nil
}
