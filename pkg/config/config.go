package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "MEALVERSE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MEALVERSE_DB_DSN"
	EnvDBHost = "MEALVERSE_DB_HOST"
	EnvDBUser = "MEALVERSE_DB_USER"
	EnvDBName = "MEALVERSE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Assignment   AssignmentConfig
	Tracking     TrackingConfig
	SyncQueue    SyncQueueConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	GoogleMaps   GoogleMapsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MEALVERSE_APP_ENV" required:"true"`
	Port         string `envconfig:"MEALVERSE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MEALVERSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEALVERSE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MEALVERSE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MEALVERSE_DB_DSN"`
	Driver string `envconfig:"MEALVERSE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MEALVERSE_DB_HOST"`
	LegacyPort     int    `envconfig:"MEALVERSE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MEALVERSE_DB_USER"`
	LegacyPassword string `envconfig:"MEALVERSE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MEALVERSE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MEALVERSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEALVERSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEALVERSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEALVERSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEALVERSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEALVERSE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MEALVERSE_REDIS_ADDR"`
	Password     string        `envconfig:"MEALVERSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEALVERSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEALVERSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEALVERSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEALVERSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEALVERSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEALVERSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type AssignmentConfig struct {
	MaxDistanceKm    float64       `envconfig:"MEALVERSE_ASSIGNMENT_MAX_DISTANCE_KM" default:"50"`
	OfferTTL         time.Duration `envconfig:"MEALVERSE_ASSIGNMENT_OFFER_TTL" default:"5m"`
	MaxOfferAttempts int           `envconfig:"MEALVERSE_ASSIGNMENT_MAX_OFFER_ATTEMPTS" default:"3"`
	SweepInterval    time.Duration `envconfig:"MEALVERSE_ASSIGNMENT_SWEEP_INTERVAL" default:"30s"`
}

type TrackingConfig struct {
	TrailSize          int           `envconfig:"MEALVERSE_TRACKING_TRAIL_SIZE" default:"50"`
	PositionCacheTTL   time.Duration `envconfig:"MEALVERSE_TRACKING_POSITION_CACHE_TTL" default:"10m"`
	MinAccuracyMeters  float64       `envconfig:"MEALVERSE_TRACKING_MIN_ACCURACY_METERS" default:"100"`
	MaxSampleAgeBefore time.Duration `envconfig:"MEALVERSE_TRACKING_MAX_SAMPLE_AGE" default:"5m"`
}

type SyncQueueConfig struct {
	MaxAttempts    int           `envconfig:"MEALVERSE_SYNC_MAX_ATTEMPTS" default:"5"`
	InitialBackoff time.Duration `envconfig:"MEALVERSE_SYNC_INITIAL_BACKOFF" default:"1s"`
	MaxBackoff     time.Duration `envconfig:"MEALVERSE_SYNC_MAX_BACKOFF" default:"30s"`
	FlushBatchSize int           `envconfig:"MEALVERSE_SYNC_FLUSH_BATCH_SIZE" default:"100"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"MEALVERSE_CRON_INTERVAL" default:"30s"`
	LockTTL               time.Duration `envconfig:"MEALVERSE_CRON_LOCK_TTL" default:"2m"`
	NotificationRetention int           `envconfig:"MEALVERSE_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
	OutboxRetention       int           `envconfig:"MEALVERSE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MEALVERSE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MEALVERSE_AUTO_MIGRATE" default:"false"`
}

type GoogleMapsConfig struct {
	APIKey string `envconfig:"MEALVERSE_GOOGLE_MAPS_API_KEY"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MEALVERSE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MEALVERSE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MEALVERSE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"MEALVERSE_PUBSUB_DOMAIN_TOPIC" default:"mv-domain-events"`
	DomainSubscription string `envconfig:"MEALVERSE_PUBSUB_DOMAIN_SUBSCRIPTION"`
	OrdersTopic        string `envconfig:"MEALVERSE_PUBSUB_ORDERS_TOPIC" default:"mv-order-events"`
	OrdersSubscription string `envconfig:"MEALVERSE_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MEALVERSE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MEALVERSE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MEALVERSE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
