package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "automarket"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "AUTOMARKET_DB_DSN"
	EnvDBHost = "AUTOMARKET_DB_HOST"
	EnvDBUser = "AUTOMARKET_DB_USER"
	EnvDBName = "AUTOMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Ledger       LedgerConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	PayoutSweep  PayoutSweepConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Ledger.CommissionRate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AUTOMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"AUTOMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AUTOMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AUTOMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AUTOMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AUTOMARKET_DB_DSN"`
	Driver string `envconfig:"AUTOMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AUTOMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"AUTOMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AUTOMARKET_DB_USER"`
	LegacyPassword string `envconfig:"AUTOMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"AUTOMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"AUTOMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AUTOMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AUTOMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AUTOMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AUTOMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AUTOMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AUTOMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"AUTOMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"AUTOMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AUTOMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AUTOMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AUTOMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AUTOMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AUTOMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AUTOMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AUTOMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AUTOMARKET_JWT_EXPIRATION_MINUTES" required:"true"`
}

// LedgerConfig holds commission settings for partner payouts.
//
// DefaultCommissionRate carries no envconfig default on purpose: a deployment
// must state the rate applied to partners onboarded without an explicit one,
// or fail at boot.
type LedgerConfig struct {
	DefaultCommissionRate string `envconfig:"AUTOMARKET_DEFAULT_COMMISSION_RATE" required:"true"`
}

// CommissionRate parses the configured default rate and checks it is a
// fraction in (0, 1).
func (l LedgerConfig) CommissionRate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(l.DefaultCommissionRate)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("AUTOMARKET_DEFAULT_COMMISSION_RATE is required")
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid commission rate %q: %w", raw, err)
	}
	if rate.LessThanOrEqual(decimal.Zero) || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("commission rate %q must be a fraction between 0 and 1", raw)
	}
	return rate, nil
}

type RateLimitConfig struct {
	WalletWindow  time.Duration `envconfig:"AUTOMARKET_RATE_LIMIT_WALLET_WINDOW" default:"1m"`
	WalletLimit   int           `envconfig:"AUTOMARKET_RATE_LIMIT_WALLET_LIMIT" default:"10"`
	WalletIPLimit int           `envconfig:"AUTOMARKET_RATE_LIMIT_WALLET_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AUTOMARKET_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"AUTOMARKET_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AUTOMARKET_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"AUTOMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AUTOMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"AUTOMARKET_PUBSUB_DOMAIN_TOPIC" required:"true"`
	DomainSubscription       string `envconfig:"AUTOMARKET_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
	NotificationSubscription string `envconfig:"AUTOMARKET_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AUTOMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AUTOMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AUTOMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// PayoutSweepConfig configures the scheduled payout sweep worker.
type PayoutSweepConfig struct {
	Interval  time.Duration `envconfig:"AUTOMARKET_PAYOUT_SWEEP_INTERVAL" default:"15m"`
	BatchSize int           `envconfig:"AUTOMARKET_PAYOUT_SWEEP_BATCH_SIZE" default:"100"`
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
