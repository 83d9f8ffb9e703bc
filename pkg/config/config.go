package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Gateway      GatewayConfig
	Payout       PayoutConfig
	Cron         CronConfig
	Settings     SettingsConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"COACHLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"COACHLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"COACHLEDGER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"COACHLEDGER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"COACHLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COACHLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COACHLEDGER_DB_DSN"`
	Driver string `envconfig:"COACHLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COACHLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"COACHLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COACHLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"COACHLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"COACHLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"COACHLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COACHLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COACHLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COACHLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COACHLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"COACHLEDGER_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// IsSQLite reports whether the sqlite driver was selected (local dev and tests).
func (d DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(d.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"COACHLEDGER_REDIS_URL"`
	Address      string        `envconfig:"COACHLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"COACHLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"COACHLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COACHLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COACHLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COACHLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COACHLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COACHLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COACHLEDGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COACHLEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COACHLEDGER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COACHLEDGER_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"COACHLEDGER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	ClaimTTL       time.Duration `envconfig:"COACHLEDGER_EVENTING_CLAIM_TTL" default:"5m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COACHLEDGER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"COACHLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SalesSubscription string `envconfig:"COACHLEDGER_PUBSUB_SALES_SUBSCRIPTION" default:"coach-sales-ledger"`
	MaxOutstanding    int    `envconfig:"COACHLEDGER_PUBSUB_MAX_OUTSTANDING" default:"100"`
	ReceiveGoroutines int    `envconfig:"COACHLEDGER_PUBSUB_RECEIVE_GOROUTINES" default:"2"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"COACHLEDGER_BIGQUERY_DATASET" default:"coachledger"`
	LedgerTable string `envconfig:"COACHLEDGER_BIGQUERY_LEDGER_TABLE" default:"ledger_transactions"`
	Enabled     bool   `envconfig:"COACHLEDGER_BIGQUERY_EXPORT_ENABLED" default:"false"`
}

// GatewayConfig holds the payout gateway credentials (key/secret basic auth).
type GatewayConfig struct {
	BaseURL       string        `envconfig:"COACHLEDGER_GATEWAY_BASE_URL" default:"https://api.razorpay.com"`
	KeyID         string        `envconfig:"COACHLEDGER_GATEWAY_KEY_ID"`
	KeySecret     string        `envconfig:"COACHLEDGER_GATEWAY_KEY_SECRET"`
	AccountNumber string        `envconfig:"COACHLEDGER_GATEWAY_ACCOUNT_NUMBER"`
	Timeout       time.Duration `envconfig:"COACHLEDGER_GATEWAY_TIMEOUT" default:"15s"`
}

type PayoutConfig struct {
	LockTTL              time.Duration `envconfig:"COACHLEDGER_PAYOUT_LOCK_TTL" default:"30s"`
	LockWait             time.Duration `envconfig:"COACHLEDGER_PAYOUT_LOCK_WAIT" default:"5s"`
	ReconcileBatchSize   int           `envconfig:"COACHLEDGER_PAYOUT_RECONCILE_BATCH_SIZE" default:"100"`
	ReconcileMinAge      time.Duration `envconfig:"COACHLEDGER_PAYOUT_RECONCILE_MIN_AGE" default:"2m"`
	ReconcileParallelism int           `envconfig:"COACHLEDGER_PAYOUT_RECONCILE_PARALLELISM" default:"4"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"COACHLEDGER_CRON_INTERVAL" default:"15m"`
}

// RateLimitConfig holds the fixed-window API limits. Payout requests get their own tighter window.
type RateLimitConfig struct {
	Window       time.Duration `envconfig:"COACHLEDGER_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit      int           `envconfig:"COACHLEDGER_RATE_LIMIT_IP" default:"300"`
	CallerLimit  int           `envconfig:"COACHLEDGER_RATE_LIMIT_CALLER" default:"120"`
	PayoutWindow time.Duration `envconfig:"COACHLEDGER_RATE_LIMIT_PAYOUT_WINDOW" default:"1h"`
	PayoutLimit  int           `envconfig:"COACHLEDGER_RATE_LIMIT_PAYOUT" default:"10"`
}

type SettingsConfig struct {
	CacheTTL time.Duration `envconfig:"COACHLEDGER_SETTINGS_CACHE_TTL" default:"1m"`
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
