package config

// EnvPrefix is passed to envconfig; every field carries an explicit envconfig tag.
const EnvPrefix = "COACHLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "COACHLEDGER_APP_ENV"
	EnvPort      = "COACHLEDGER_APP_PORT"
	EnvDBDSN     = "COACHLEDGER_DB_DSN"
	EnvDBDriver  = "COACHLEDGER_DB_DRIVER"
	EnvDBHost    = "COACHLEDGER_DB_HOST"
	EnvDBUser    = "COACHLEDGER_DB_USER"
	EnvDBName    = "COACHLEDGER_DB_NAME"
	EnvRedisURL  = "COACHLEDGER_REDIS_URL"
	EnvJWTSecret = "COACHLEDGER_JWT_SECRET"
	EnvJWTIssuer = "COACHLEDGER_JWT_ISSUER"

	EnvGatewayKeyID     = "COACHLEDGER_GATEWAY_KEY_ID"
	EnvGatewayKeySecret = "COACHLEDGER_GATEWAY_KEY_SECRET"
	EnvGatewayTimeout   = "COACHLEDGER_GATEWAY_TIMEOUT"
	EnvPayoutLockTTL    = "COACHLEDGER_PAYOUT_LOCK_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
