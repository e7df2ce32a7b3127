package config

// EnvPrefix is empty because every field carries its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	PushDriverRedis  = "redis"
	PushDriverPubSub = "pubsub"
	PushDriverNone   = "none"
)

const (
	EnvAppEnv       = "CONSOLE_APP_ENV"
	EnvPort         = "CONSOLE_APP_PORT"
	EnvLogLevel     = "CONSOLE_LOG_LEVEL"
	EnvLogFormat    = "CONSOLE_LOG_FORMAT"
	EnvLogWarnStack = "CONSOLE_LOG_WARN_STACK"

	EnvBackendBaseURL = "CONSOLE_BACKEND_BASE_URL"
	EnvBackendToken   = "CONSOLE_BACKEND_TOKEN"
	EnvBackendTimeout = "CONSOLE_BACKEND_TIMEOUT"

	EnvJWTSecret = "CONSOLE_JWT_SECRET"
	EnvJWTIssuer = "CONSOLE_JWT_ISSUER"

	EnvRedisURL  = "CONSOLE_REDIS_URL"
	EnvRedisAddr = "CONSOLE_REDIS_ADDR"

	EnvDBDSN        = "CONSOLE_DB_DSN"
	EnvDBSQLitePath = "CONSOLE_DB_SQLITE_PATH"
	EnvDBHost       = "CONSOLE_DB_HOST"
	EnvDBPort       = "CONSOLE_DB_PORT"
	EnvDBUser       = "CONSOLE_DB_USER"
	EnvDBPassword   = "CONSOLE_DB_PASSWORD"
	EnvDBName       = "CONSOLE_DB_NAME"
	EnvDBSSLMode    = "CONSOLE_DB_SSLMODE"

	EnvUseSQLite   = "CONSOLE_USE_SQLITE"
	EnvAutoMigrate = "CONSOLE_AUTO_MIGRATE"

	EnvPushDriver         = "CONSOLE_PUSH_DRIVER"
	EnvPushSubscription   = "CONSOLE_PUSH_SUBSCRIPTION"
	EnvPushRedisChannel   = "CONSOLE_PUSH_REDIS_CHANNEL"
	EnvPushIdempotencyTTL = "CONSOLE_PUSH_IDEMPOTENCY_TTL"

	EnvGCPProjectID       = "CONSOLE_GCP_PROJECT_ID"
	EnvGCPCredentialsJSON = "CONSOLE_GCP_CREDENTIALS_JSON"
	EnvGCPCredentialsFile = "CONSOLE_GCP_APPLICATION_CREDENTIALS"

	EnvPageSize        = "CONSOLE_PAGE_SIZE"
	EnvRefreshDebounce = "CONSOLE_REFRESH_DEBOUNCE"
	EnvExportLimit     = "CONSOLE_EXPORT_LIMIT"
	EnvCurrencyToken   = "CONSOLE_CURRENCY_TOKEN"
	EnvNoticeHistory   = "CONSOLE_NOTICE_HISTORY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
