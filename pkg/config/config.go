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
	Backend      BackendConfig
	JWT          JWTConfig
	Redis        RedisConfig
	DB           DBConfig
	FeatureFlags FeatureFlagsConfig
	Push         PushConfig
	GCP          GCPConfig
	Console      ConsoleConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Push.validate(cfg.GCP); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CONSOLE_APP_ENV" required:"true"`
	Port         string `envconfig:"CONSOLE_APP_PORT" default:"8085"`
	LogLevel     string `envconfig:"CONSOLE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CONSOLE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CONSOLE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"CONSOLE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the order backend REST API.
type BackendConfig struct {
	BaseURL string        `envconfig:"CONSOLE_BACKEND_BASE_URL" required:"true"`
	Token   string        `envconfig:"CONSOLE_BACKEND_TOKEN"`
	Timeout time.Duration `envconfig:"CONSOLE_BACKEND_TIMEOUT" default:"30s"`
}

// JWTConfig verifies operator tokens presented to the console API.
type JWTConfig struct {
	Secret string `envconfig:"CONSOLE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CONSOLE_JWT_ISSUER" required:"true"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CONSOLE_REDIS_URL"`
	Address      string        `envconfig:"CONSOLE_REDIS_ADDR"`
	Password     string        `envconfig:"CONSOLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONSOLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONSOLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONSOLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONSOLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONSOLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONSOLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type DBConfig struct {
	DSN        string `envconfig:"CONSOLE_DB_DSN"`
	SQLitePath string `envconfig:"CONSOLE_DB_SQLITE_PATH" default:"console.db"`

	LegacyHost     string `envconfig:"CONSOLE_DB_HOST"`
	LegacyPort     int    `envconfig:"CONSOLE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CONSOLE_DB_USER"`
	LegacyPassword string `envconfig:"CONSOLE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CONSOLE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CONSOLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CONSOLE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CONSOLE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONSOLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CONSOLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// UseSQLite is copied from the feature flag so the db package sees one struct.
	UseSQLite bool `ignored:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CONSOLE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CONSOLE_AUTO_MIGRATE" default:"false"`
}

// PushConfig selects and configures the live update transport.
type PushConfig struct {
	Driver         string        `envconfig:"CONSOLE_PUSH_DRIVER" default:"redis"`
	Subscription   string        `envconfig:"CONSOLE_PUSH_SUBSCRIPTION" default:"subscribe-orders"`
	RedisChannel   string        `envconfig:"CONSOLE_PUSH_REDIS_CHANNEL" default:"subscribe-orders"`
	IdempotencyTTL time.Duration `envconfig:"CONSOLE_PUSH_IDEMPOTENCY_TTL" default:"10m"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CONSOLE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CONSOLE_GCP_CREDENTIALS_JSON"`
	CredentialsFile string `envconfig:"CONSOLE_GCP_APPLICATION_CREDENTIALS"`
}

// ConsoleConfig tunes the view-state behavior.
type ConsoleConfig struct {
	PageSize        int           `envconfig:"CONSOLE_PAGE_SIZE" default:"10"`
	RefreshDebounce time.Duration `envconfig:"CONSOLE_REFRESH_DEBOUNCE" default:"500ms"`
	ExportLimit     int           `envconfig:"CONSOLE_EXPORT_LIMIT" default:"10000"`
	CurrencyToken   string        `envconfig:"CONSOLE_CURRENCY_TOKEN" default:"KSH"`
	NoticeHistory   int           `envconfig:"CONSOLE_NOTICE_HISTORY" default:"50"`
}

func (p PushConfig) validate(gcp GCPConfig) error {
	switch strings.ToLower(strings.TrimSpace(p.Driver)) {
	case PushDriverRedis, PushDriverNone:
		return nil
	case PushDriverPubSub:
		if strings.TrimSpace(gcp.ProjectID) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvGCPProjectID, EnvPushDriver, PushDriverPubSub)
		}
		if strings.TrimSpace(p.Subscription) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvPushSubscription, EnvPushDriver, PushDriverPubSub)
		}
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvPushDriver, p.Driver)
	}
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	db.UseSQLite = useSQLite
	if useSQLite {
		if strings.TrimSpace(db.SQLitePath) == "" {
			return fmt.Errorf("%s is required when %s is set", EnvDBSQLitePath, EnvUseSQLite)
		}
		return nil
	}
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
