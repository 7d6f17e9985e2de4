package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Store         StoreConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Remote        RemoteConfig
	Outbox        OutboxConfig
	Connectivity  ConnectivityConfig
	Notifications NotificationsConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	if err := cfg.DB.validate(cfg.Store.Driver); err != nil {
		return nil, err
	}
	if err := cfg.Redis.validate(cfg.Store.Driver); err != nil {
		return nil, err
	}
	cfg.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Remote.BaseURL), "/")
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CREWSYNC_APP_ENV" default:"dev"`
	Port         string `envconfig:"CREWSYNC_APP_PORT" default:"8787"`
	LogLevel     string `envconfig:"CREWSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CREWSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StoreConfig selects where the outbox queue and notification state live.
type StoreConfig struct {
	Driver   string `envconfig:"CREWSYNC_STORE_DRIVER" default:"file"`
	FilePath string `envconfig:"CREWSYNC_STORE_FILE_PATH" default:"./data/crewsync"`
	QueueKey string `envconfig:"CREWSYNC_STORE_QUEUE_KEY" default:"outbox_queue"`
}

// NormalizedDriver returns the lower-cased driver name.
func (s StoreConfig) NormalizedDriver() string {
	return strings.ToLower(strings.TrimSpace(s.Driver))
}

func (s StoreConfig) validate() error {
	switch s.NormalizedDriver() {
	case StoreDriverFile:
		if strings.TrimSpace(s.FilePath) == "" {
			return fmt.Errorf("%s is required for the file store", EnvStoreFilePath)
		}
	case StoreDriverSQLite, StoreDriverPostgres, StoreDriverRedis, StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported store driver %q", s.Driver)
	}
	if strings.TrimSpace(s.QueueKey) == "" {
		return fmt.Errorf("%s must not be empty", EnvStoreQueueKey)
	}
	return nil
}

type DBConfig struct {
	DSN string `envconfig:"CREWSYNC_DB_DSN"`

	MaxOpenConns    int           `envconfig:"CREWSYNC_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"CREWSYNC_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"CREWSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CREWSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"CREWSYNC_DB_SLOW_QUERY" default:"200ms"`
}

func (db DBConfig) validate(driver string) error {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case StoreDriverSQLite, StoreDriverPostgres:
		if db.DSN == "" {
			return fmt.Errorf("%s is required for the %s store", EnvDBDSN, driver)
		}
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"CREWSYNC_REDIS_URL"`
	Address      string        `envconfig:"CREWSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"CREWSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"CREWSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CREWSYNC_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"CREWSYNC_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"CREWSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CREWSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CREWSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

func (r RedisConfig) validate(driver string) error {
	if strings.EqualFold(strings.TrimSpace(driver), StoreDriverRedis) && !r.Enabled() {
		return fmt.Errorf("either %s or %s is required for the redis store", EnvRedisURL, EnvRedisAddr)
	}
	return nil
}

// JWTConfig guards the local control API. An empty secret disables auth.
type JWTConfig struct {
	Secret            string `envconfig:"CREWSYNC_JWT_SECRET"`
	Issuer            string `envconfig:"CREWSYNC_JWT_ISSUER" default:"crewsync"`
	ExpirationMinutes int    `envconfig:"CREWSYNC_JWT_EXPIRATION_MINUTES" default:"720"`
}

func (j JWTConfig) Enabled() bool {
	return strings.TrimSpace(j.Secret) != ""
}

// RemoteConfig points at the workforce REST API.
type RemoteConfig struct {
	BaseURL        string        `envconfig:"CREWSYNC_REMOTE_BASE_URL" required:"true"`
	Token          string        `envconfig:"CREWSYNC_REMOTE_TOKEN"`
	Timeout        time.Duration `envconfig:"CREWSYNC_REMOTE_TIMEOUT" default:"15s"`
	RateLimitRPS   float64       `envconfig:"CREWSYNC_REMOTE_RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int           `envconfig:"CREWSYNC_REMOTE_RATE_LIMIT_BURST" default:"1"`
}

type OutboxConfig struct {
	StaleAfter    time.Duration `envconfig:"CREWSYNC_OUTBOX_STALE_AFTER" default:"2m"`
	FlushInterval time.Duration `envconfig:"CREWSYNC_OUTBOX_FLUSH_INTERVAL" default:"60s"`
	LockTTL       time.Duration `envconfig:"CREWSYNC_OUTBOX_LOCK_TTL" default:"5m"`
}

type ConnectivityConfig struct {
	ProbeURL      string        `envconfig:"CREWSYNC_CONNECTIVITY_PROBE_URL"`
	ProbeInterval time.Duration `envconfig:"CREWSYNC_CONNECTIVITY_PROBE_INTERVAL" default:"15s"`
	ProbeTimeout  time.Duration `envconfig:"CREWSYNC_CONNECTIVITY_PROBE_TIMEOUT" default:"5s"`
}

// ResolveProbeURL falls back to the remote health endpoint.
func (c ConnectivityConfig) ResolveProbeURL(remote RemoteConfig) string {
	if url := strings.TrimSpace(c.ProbeURL); url != "" {
		return url
	}
	return strings.TrimRight(remote.BaseURL, "/") + "/health"
}

type NotificationsConfig struct {
	PollInterval  time.Duration `envconfig:"CREWSYNC_NOTIFICATIONS_POLL_INTERVAL" default:"30s"`
	ToastDuration time.Duration `envconfig:"CREWSYNC_NOTIFICATIONS_TOAST_DURATION" default:"3500ms"`
	EmployeeIDs   []string      `envconfig:"CREWSYNC_NOTIFICATIONS_EMPLOYEE_IDS"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CREWSYNC_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,capacitor://localhost"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CREWSYNC_AUTO_MIGRATE" default:"false"`
}
