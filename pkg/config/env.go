package config

// EnvPrefix is empty because every field carries its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StoreDriverFile     = "file"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

const (
	EnvAppEnv        = "CREWSYNC_APP_ENV"
	EnvPort          = "CREWSYNC_APP_PORT"
	EnvStoreDriver   = "CREWSYNC_STORE_DRIVER"
	EnvStoreFilePath = "CREWSYNC_STORE_FILE_PATH"
	EnvStoreQueueKey = "CREWSYNC_STORE_QUEUE_KEY"
	EnvDBDSN         = "CREWSYNC_DB_DSN"
	EnvRedisURL      = "CREWSYNC_REDIS_URL"
	EnvRedisAddr     = "CREWSYNC_REDIS_ADDR"
	EnvJWTSecret     = "CREWSYNC_JWT_SECRET"
	EnvRemoteBaseURL = "CREWSYNC_REMOTE_BASE_URL"
	EnvNotifyIDs     = "CREWSYNC_NOTIFICATIONS_EMPLOYEE_IDS"
	EnvFlushInterval = "CREWSYNC_OUTBOX_FLUSH_INTERVAL"
)
