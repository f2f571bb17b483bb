package config

const EnvPrefix = "GROCER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv            = "GROCER_APP_ENV"
	EnvPort              = "GROCER_APP_PORT"
	EnvDBDSN             = "GROCER_DB_DSN"
	EnvDBHost            = "GROCER_DB_HOST"
	EnvDBUser            = "GROCER_DB_USER"
	EnvDBName            = "GROCER_DB_NAME"
	EnvRedisURL          = "GROCER_REDIS_URL"
	EnvJWTSecret         = "GROCER_JWT_SECRET"
	EnvJWTIssuer         = "GROCER_JWT_ISSUER"
	EnvCheckoutTaxRate   = "GROCER_CHECKOUT_TAX_RATE"
	EnvCheckoutLockWait  = "GROCER_CHECKOUT_LOCK_TIMEOUT"
	EnvRabbitMQURL       = "GROCER_RABBITMQ_URL"
	EnvOutboxMaxAttempts = "GROCER_OUTBOX_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
