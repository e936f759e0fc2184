package config

const (
	EnvPrefix = "LISTINGFORGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "LISTINGFORGE_APP_ENV"
	EnvPort        = "LISTINGFORGE_APP_PORT"
	EnvLogLevel    = "LISTINGFORGE_LOG_LEVEL"
	EnvLogFormat   = "LISTINGFORGE_LOG_FORMAT"
	EnvDBDSN       = "LISTINGFORGE_DB_DSN"
	EnvDBHost      = "LISTINGFORGE_DB_HOST"
	EnvDBPort      = "LISTINGFORGE_DB_PORT"
	EnvDBUser      = "LISTINGFORGE_DB_USER"
	EnvDBPassword  = "LISTINGFORGE_DB_PASSWORD"
	EnvDBName      = "LISTINGFORGE_DB_NAME"
	EnvRedisURL    = "LISTINGFORGE_REDIS_URL"
	EnvRedisAddr   = "LISTINGFORGE_REDIS_ADDR"
	EnvJWTSecret   = "LISTINGFORGE_JWT_SECRET"
	EnvJWTIssuer   = "LISTINGFORGE_JWT_ISSUER"
	EnvAutoMigrate = "LISTINGFORGE_AUTO_MIGRATE"

	EnvGenerationBaseURL = "LISTINGFORGE_GENERATION_BASE_URL"
	EnvGenerationAPIKey  = "LISTINGFORGE_GENERATION_API_KEY"
	EnvStripeAPIKey      = "LISTINGFORGE_STRIPE_API_KEY"
	EnvStripeSecret      = "LISTINGFORGE_STRIPE_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
