package config

// EnvPrefix is empty because every field spells out its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names shared with tests and the DSN fallback error.
const (
	EnvAppEnv   = "KIOSKO_APP_ENV"
	EnvPort     = "KIOSKO_APP_PORT"
	EnvDBDSN    = "KIOSKO_DB_DSN"
	EnvDBHost   = "KIOSKO_DB_HOST"
	EnvDBUser   = "KIOSKO_DB_USER"
	EnvDBName   = "KIOSKO_DB_NAME"
	EnvRedisURL = "KIOSKO_REDIS_URL"

	EnvJWTSecret  = "KIOSKO_JWT_SECRET"
	EnvJWTIssuer  = "KIOSKO_JWT_ISSUER"
	EnvJWTExpMins = "KIOSKO_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "KIOSKO_GCP_PROJECT_ID"

	EnvDeliveryToken   = "KIOSKO_DELIVERY_TOKEN"
	EnvSquareToken     = "KIOSKO_SQUARE_ACCESS_TOKEN"
	EnvMinPayableCents = "KIOSKO_CHECKOUT_MIN_PAYABLE_CENTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
