package config

// EnvPrefix is handed to envconfig. Every field carries an explicit
// envconfig tag so the prefix only matters for untagged fields.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv         = "STOREFRONT_APP_ENV"
	EnvPort           = "STOREFRONT_APP_PORT"
	EnvLogLevel       = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat      = "STOREFRONT_LOG_FORMAT"
	EnvRequestTimeout = "STOREFRONT_REQUEST_TIMEOUT"

	EnvDBDSN      = "STOREFRONT_DB_DSN"
	EnvDBHost     = "STOREFRONT_DB_HOST"
	EnvDBPort     = "STOREFRONT_DB_PORT"
	EnvDBUser     = "STOREFRONT_DB_USER"
	EnvDBPassword = "STOREFRONT_DB_PASSWORD"
	EnvDBName     = "STOREFRONT_DB_NAME"

	EnvTenantDomainSources = "STOREFRONT_TENANT_DOMAIN_SOURCES"
	EnvTenantDevAliases    = "STOREFRONT_TENANT_DEV_ALIASES"

	EnvCartTTL          = "STOREFRONT_CART_TTL"
	EnvCartTokenSources = "STOREFRONT_CART_TOKEN_SOURCES"
	EnvCartCASRetries   = "STOREFRONT_CART_CAS_RETRIES"
	EnvCartMaxLineQty   = "STOREFRONT_CART_MAX_LINE_QTY"

	EnvOrderNumberAttempts = "STOREFRONT_ORDER_NUMBER_ATTEMPTS"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvGCPProjectID      = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
