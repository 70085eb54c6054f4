package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Tenant    TenantConfig
	Cart      CartConfig
	Order     OrderConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Metrics   MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Cart.TTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartTTL)
	}
	if c.Cart.CASRetries <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartCASRetries)
	}
	if c.Cart.MaxLineQty <= 0 || c.Cart.MaxLineQty > math.MaxInt32 {
		return fmt.Errorf("%s must be between 1 and %d", EnvCartMaxLineQty, math.MaxInt32)
	}
	if c.Order.NumberAttempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvOrderNumberAttempts)
	}
	if len(c.Tenant.DomainSources) == 0 {
		return fmt.Errorf("%s must list at least one source", EnvTenantDomainSources)
	}
	if len(c.Cart.TokenSources) == 0 {
		return fmt.Errorf("%s must list at least one source", EnvCartTokenSources)
	}
	return nil
}

type AppConfig struct {
	Env            string        `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port           string        `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel       string        `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack   bool          `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	RequestTimeout time.Duration `envconfig:"STOREFRONT_REQUEST_TIMEOUT" default:"15s"`
	AutoMigrate    bool          `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	CORSOrigins    []string      `envconfig:"STOREFRONT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig points at the site directory database. Tenant databases live on
// the same server and reuse its credentials.
type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// TenantConfig controls how a request is mapped to a site and how tenant
// pools are sized.
type TenantConfig struct {
	// DomainSources is the ordered list of request attributes consulted for
	// the tenant domain: origin, forwarded_host, host.
	DomainSources []string `envconfig:"STOREFRONT_TENANT_DOMAIN_SOURCES" default:"origin"`
	// DevAliases maps development hosts to real site domains,
	// e.g. "localhost:domain2f.microgem.io.vn".
	DevAliases map[string]string `envconfig:"STOREFRONT_TENANT_DEV_ALIASES"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_TENANT_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_TENANT_MAX_IDLE_CONNS" default:"2"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_TENANT_CONN_MAX_IDLE_TIME" default:"5m"`
}

type CartConfig struct {
	TTL          time.Duration `envconfig:"STOREFRONT_CART_TTL" default:"72h"`
	TokenSources []string      `envconfig:"STOREFRONT_CART_TOKEN_SOURCES" default:"cookie,header,body"`
	CookieName   string        `envconfig:"STOREFRONT_CART_COOKIE_NAME" default:"cart_token"`
	CookieSecure bool          `envconfig:"STOREFRONT_CART_COOKIE_SECURE" default:"false"`
	CASRetries   int           `envconfig:"STOREFRONT_CART_CAS_RETRIES" default:"5"`
	MaxLineQty   int           `envconfig:"STOREFRONT_CART_MAX_LINE_QTY" default:"10000"`
}

type OrderConfig struct {
	NumberAttempts  int    `envconfig:"STOREFRONT_ORDER_NUMBER_ATTEMPTS" default:"5"`
	DefaultCurrency string `envconfig:"STOREFRONT_ORDER_DEFAULT_CURRENCY" default:"$"`
	DefaultMethod   string `envconfig:"STOREFRONT_ORDER_DEFAULT_METHOD" default:"COD"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type RateLimitConfig struct {
	CheckoutWindow     time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit    int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"20"`
	CheckoutEmailLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_EMAIL_LIMIT" default:"5"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
}

// PubSubConfig is optional. Without an orders topic, order events are not
// published.
type PubSubConfig struct {
	OrdersTopic string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC"`
}

func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.OrdersTopic) != ""
}

type MetricsConfig struct {
	Enabled bool `envconfig:"STOREFRONT_METRICS_ENABLED" default:"true"`
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

// TenantDSN rewrites the directory DSN so it points at dbName on the same
// server.
func (db DBConfig) TenantDSN(dbName string) (string, error) {
	dbName = strings.TrimSpace(dbName)
	if dbName == "" {
		return "", fmt.Errorf("tenant database name is required")
	}
	u, err := url.Parse(db.DSN)
	if err != nil {
		return "", fmt.Errorf("parsing directory dsn: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("directory dsn must be a postgres url")
	}
	u.Path = "/" + dbName
	u.RawPath = ""
	return u.String(), nil
}
