package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	Gateway       GatewayConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Checkout      CheckoutConfig
	Delivery      DeliveryConfig
	Geocode       GeocodeConfig
	Square        SquareConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Bootstrap     BootstrapConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KIOSKO_APP_ENV" required:"true"`
	Port         string `envconfig:"KIOSKO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KIOSKO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KIOSKO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KIOSKO_SERVICE_KIND" default:"api"`
}

// GatewayConfig authenticates the storefront gateway. Buyer-facing traffic
// arrives through that trusted service, not from end users directly.
type GatewayConfig struct {
	ServiceToken string `envconfig:"KIOSKO_GATEWAY_SERVICE_TOKEN"`
}

type DBConfig struct {
	DSN    string `envconfig:"KIOSKO_DB_DSN"`
	Driver string `envconfig:"KIOSKO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KIOSKO_DB_HOST"`
	LegacyPort     int    `envconfig:"KIOSKO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KIOSKO_DB_USER"`
	LegacyPassword string `envconfig:"KIOSKO_DB_PASSWORD"`
	LegacyName     string `envconfig:"KIOSKO_DB_NAME"`
	LegacySSLMode  string `envconfig:"KIOSKO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KIOSKO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KIOSKO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KIOSKO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KIOSKO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KIOSKO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KIOSKO_REDIS_ADDR"`
	Password     string        `envconfig:"KIOSKO_REDIS_PASSWORD"`
	DB           int           `envconfig:"KIOSKO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KIOSKO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KIOSKO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KIOSKO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KIOSKO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KIOSKO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"KIOSKO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KIOSKO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"KIOSKO_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KIOSKO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KIOSKO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KIOSKO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KIOSKO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KIOSKO_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow    time.Duration `envconfig:"KIOSKO_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginNameLimit int           `envconfig:"KIOSKO_AUTH_RATE_LIMIT_LOGIN_NAME_LIMIT" default:"5"`
	LoginIPLimit   int           `envconfig:"KIOSKO_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KIOSKO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KIOSKO_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig carries the order placement policy knobs.
type CheckoutConfig struct {
	// MinPayableCents is the smallest amount the payment provider accepts.
	// Orders whose amount due lands strictly between zero and this value are
	// rejected by policy and rolled back.
	MinPayableCents   int64         `envconfig:"KIOSKO_CHECKOUT_MIN_PAYABLE_CENTS" default:"6000"`
	Currency          string        `envconfig:"KIOSKO_CHECKOUT_CURRENCY" default:"USD"`
	PendingPaymentTTL time.Duration `envconfig:"KIOSKO_CHECKOUT_PENDING_PAYMENT_TTL" default:"15m"`
	// StuckProcessingGrace bounds how long a paid delivery order may sit in
	// processing without a claim id before the cleanup job cancels it.
	StuckProcessingGrace time.Duration `envconfig:"KIOSKO_CHECKOUT_STUCK_PROCESSING_GRACE" default:"20m"`
}

type DeliveryConfig struct {
	BaseURL   string        `envconfig:"KIOSKO_DELIVERY_BASE_URL" default:"https://b2b.taxi.yandex.net"`
	Token     string        `envconfig:"KIOSKO_DELIVERY_TOKEN"`
	TaxiClass string        `envconfig:"KIOSKO_DELIVERY_TAXI_CLASS" default:"express"`
	Timeout   time.Duration `envconfig:"KIOSKO_DELIVERY_TIMEOUT" default:"10s"`
}

type GeocodeConfig struct {
	BaseURL   string        `envconfig:"KIOSKO_GEOCODE_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	UserAgent string        `envconfig:"KIOSKO_GEOCODE_USER_AGENT" default:"kiosko-backend/1.0"`
	Timeout   time.Duration `envconfig:"KIOSKO_GEOCODE_TIMEOUT" default:"10s"`
}

type SquareConfig struct {
	AccessToken         string `envconfig:"KIOSKO_SQUARE_ACCESS_TOKEN"`
	Env                 string `envconfig:"KIOSKO_SQUARE_ENV" default:"sandbox"`
	LocationID          string `envconfig:"KIOSKO_SQUARE_LOCATION_ID"`
	WebhookSignatureKey string `envconfig:"KIOSKO_SQUARE_WEBHOOK_SIGNATURE_KEY"`
	RedirectURL         string `envconfig:"KIOSKO_SQUARE_REDIRECT_URL"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KIOSKO_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"KIOSKO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KIOSKO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrderEventsTopic        string `envconfig:"KIOSKO_PUBSUB_ORDER_EVENTS_TOPIC" default:"ko-order-events"`
	OrderEventsSubscription string `envconfig:"KIOSKO_PUBSUB_ORDER_EVENTS_SUBSCRIPTION" default:"ko-order-events-analytics"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"KIOSKO_BIGQUERY_DATASET" default:"kiosko"`
	SalesTable         string `envconfig:"KIOSKO_BIGQUERY_SALES_TABLE" default:"order_sales"`
	CancellationsTable string `envconfig:"KIOSKO_BIGQUERY_CANCELLATIONS_TABLE" default:"order_cancellations"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"KIOSKO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"KIOSKO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"KIOSKO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionAge   time.Duration `envconfig:"KIOSKO_OUTBOX_RETENTION_AGE" default:"720h"`
}

type CronConfig struct {
	PendingExpiryInterval   time.Duration `envconfig:"KIOSKO_CRON_PENDING_EXPIRY_INTERVAL" default:"5m"`
	DeliverySyncInterval    time.Duration `envconfig:"KIOSKO_CRON_DELIVERY_SYNC_INTERVAL" default:"10m"`
	StuckCleanupInterval    time.Duration `envconfig:"KIOSKO_CRON_STUCK_CLEANUP_INTERVAL" default:"30m"`
	OutboxRetentionInterval time.Duration `envconfig:"KIOSKO_CRON_OUTBOX_RETENTION_INTERVAL" default:"24h"`
	LockTTL                 time.Duration `envconfig:"KIOSKO_CRON_LOCK_TTL" default:"15m"`
}

// BootstrapConfig seeds the first admin operator when the table is empty.
type BootstrapConfig struct {
	AdminLogin    string `envconfig:"KIOSKO_BOOTSTRAP_ADMIN_LOGIN"`
	AdminPassword string `envconfig:"KIOSKO_BOOTSTRAP_ADMIN_PASSWORD"`
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
