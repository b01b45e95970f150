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
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Checkout      CheckoutConfig
	Gateway       GatewayConfig
	Webhook       WebhookConfig
	Cron          CronConfig
	Email         EmailConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"INGRESSO_APP_ENV" required:"true"`
	Port         string `envconfig:"INGRESSO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"INGRESSO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"INGRESSO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"INGRESSO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"INGRESSO_DB_DSN"`
	Driver string `envconfig:"INGRESSO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"INGRESSO_DB_HOST"`
	LegacyPort     int    `envconfig:"INGRESSO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"INGRESSO_DB_USER"`
	LegacyPassword string `envconfig:"INGRESSO_DB_PASSWORD"`
	LegacyName     string `envconfig:"INGRESSO_DB_NAME"`
	LegacySSLMode  string `envconfig:"INGRESSO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"INGRESSO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"INGRESSO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"INGRESSO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"INGRESSO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"INGRESSO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"INGRESSO_REDIS_ADDR"`
	Password     string        `envconfig:"INGRESSO_REDIS_PASSWORD"`
	DB           int           `envconfig:"INGRESSO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"INGRESSO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"INGRESSO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"INGRESSO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"INGRESSO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"INGRESSO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"INGRESSO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"INGRESSO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"INGRESSO_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"INGRESSO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"INGRESSO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"INGRESSO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"INGRESSO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"INGRESSO_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"INGRESSO_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"INGRESSO_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"INGRESSO_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"INGRESSO_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"INGRESSO_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"INGRESSO_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"INGRESSO_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig tunes order creation and expiry behavior.
type CheckoutConfig struct {
	HoldTTL           time.Duration `envconfig:"INGRESSO_CHECKOUT_HOLD_TTL" default:"30m"`
	ServiceFeePercent float64       `envconfig:"INGRESSO_CHECKOUT_SERVICE_FEE_PERCENT" default:"10"`
	MaxItemsPerOrder  int           `envconfig:"INGRESSO_CHECKOUT_MAX_ITEMS_PER_ORDER" default:"10"`
}

// GatewayConfig points at the payment provider API.
type GatewayConfig struct {
	BaseURL     string        `envconfig:"INGRESSO_GATEWAY_BASE_URL" required:"true"`
	AccessToken string        `envconfig:"INGRESSO_GATEWAY_ACCESS_TOKEN" required:"true"`
	Timeout     time.Duration `envconfig:"INGRESSO_GATEWAY_TIMEOUT" default:"15s"`
}

// WebhookConfig guards the inbound gateway webhook route.
type WebhookConfig struct {
	AuthToken      string        `envconfig:"INGRESSO_WEBHOOK_AUTH_TOKEN"`
	IdempotencyTTL time.Duration `envconfig:"INGRESSO_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"INGRESSO_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"INGRESSO_CRON_LOCK_TTL" default:"4m"`
}

type EmailConfig struct {
	From        string        `envconfig:"INGRESSO_EMAIL_FROM" default:"tickets@ingresso.local"`
	SendTimeout time.Duration `envconfig:"INGRESSO_EMAIL_SEND_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"INGRESSO_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"INGRESSO_PUBSUB_ORDERS_TOPIC" default:"ing-order-events"`
	OrdersSubscription string `envconfig:"INGRESSO_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"INGRESSO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"INGRESSO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"INGRESSO_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
	for _, envVar := range legacyDBEnvVars {
		if legacyValues[envVar] == "" {
			missing = append(missing, envVar)
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
