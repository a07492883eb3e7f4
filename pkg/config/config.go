package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "AURIC"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"AURIC_APP_ENV" required:"true"`
	Port         string `envconfig:"AURIC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"AURIC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AURIC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AURIC_DB_DSN"`
	Driver string `envconfig:"AURIC_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"AURIC_DB_HOST"`
	Port     int    `envconfig:"AURIC_DB_PORT" default:"5432"`
	User     string `envconfig:"AURIC_DB_USER"`
	Password string `envconfig:"AURIC_DB_PASSWORD"`
	Name     string `envconfig:"AURIC_DB_NAME"`
	SSLMode  string `envconfig:"AURIC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AURIC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AURIC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AURIC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AURIC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if strings.TrimSpace(d.DSN) != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either AURIC_DB_DSN or host/user/name parts are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"AURIC_REDIS_URL"`
	Address      string        `envconfig:"AURIC_REDIS_ADDR"`
	Password     string        `envconfig:"AURIC_REDIS_PASSWORD"`
	DB           int           `envconfig:"AURIC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AURIC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AURIC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AURIC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AURIC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AURIC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AURIC_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AURIC_JWT_ISSUER" default:"auric-api"`
	ExpirationMinutes int    `envconfig:"AURIC_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// GatewayConfig points at the external payment gateway. The gateway path is
// unavailable when key or secret is missing; COD continues to work.
type GatewayConfig struct {
	BaseURL   string        `envconfig:"AURIC_GATEWAY_BASE_URL" default:"https://api.gateway.example.com"`
	KeyID     string        `envconfig:"AURIC_GATEWAY_KEY_ID"`
	KeySecret string        `envconfig:"AURIC_GATEWAY_KEY_SECRET"`
	Timeout   time.Duration `envconfig:"AURIC_GATEWAY_TIMEOUT" default:"10s"`
}

// Configured reports whether the gateway path can be used at all.
func (g GatewayConfig) Configured() bool {
	return strings.TrimSpace(g.KeyID) != "" && strings.TrimSpace(g.KeySecret) != ""
}

type GCPConfig struct {
	ProjectID string `envconfig:"AURIC_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrderEventsTopic string `envconfig:"AURIC_PUBSUB_ORDER_EVENTS_TOPIC" default:"order-events"`
}

// CheckoutConfig holds the pricing knobs applied at quote time. Values feed
// the totals frozen into each order at creation.
type CheckoutConfig struct {
	TaxRateBps            int           `envconfig:"AURIC_CHECKOUT_TAX_RATE_BPS" default:"300"`
	ShippingFeePaise      int64         `envconfig:"AURIC_CHECKOUT_SHIPPING_FEE_PAISE" default:"9900"`
	FreeShippingOverPaise int64         `envconfig:"AURIC_CHECKOUT_FREE_SHIPPING_OVER_PAISE" default:"500000"`
	WebhookIdempotencyTTL time.Duration `envconfig:"AURIC_CHECKOUT_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AURIC_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AURIC_AUTO_MIGRATE" default:"false"`
}
