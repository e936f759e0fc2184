package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Credits      CreditsConfig
	Generation   GenerationConfig
	Stripe       StripeConfig
	Webhooks     WebhooksConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.DB.ensureDSN(),
		cfg.Redis.validate(),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LISTINGFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"LISTINGFORGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LISTINGFORGE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LISTINGFORGE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LISTINGFORGE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"LISTINGFORGE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LISTINGFORGE_DB_DSN"`
	Driver string `envconfig:"LISTINGFORGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LISTINGFORGE_DB_HOST"`
	LegacyPort     int    `envconfig:"LISTINGFORGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LISTINGFORGE_DB_USER"`
	LegacyPassword string `envconfig:"LISTINGFORGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LISTINGFORGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LISTINGFORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LISTINGFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LISTINGFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LISTINGFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LISTINGFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"LISTINGFORGE_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LISTINGFORGE_REDIS_URL"`
	Address      string        `envconfig:"LISTINGFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"LISTINGFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LISTINGFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LISTINGFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LISTINGFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LISTINGFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LISTINGFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LISTINGFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) validate() error {
	if strings.TrimSpace(r.URL) == "" && strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("either %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}
	return nil
}

// JWTConfig describes the identity provider's access tokens. Tokens are minted
// upstream; this service only verifies them.
type JWTConfig struct {
	Secret string `envconfig:"LISTINGFORGE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"LISTINGFORGE_JWT_ISSUER" required:"true"`

	// Leeway absorbs clock skew between the identity provider and this service.
	Leeway time.Duration `envconfig:"LISTINGFORGE_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate  bool `envconfig:"LISTINGFORGE_AUTO_MIGRATE" default:"false"`
	SeedChannels bool `envconfig:"LISTINGFORGE_SEED_CHANNELS" default:"true"`
}

type CreditsConfig struct {
	// DefaultPlan is assigned to accounts provisioned on first contact.
	DefaultPlan string `envconfig:"LISTINGFORGE_CREDITS_DEFAULT_PLAN" default:"free"`
}

type GenerationConfig struct {
	BaseURL         string        `envconfig:"LISTINGFORGE_GENERATION_BASE_URL"`
	APIKey          string        `envconfig:"LISTINGFORGE_GENERATION_API_KEY"`
	Timeout         time.Duration `envconfig:"LISTINGFORGE_GENERATION_TIMEOUT" default:"90s"`
	RateLimitWindow time.Duration `envconfig:"LISTINGFORGE_GENERATION_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitMax    int           `envconfig:"LISTINGFORGE_GENERATION_RATE_LIMIT_MAX" default:"20"`
}

type StripeConfig struct {
	APIKey string `envconfig:"LISTINGFORGE_STRIPE_API_KEY"`
	Secret string `envconfig:"LISTINGFORGE_STRIPE_SECRET"`
	Env    string `envconfig:"LISTINGFORGE_STRIPE_ENV" default:"test"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"LISTINGFORGE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether the Stripe webhook surface can be mounted.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.Secret) != ""
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
