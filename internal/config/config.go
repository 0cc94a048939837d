package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/wbuist/mgu-api-integration/pkg/config"
	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
)

// MyGadgetUmbrella environments. Each environment carries its own API and
// auth base URLs; credentials are issued per environment and are not
// interchangeable.
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// Endpoints is the resolved pair of base URLs for one MGU environment.
type Endpoints struct {
	APIBaseURL string
	AuthURL    string
}

var environmentEndpoints = map[string]Endpoints{
	EnvSandbox: {
		APIBaseURL: "https://sandbox.api.mygadgetumbrella.com/sbapi",
		AuthURL:    "https://sandbox.api.mygadgetumbrella.com/sbauth",
	},
	EnvProduction: {
		APIBaseURL: "https://api.mygadgetumbrella.com/api",
		AuthURL:    "https://api.mygadgetumbrella.com/auth",
	},
}

// Config holds all configuration for the quote flow service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// MyGadgetUmbrella gateway
	MGUEnvironment  string `env:"MGU_ENVIRONMENT" envDefault:"sandbox"`
	MGUClientID     string `env:"MGU_CLIENT_ID"`
	MGUClientSecret string `env:"MGU_CLIENT_SECRET"`

	// Optional base URL overrides (integration environments, local stubs).
	// When set, both must be set; they take precedence over MGU_ENVIRONMENT.
	MGUAPIBaseURL string `env:"MGU_API_BASE_URL"`
	MGUAuthURL    string `env:"MGU_AUTH_URL"`

	// Outbound HTTP
	MGUTimeoutSeconds  int `env:"MGU_TIMEOUT_SECONDS" envDefault:"30"`
	MGUMaxConnsPerHost int `env:"MGU_MAX_CONNS_PER_HOST" envDefault:"100"`

	// PostgreSQL (workflow audit trail)
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"quoteflow"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"quoteflow_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"quoteflow_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis (token cache, pending payments, sessions)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Pending payment and session TTLs (seconds)
	PendingPaymentTTL int `env:"PENDING_PAYMENT_TTL_SECONDS" envDefault:"3600"`
	SessionTTL        int `env:"SESSION_TTL_SECONDS" envDefault:"86400"`

	// Circuit breaker settings for outbound MGU calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load quoteflow config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return apperrors.Config(fmt.Sprintf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.MGUClientID == "" {
		return apperrors.Config("MGU_CLIENT_ID is required")
	}
	if c.MGUClientSecret == "" {
		return apperrors.Config("MGU_CLIENT_SECRET is required")
	}
	if _, ok := environmentEndpoints[c.MGUEnvironment]; !ok {
		return apperrors.Config(fmt.Sprintf("unknown MGU environment %q (want %s or %s)", c.MGUEnvironment, EnvSandbox, EnvProduction))
	}
	if (c.MGUAPIBaseURL == "") != (c.MGUAuthURL == "") {
		return apperrors.Config("MGU_API_BASE_URL and MGU_AUTH_URL must both be set or both be empty")
	}
	for name, rawURL := range map[string]string{
		"MGU_API_BASE_URL": c.MGUAPIBaseURL,
		"MGU_AUTH_URL":     c.MGUAuthURL,
	} {
		if rawURL == "" {
			continue
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return apperrors.Config(fmt.Sprintf("invalid %s %q: %v", name, rawURL, err))
		}
	}
	if c.PostgresHost == "" {
		return apperrors.Config("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return apperrors.Config("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return apperrors.Config("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return apperrors.Config(fmt.Sprintf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate))
	}
	return nil
}

// MGUEndpoints resolves the API and auth base URLs for the configured
// environment, honoring explicit overrides.
func (c *Config) MGUEndpoints() Endpoints {
	if c.MGUAPIBaseURL != "" {
		return Endpoints{APIBaseURL: c.MGUAPIBaseURL, AuthURL: c.MGUAuthURL}
	}
	return environmentEndpoints[c.MGUEnvironment]
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RedisAddr returns the Redis address string.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
