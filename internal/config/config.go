package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/abhishek-Rj/Topprix-sub001/pkg/config"
)

const defaultJWTSecret = "dev-secret-change-me"

// Identity verification modes.
const (
	IdentityOIDC = "oidc"
	IdentityHMAC = "hmac"
)

// Config holds all configuration for the storefront BFF.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"BFF_HTTP_PORT" envDefault:"8080"`

	// REST backend
	BackendURL      string        `env:"BACKEND_URL" envDefault:"http://localhost:5000"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	UpstreamRetries int           `env:"UPSTREAM_RETRIES" envDefault:"2"`
	GeocodeURL      string        `env:"GEOCODE_URL" envDefault:"http://localhost:5000/geocode"`

	// Identity
	IdentityMode   string        `env:"IDENTITY_MODE" envDefault:"hmac"`
	OIDCIssuer     string        `env:"OIDC_ISSUER"`
	OIDCClientID   string        `env:"OIDC_CLIENT_ID"`
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer      string        `env:"JWT_ISSUER"`
	SessionRoleTTL time.Duration `env:"SESSION_ROLE_TTL" envDefault:"30m"`

	// Consent marker store
	RedisURL         string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	ConsentTTL       time.Duration `env:"CONSENT_TTL" envDefault:"720h"`
	SlowRedisCommand time.Duration `env:"REDIS_SLOW_COMMAND_THRESHOLD" envDefault:"50ms"`

	// Events; an empty broker list disables publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Asset storage; without a Cloudinary URL uploads stay in memory.
	CloudinaryURL    string `env:"CLOUDINARY_URL"`
	CloudinaryFolder string `env:"CLOUDINARY_FOLDER" envDefault:"topprix"`
	AssetBaseURL     string `env:"ASSET_BASE_URL" envDefault:"http://localhost:8080"`

	// Listings
	CategoryCacheTTL   time.Duration `env:"CATEGORY_CACHE_TTL" envDefault:"5m"`
	FanOutLimit        int           `env:"FANOUT_LIMIT" envDefault:"1000"`
	FanOutConcurrency  int           `env:"FANOUT_CONCURRENCY" envDefault:"8"`
	RetailerStoreLimit int           `env:"RETAILER_STORE_LIMIT" envDefault:"100"`

	// HTTP surface
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	RateLimitRPS        float64       `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst      int           `env:"RATE_LIMIT_BURST" envDefault:"100"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	CORSMaxAge          int           `env:"CORS_MAX_AGE" envDefault:"3600"`
	MetricsAllowedCIDRs []string      `env:"METRICS_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16" envSeparator:","`
	PprofAllowedCIDRs   []string      `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8" envSeparator:","`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load bff config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	if c.UpstreamRetries < 0 {
		return fmt.Errorf("UPSTREAM_RETRIES must not be negative, got %d", c.UpstreamRetries)
	}

	switch c.IdentityMode {
	case IdentityOIDC:
		if c.OIDCIssuer == "" || c.OIDCClientID == "" {
			return fmt.Errorf("OIDC_ISSUER and OIDC_CLIENT_ID are required when IDENTITY_MODE=oidc")
		}
	case IdentityHMAC:
		if c.Environment != "development" && c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be changed from default value in %s environment", c.Environment)
		}
	default:
		return fmt.Errorf("IDENTITY_MODE must be %q or %q, got %q", IdentityOIDC, IdentityHMAC, c.IdentityMode)
	}

	if c.FanOutLimit < 1 {
		return fmt.Errorf("FANOUT_LIMIT must be at least 1, got %d", c.FanOutLimit)
	}
	if c.FanOutConcurrency < 1 {
		return fmt.Errorf("FANOUT_CONCURRENCY must be at least 1, got %d", c.FanOutConcurrency)
	}
	if c.RetailerStoreLimit < 1 {
		return fmt.Errorf("RETAILER_STORE_LIMIT must be at least 1, got %d", c.RetailerStoreLimit)
	}
	if c.ConsentTTL <= 0 {
		return fmt.Errorf("CONSENT_TTL must be positive, got %s", c.ConsentTTL)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %g", c.OTELSampleRate)
	}
	return nil
}
