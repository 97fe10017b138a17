package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Auth        AuthConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig controls bearer token issuance and verification.
type AuthConfig struct {
	Secret   string        `usage:"HS256 signing secret (STOREFRONT_AUTH_SECRET or JWT_SECRET)" flag:"auth-secret"`
	TokenTTL time.Duration `default:"168h" usage:"Lifetime of issued tokens" flag:"token-ttl"`
}

// KafkaConfig controls the outbox relay. The relay is disabled when no
// brokers are configured; events then stay in the outbox table.
type KafkaConfig struct {
	Brokers      string        `usage:"Comma-separated Kafka broker addresses" flag:"kafka-brokers"`
	PollInterval time.Duration `default:"1s" usage:"Outbox poll interval" flag:"outbox-poll-interval"`
	BatchSize    int           `default:"100" usage:"Outbox rows published per batch" flag:"outbox-batch-size"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and flags, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided variables with standard names
// (DATABASE_URL, PORT, JWT_SECRET) onto the prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = os.Getenv("JWT_SECRET")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	case c.Auth.Secret == "":
		return errors.New("token secret is required: set STOREFRONT_AUTH_SECRET or JWT_SECRET")
	case c.Auth.TokenTTL <= 0:
		return errors.Errorf("token TTL must be positive, got %s", c.Auth.TokenTTL)
	case c.Kafka.BatchSize <= 0:
		return errors.Errorf("outbox batch size must be positive, got %d", c.Kafka.BatchSize)
	}
	return nil
}
