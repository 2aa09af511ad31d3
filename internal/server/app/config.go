package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds the complete API server configuration, loadable from
// environment variables (MUNCH_API_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage     string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (MUNCH_API_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	SeedPromos  bool   `default:"true" usage:"Load the bundled promo codes on start" flag:"seed-promos"`
	JWT         JWTConfig
	SMTP        SMTPConfig
	RateLimit   RateLimitConfig
	AuthLimit   AuthLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// JWTConfig controls access token signing.
type JWTConfig struct {
	Secret string        `usage:"HMAC secret for access tokens (MUNCH_API_JWT_SECRET or JWT_SECRET_KEY)" flag:"jwt-secret"`
	TTL    time.Duration `default:"24h" usage:"Access token lifetime" flag:"jwt-ttl"`
}

// SMTPConfig configures order confirmation mail. An empty host logs mail
// instead of sending it.
type SMTPConfig struct {
	Host     string        `usage:"SMTP server host" flag:"smtp-host"`
	Port     int           `default:"587" usage:"SMTP server port" flag:"smtp-port"`
	Username string        `usage:"SMTP username" flag:"smtp-username"`
	Password string        `usage:"SMTP password" flag:"smtp-password"`
	Sender   string        `default:"munchifyorg@gmail.com" usage:"From address of confirmation mail" flag:"smtp-sender"`
	Timeout  time.Duration `default:"10s" usage:"SMTP send timeout" flag:"smtp-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// AuthLimitConfig is the stricter limit of the login and register routes.
type AuthLimitConfig struct {
	Max    int           `default:"10" usage:"Max credential requests per window" flag:"auth-limit-max"`
	Window time.Duration `default:"1m" usage:"Credential rate limit window" flag:"auth-limit-window"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"http://localhost:5173,http://127.0.0.1:5173" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "MUNCH_API",
		Files:     []string{"config.yaml", "/etc/munchify/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's MUNCH_API_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.JWT.Secret == "" {
		c.JWT.Secret = os.Getenv("JWT_SECRET_KEY")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set MUNCH_API_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required: set MUNCH_API_JWT_SECRET or JWT_SECRET_KEY")
	}
	return nil
}
