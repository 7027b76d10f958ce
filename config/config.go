package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	GoEnv    string `env:"GO_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"` // postgres or sqlite
	DatabaseURL    string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"` // empty keeps guest carts in memory
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Hosted auth provider
	AuthURL         string `env:"AUTH_URL"`
	AuthAnonKey     string `env:"AUTH_ANON_KEY"`
	AuthJWTSecret   string `env:"AUTH_JWT_SECRET"`
	AuthJWTIssuer   string `env:"AUTH_JWT_ISSUER"` // defaults to AUTH_URL + /auth/v1
	AuthJWTAudience string `env:"AUTH_JWT_AUDIENCE" envDefault:"authenticated"`

	SessionCookieName string `env:"SESSION_COOKIE_NAME" envDefault:"sb-access-token"`
	RefreshCookieName string `env:"REFRESH_COOKIE_NAME" envDefault:"sb-refresh-token"`
	GuestCookieName   string `env:"GUEST_COOKIE_NAME" envDefault:"guest_id"`
	CookieSecure      bool   `env:"COOKIE_SECURE" envDefault:"false"`
	SiteURL           string `env:"SITE_URL" envDefault:"http://localhost:3000"`
	AdminLoginPath    string `env:"ADMIN_LOGIN_PATH" envDefault:"/admin-login"`

	AWSRegion          string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSS3Bucket        string `env:"AWS_S3_BUCKET"` // empty stores uploads on local disk
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	UploadDir          string `env:"UPLOAD_DIR" envDefault:"./uploads"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","` // empty disables order events
	KafkaOrderTopic string   `env:"KAFKA_ORDER_TOPIC" envDefault:"store.orders"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// EnvFile is the dotenv file that was loaded, empty when only the process environment was used
	EnvFile string `env:"-"`
}

var currentConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" {
		goEnv = "development"
	}

	// Environment-specific file first, then .env. Neither is required:
	// in production variables are set directly.
	loaded := ""
	envFile := fmt.Sprintf(".env.%s", goEnv)
	if err := godotenv.Load(envFile); err == nil {
		loaded = envFile
	} else if err := godotenv.Load(); err == nil {
		loaded = ".env"
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.EnvFile = loaded
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = cfg
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AuthJWTIssuer == "" && c.AuthURL != "" {
		c.AuthJWTIssuer = strings.TrimRight(c.AuthURL, "/") + "/auth/v1"
	}
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.IsProduction() {
		if c.AuthJWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required in production")
		}
		if c.AuthURL == "" {
			return fmt.Errorf("AUTH_URL is required in production")
		}
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// UsesS3 reports whether uploads go to a bucket rather than local disk
func (c *Config) UsesS3() bool {
	return c.AWSS3Bucket != ""
}

// GetConfig returns the configuration loaded by Load or set by SetConfig
func GetConfig() *Config {
	return currentConfig
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(cfg *Config) {
	currentConfig = cfg
}

// NewTestConfig returns a configuration suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		GoEnv:              "test",
		Port:               "8080",
		LogLevel:           "error",
		DatabaseDriver:     "sqlite",
		DatabaseURL:        ":memory:",
		AuthURL:            "http://auth.test",
		AuthAnonKey:        "anon-key",
		AuthJWTSecret:      "test-jwt-secret-with-enough-length",
		AuthJWTIssuer:      "http://auth.test/auth/v1",
		AuthJWTAudience:    "authenticated",
		SessionCookieName:  "sb-access-token",
		RefreshCookieName:  "sb-refresh-token",
		GuestCookieName:    "guest_id",
		SiteURL:            "http://localhost:3000",
		AdminLoginPath:     "/admin-login",
		AWSRegion:          "us-east-1",
		UploadDir:          os.TempDir(),
		KafkaOrderTopic:    "store.orders",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
	}
}
