package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Minimum length of JWT_SECRET outside development.
const minSecretLen = 32

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	AuthMode          string        `mapstructure:"AUTH_MODE"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir     string        `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	JWTTTL            time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int64         `mapstructure:"RATE_LIMIT_BURST"`
	StockScanInterval time.Duration `mapstructure:"STOCK_SCAN_INTERVAL"`
	OTelEndpoint      string        `mapstructure:"OTEL_ENDPOINT"`
	OTelSampleRate    float64       `mapstructure:"OTEL_SAMPLE_RATE"`
}

var envKeys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MIGRATIONS_DIR", "JWT_SECRET", "JWT_TTL", "CORS_ORIGINS", "RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST", "STOCK_SCAN_INTERVAL", "OTEL_ENDPOINT", "OTEL_SAMPLE_RATE",
}

func Load() (*Config, error) {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("JWT_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("STOCK_SCAN_INTERVAL", "15m")
	v.SetDefault("OTEL_SAMPLE_RATE", 1.0)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.ResolvedAuthMode() == "development" {
		log.Println("WARNING: DevAuthMiddleware is active, requests without a token get an admin session.")
		log.Println("WARNING: Set ENV=production and JWT_SECRET before exposing this server.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set, otherwise "development" for
// ENV=development and "token" for every other environment.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "token"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "token" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"token\", got %q", mode)
	}
	if c.IsProduction() && mode == "development" {
		return fmt.Errorf("AUTH_MODE=development is not allowed in production")
	}
	if mode == "token" && len(c.JWTSecret) < minSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes when AUTH_MODE is \"token\"", minSecretLen)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTelSampleRate)
	}
	return nil
}
