package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const devJWTSecret = "tabib-development-secret"

type Config struct {
	Env            string `mapstructure:"ENV"`
	Port           string `mapstructure:"API_PORT"`
	StoreBackend   string `mapstructure:"STORE_BACKEND"`
	MongoURI       string `mapstructure:"MONGO_URI"`
	MongoDatabase  string `mapstructure:"MONGO_DATABASE"`
	ChangeFeed     string `mapstructure:"CHANGE_FEED"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	JWTTTLHours    int    `mapstructure:"JWT_TTL_HOURS"`
	AdminEmails    string `mapstructure:"ADMIN_EMAILS"`
	CORSOrigins    string `mapstructure:"CORS_ORIGINS"`
	PhoneRegion    string `mapstructure:"DEFAULT_PHONE_REGION"`
	TextbeltAPIKey string `mapstructure:"TEXTBELT_API_KEY"`
	SMSEnabled     bool   `mapstructure:"SMS_ENABLED"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	LogFormat      string `mapstructure:"LOG_FORMAT"`
	LogFile        string `mapstructure:"LOG_FILE"`
	MaxLoginTries  int    `mapstructure:"MAX_LOGIN_ATTEMPTS"`

	// DevSecret is set when JWT_SECRET was empty and the development
	// fallback is in use.
	DevSecret bool `mapstructure:"-"`
}

var keys = []string{
	"ENV", "API_PORT", "STORE_BACKEND", "MONGO_URI", "MONGO_DATABASE", "CHANGE_FEED",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "JWT_SECRET", "JWT_TTL_HOURS",
	"ADMIN_EMAILS", "CORS_ORIGINS", "DEFAULT_PHONE_REGION", "TEXTBELT_API_KEY",
	"SMS_ENABLED", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "MAX_LOGIN_ATTEMPTS",
}

// Load reads the configuration from the environment. The caller is expected
// to have loaded any .env file beforehand.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("STORE_BACKEND", "mongo")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "tabib")
	v.SetDefault("CHANGE_FEED", "none")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_TTL_HOURS", 24)
	v.SetDefault("ADMIN_EMAILS", "admin@tabib.com")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DEFAULT_PHONE_REGION", "MA")
	v.SetDefault("SMS_ENABLED", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_LOGIN_ATTEMPTS", 5)

	for _, k := range keys {
		v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDev() {
			cfg.LogFormat = "console"
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "mongo", "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be mongo or memory, got %q", c.StoreBackend)
	}
	switch c.ChangeFeed {
	case "none", "mongo":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("CHANGE_FEED=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("CHANGE_FEED must be none, mongo or redis, got %q", c.ChangeFeed)
	}
	if c.ChangeFeed == "mongo" && c.StoreBackend != "mongo" {
		return fmt.Errorf("CHANGE_FEED=mongo requires STORE_BACKEND=mongo")
	}
	if c.JWTSecret == "" {
		if !c.IsDev() {
			return fmt.Errorf("JWT_SECRET is required")
		}
		c.JWTSecret = devJWTSecret
		c.DevSecret = true
	}
	if c.JWTTTLHours <= 0 {
		return fmt.Errorf("JWT_TTL_HOURS must be positive")
	}
	if c.MaxLoginTries <= 0 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// AdminEmailList returns the admin allow-list. Entries are trimmed but keep
// their case.
func (c *Config) AdminEmailList() []string {
	return splitList(c.AdminEmails)
}

func (c *Config) CORSOriginList() []string {
	return splitList(c.CORSOrigins)
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
