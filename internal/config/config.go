package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr           string        `yaml:"addr"`
	Env            string        `yaml:"env"`
	APITimeout     time.Duration `yaml:"timeout"`
	LogLevel       string        `yaml:"log_level"`
	SeedSampleData bool          `yaml:"seed_sample_data"`
	MigrateOnStart bool          `yaml:"migrate_on_start"`
	CORS           CORSConfig    `yaml:"cors"`

	// TrustProxy takes the client address from X-Forwarded-For, X-Real-IP
	// and True-Client-IP. Only enable behind a proxy that sets them.
	TrustProxy bool `yaml:"trust_proxy"`

	// DatabaseURL selects the persistent store. It only ever comes from the
	// process environment (DATABASE_URL), never from the YAML file.
	DatabaseURL string `yaml:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoadConfig builds the configuration from the environment (after loading a
// .env file when one exists) and then applies the YAML file at path, if any.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; variables already set in the environment win
	_ = godotenv.Load()

	cfg := &Config{
		Addr:           getEnv("FEEDBACK_ADDR", ":8080"),
		Env:            getEnv("FEEDBACK_ENV", "development"),
		APITimeout:     15 * time.Second,
		LogLevel:       getEnv("FEEDBACK_LOG_LEVEL", "info"),
		SeedSampleData: getEnvBool("FEEDBACK_SEED", true),
		MigrateOnStart: true,
		TrustProxy:     getEnvBool("FEEDBACK_TRUST_PROXY", false),
		CORS:           CORSConfig{AllowedOrigins: []string{"*"}},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	return cfg, nil
}

// Validate reports configuration that would keep the server from starting.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", c.APITimeout))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
