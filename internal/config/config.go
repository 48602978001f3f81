package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	TLSCert     string
	TLSKey      string
	DatabaseURL string
	TokenKey    []byte
	LinkTTL     time.Duration

	Engine        string // exec or http
	EngineURL     string
	EngineCmd     string
	EngineTimeout time.Duration

	SumThreshold float64
	SumLimit     float64

	RateLimit float64 // requests per second per client
	RateBurst int

	LogFile  string
	LogLevel string
}

// Load reads .env files (when present) and then the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := &Config{
		Addr:        env("WEBNORM_ADDR", ":8080"),
		TLSCert:     os.Getenv("TLS_CERT"),
		TLSKey:      os.Getenv("TLS_KEY"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		TokenKey:    []byte(os.Getenv("TOKEN_KEY")),
		Engine:      env("NORM_ENGINE", "exec"),
		EngineURL:   os.Getenv("NORM_ENGINE_URL"),
		EngineCmd:   os.Getenv("NORM_ENGINE_CMD"),
		LogFile:     os.Getenv("LOG_FILE"),
		LogLevel:    env("LOG_LEVEL", "info"),
	}

	var err error
	if c.LinkTTL, err = durationEnv("LINK_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if c.EngineTimeout, err = durationEnv("NORM_ENGINE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if c.SumThreshold, err = floatEnv("SUM_THRESHOLD", 90); err != nil {
		return nil, err
	}
	if c.SumLimit, err = floatEnv("NORM_SUM_LIMIT", 100.1); err != nil {
		return nil, err
	}
	if c.RateLimit, err = floatEnv("RATE_LIMIT", 2); err != nil {
		return nil, err
	}
	burst, err := floatEnv("RATE_BURST", 5)
	if err != nil {
		return nil, err
	}
	c.RateBurst = int(burst)

	return c, c.validate()
}

func (c *Config) validate() error {
	switch c.Engine {
	case "exec":
	case "http":
		if c.EngineURL == "" {
			return errors.New("NORM_ENGINE_URL is required for the http engine")
		}
	default:
		return fmt.Errorf("NORM_ENGINE must be exec or http, got %q", c.Engine)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	if c.SumThreshold <= 0 || c.SumLimit <= 0 {
		return errors.New("SUM_THRESHOLD and NORM_SUM_LIMIT must be positive")
	}
	return nil
}

// RequireTokenKey is checked by the server only; the CLI never signs links.
func (c *Config) RequireTokenKey() error {
	if len(c.TokenKey) == 0 {
		return errors.New("TOKEN_KEY environment variable is not set")
	}
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
