package config

import (
	"crypto/rsa"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	MongoURI       string
	MongoDB        string
	CRDBDSN        string
	RedisAddr      string
	RabbitURL      string
	JWTPublicKey   string
	OTLPEndpoint   string
	LogLevel       string
	EventCacheTTL  time.Duration
	IdempotencyTTL time.Duration
	RateLimitUser  int
	RateLimitIP    int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDB:        getenv("MONGO_DB", "ticketing"),
		CRDBDSN:        os.Getenv("CRDB_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		JWTPublicKey:   os.Getenv("JWT_PUBLIC_KEY"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		EventCacheTTL:  duration("EVENT_CACHE_TTL", 30*time.Second),
		IdempotencyTTL: duration("IDEMPOTENCY_TTL", time.Hour),
		RateLimitUser:  integer("RATE_LIMIT_USER", 10),
		RateLimitIP:    integer("RATE_LIMIT_IP", 100),
	}

	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is required")
	}
	return cfg, nil
}

// RequireAPI checks the settings only the HTTP server needs.
func (c *Config) RequireAPI() error {
	if c.JWTPublicKey == "" {
		return errors.New("JWT_PUBLIC_KEY is required")
	}
	return nil
}

// PublicKey parses JWT_PUBLIC_KEY, which holds either a PEM block or the path to one.
func (c *Config) PublicKey() (*rsa.PublicKey, error) {
	data := []byte(c.JWTPublicKey)
	if !strings.Contains(c.JWTPublicKey, "-----BEGIN") {
		b, err := os.ReadFile(c.JWTPublicKey)
		if err != nil {
			return nil, errors.Wrap(err, "read JWT public key")
		}
		data = b
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse JWT public key")
	}
	return key, nil
}

// RequireOutbox checks the settings needed by anything that reads or writes the outbox.
func (c *Config) RequireOutbox() error {
	if c.CRDBDSN == "" {
		return errors.New("CRDB_DSN is required")
	}
	if c.RabbitURL == "" {
		return errors.New("RABBIT_URL is required")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func integer(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
