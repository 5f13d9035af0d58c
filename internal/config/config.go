package config

import (
	"fmt"
	"net/http"
	"time"

	pkgconfig "github.com/stack501/nodebird-api/pkg/config"
	"github.com/stack501/nodebird-api/pkg/database"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the nodebird API service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8002"`

	// PostgreSQL
	PostgresHost       string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort       int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser       string        `env:"POSTGRES_USER" envDefault:"nodebird"`
	PostgresPass       string        `env:"POSTGRES_PASSWORD" envDefault:"nodebird_secret"`
	PostgresDB         string        `env:"POSTGRES_DB" envDefault:"nodebird"`
	PostgresSSL        string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBMaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`

	// JWT
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"nodebird"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"1m"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// Session
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"connect.sid"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// Kakao OAuth
	KakaoClientID     string `env:"KAKAO_CLIENT_ID" envDefault:""`
	KakaoClientSecret string `env:"KAKAO_CLIENT_SECRET" envDefault:""`
	KakaoRedirectURL  string `env:"KAKAO_REDIRECT_URL" envDefault:"http://localhost:8002/auth/kakao/callback"`
	KakaoAuthURL      string `env:"KAKAO_AUTH_URL" envDefault:"https://kauth.kakao.com"`
	KakaoAPIURL       string `env:"KAKAO_API_URL" envDefault:"https://kapi.kakao.com"`

	// Admission
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitMax      int           `env:"RATE_LIMIT_MAX" envDefault:"10"`
	RateLimitStatus   int           `env:"RATE_LIMIT_STATUS" envDefault:"429"`
	RateLimitMessage  string        `env:"RATE_LIMIT_MESSAGE" envDefault:"only 10 requests per minute are allowed"`
	RateLimitBackend  string        `env:"RATE_LIMIT_BACKEND" envDefault:"redis"`
	AuthThrottleRPS   float64       `env:"AUTH_THROTTLE_RPS" envDefault:"1"`
	AuthThrottleBurst int           `env:"AUTH_THROTTLE_BURST" envDefault:"5"`
	// Reverse proxies whose X-Forwarded-For is honoured, as CIDRs or IPs.
	// Empty means the direct peer is always the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	APIV1Deprecated bool `env:"API_V1_DEPRECATED" envDefault:"false"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load nodebird config: %w", err)
	}
	return cfg, nil
}

// Validate is called by pkg/config.Load after parsing.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.RateLimitMax < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX must be at least 1, got %d", c.RateLimitMax)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.RateLimitStatus < http.StatusBadRequest || c.RateLimitStatus > 499 {
		return fmt.Errorf("RATE_LIMIT_STATUS must be a 4xx status, got %d", c.RateLimitStatus)
	}
	switch c.RateLimitBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be redis or memory, got %q", c.RateLimitBackend)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.KakaoEnabled() && (c.KakaoRedirectURL == "" || c.KakaoAuthURL == "" || c.KakaoAPIURL == "") {
		return fmt.Errorf("KAKAO_REDIRECT_URL, KAKAO_AUTH_URL and KAKAO_API_URL are required when KAKAO_CLIENT_ID is set")
	}

	// Outside development the JWT secret must be explicitly set and strong.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}

	return nil
}

// KakaoEnabled reports whether federated login through Kakao is configured.
func (c *Config) KakaoEnabled() bool {
	return c.KakaoClientID != ""
}

// Postgres returns the connection settings for the identity store.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}

// Redis returns the connection settings for sessions and rate-limit counters.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		PoolSize: c.RedisPoolSize,
	}
}
