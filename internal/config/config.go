package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// BootstrapAdminEmail, when set, makes registration with that address
	// resolve to an approved superadmin regardless of the requested role.
	// Empty disables the override.
	BootstrapAdminEmail string

	RateLimitPerMinute        int
	RateLimitBurst            int
	AccountRateLimitPerMinute int
	AccountRateLimitBurst     int

	AMQPURL      string
	AMQPExchange string
}

func Load() Config {
	port := os.Getenv("PLATFORM_PORT")
	if port == "" {
		port = "8080"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-only-secret"
	}

	exchange := os.Getenv("AMQP_EXCHANGE")
	if exchange == "" {
		exchange = "tradestream.events"
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DB_DSN"),

		JWTSecret:       secret,
		AccessTokenTTL:  readDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: readDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		BootstrapAdminEmail: strings.ToLower(strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),

		RateLimitPerMinute:        readInt("PLATFORM_RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:            readInt("PLATFORM_RATE_LIMIT_BURST", 30),
		AccountRateLimitPerMinute: readInt("PLATFORM_ACCOUNT_RATE_LIMIT_PER_MIN", 300),
		AccountRateLimitBurst:     readInt("PLATFORM_ACCOUNT_RATE_LIMIT_BURST", 60),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: exchange,
	}
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
