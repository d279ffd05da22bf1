// Package server provides configuration helpers that define runtime defaults,
// validation, and hardening parameters for the chat service.
package server

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
// A zero Burst disables limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings.
//
// The timeout fields default to zero, which means "wait forever" and matches
// the reference protocol. Setting them is an explicit hardening choice: a
// handshake or idle timeout drops the connection when it fires.
type Config struct {
	Host            string
	Port            int
	MaxConnsPerAddr int
	ReadBufferSize  int

	HandshakeTimeout      time.Duration
	HandshakeSendAttempts int
	HandshakeRetryBackoff time.Duration
	IdleTimeout           time.Duration
	WriteTimeout          time.Duration

	RateLimit RateLimitConfig

	// HTTPAddr enables the WebSocket gateway when non-empty.
	HTTPAddr       string
	AllowedOrigins []string
}

const (
	defaultHost                  = "0.0.0.0"
	defaultPort                  = 12345
	defaultMaxConnsPerAddr       = 3
	defaultReadBufferSize        = 1024
	defaultHandshakeSendAttempts = 10
	defaultHandshakeRetryBackoff = 500 * time.Millisecond
	defaultRefillInterval        = time.Second
)

func defaultConfig() Config {
	return Config{
		Host:                  defaultHost,
		Port:                  defaultPort,
		MaxConnsPerAddr:       defaultMaxConnsPerAddr,
		ReadBufferSize:        defaultReadBufferSize,
		HandshakeSendAttempts: defaultHandshakeSendAttempts,
		HandshakeRetryBackoff: defaultHandshakeRetryBackoff,
		RateLimit: RateLimitConfig{
			RefillInterval: defaultRefillInterval,
		},
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
	}
}

// sanitizeConfig replaces out-of-range values with defaults.
func sanitizeConfig(cfg Config) Config {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		cfg.Port = defaultPort
	}

	if cfg.MaxConnsPerAddr <= 0 {
		cfg.MaxConnsPerAddr = defaultMaxConnsPerAddr
	}

	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}

	if cfg.HandshakeSendAttempts <= 0 {
		cfg.HandshakeSendAttempts = defaultHandshakeSendAttempts
	}

	if cfg.HandshakeRetryBackoff < 0 {
		cfg.HandshakeRetryBackoff = defaultHandshakeRetryBackoff
	}

	if cfg.HandshakeTimeout < 0 {
		cfg.HandshakeTimeout = 0
	}
	if cfg.IdleTimeout < 0 {
		cfg.IdleTimeout = 0
	}
	if cfg.WriteTimeout < 0 {
		cfg.WriteTimeout = 0
	}

	if cfg.RateLimit.Burst < 0 {
		cfg.RateLimit.Burst = 0
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// Addr returns the host:port the TCP listener binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are unset or invalid.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if host := os.Getenv("CHATROOM_HOST"); host != "" {
		cfg.Host = host
	}

	if port := os.Getenv("CHATROOM_PORT"); port != "" {
		cfg.Port = parsePort(port, cfg.Port)
	}

	if maxConns := os.Getenv("CHATROOM_MAX_CONNS_PER_ADDR"); maxConns != "" {
		cfg.MaxConnsPerAddr = parseIntValue(maxConns, cfg.MaxConnsPerAddr)
	}

	if size := os.Getenv("CHATROOM_READ_BUFFER_SIZE"); size != "" {
		cfg.ReadBufferSize = parseIntValue(size, cfg.ReadBufferSize)
	}

	if timeout := os.Getenv("CHATROOM_HANDSHAKE_TIMEOUT"); timeout != "" {
		cfg.HandshakeTimeout = parseDuration(timeout, cfg.HandshakeTimeout)
	}

	if timeout := os.Getenv("CHATROOM_IDLE_TIMEOUT"); timeout != "" {
		cfg.IdleTimeout = parseDuration(timeout, cfg.IdleTimeout)
	}

	if timeout := os.Getenv("CHATROOM_WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseDuration(timeout, cfg.WriteTimeout)
	}

	if attempts := os.Getenv("CHATROOM_HANDSHAKE_SEND_ATTEMPTS"); attempts != "" {
		cfg.HandshakeSendAttempts = parseIntValue(attempts, cfg.HandshakeSendAttempts)
	}

	if backoff := os.Getenv("CHATROOM_HANDSHAKE_RETRY_BACKOFF"); backoff != "" {
		cfg.HandshakeRetryBackoff = parseDuration(backoff, cfg.HandshakeRetryBackoff)
	}

	if burst := os.Getenv("CHATROOM_RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("CHATROOM_RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseDuration(interval, cfg.RateLimit.RefillInterval)
	}

	if httpAddr := os.Getenv("CHATROOM_HTTP_ADDR"); httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}

	if origins := os.Getenv("CHATROOM_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parsePort(value string, defaultValue int) int {
	if port, err := strconv.Atoi(value); err == nil && port >= 0 && port <= 65535 {
		return port
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts a Go duration string ("750ms", "2m") or a whole
// number of seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
