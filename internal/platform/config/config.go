package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr       string
	APIBaseURL string
	LogLevel   slog.Level
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool

	Session   Session
	Redis     RedisConfig
	RateLimit RateLimit
}

// Session configures the browser session cookie and the session probe.
type Session struct {
	CookieName      string
	CookieSecure    bool
	SigningKey      string
	TTL             time.Duration
	ProbeTimeout    time.Duration
	ProbeWait       time.Duration
	RecheckInterval time.Duration
	SweepInterval   time.Duration
}

// RedisConfig selects the shared session store. An empty URL keeps sessions
// in process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimit throttles auth actions per client IP.
type RateLimit struct {
	RPS      float64
	Burst    int
	Disabled bool
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	signingKey := os.Getenv("SESSION_SIGNING_KEY")
	if signingKey == "" {
		// Use a default for development - should be overridden in production
		signingKey = "dev-session-key-change-in-production"
	}

	return Server{
		Addr:       envString("STOREFRONT_ADDR", ":8080"),
		APIBaseURL: envString("STOREFRONT_API_BASE_URL", "http://localhost:5000"),
		LogLevel:   envLevel("LOG_LEVEL", slog.LevelInfo),
		TrustProxy: os.Getenv("TRUST_PROXY") == "true",
		Session: Session{
			CookieName:      envString("SESSION_COOKIE_NAME", "sf_session"),
			CookieSecure:    os.Getenv("COOKIE_SECURE") == "true",
			SigningKey:      signingKey,
			TTL:             envDuration("SESSION_TTL", 24*time.Hour),
			ProbeTimeout:    envDuration("SESSION_PROBE_TIMEOUT", 5*time.Second),
			ProbeWait:       envDuration("SESSION_PROBE_WAIT", 300*time.Millisecond),
			RecheckInterval: envDuration("SESSION_RECHECK_INTERVAL", 5*time.Minute),
			SweepInterval:   envDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimit{
			RPS:      envFloat("AUTH_RATE_LIMIT_RPS", 1),
			Burst:    envInt("AUTH_RATE_LIMIT_BURST", 10),
			Disabled: os.Getenv("DISABLE_RATE_LIMITING") == "true",
		},
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}

func envLevel(key string, def slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return level
}
