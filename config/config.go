package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort                     = "8080"
	DefaultAccessTokenExpiryMin     = 15
	DefaultRefreshTokenExpiryMin    = 10080
	DefaultLoginMaxAttempts         = 5
	DefaultLoginWindowMinutes       = 15
	DefaultMaxConcurrentSessions    = 5
	DefaultSessionInactivityMinutes = 30
	DefaultSweepIntervalMinutes     = 5
	DefaultAttemptRetentionDays     = 30
	DefaultAuditBufferSize          = 256
)

type Config struct {
	Env                      string
	Port                     string
	DBURL                    string
	TokenSecret              string
	AccessExpiryMin          int
	RefreshExpiryMin         int
	LoginMaxAttempts         int
	LoginWindowMinutes       int
	MaxConcurrentSessions    int
	SessionInactivityMinutes int
	SweepIntervalMinutes     int
	AttemptRetentionDays     int
	AuditBufferSize          int
}

func Load() *Config {
	env := getEnv("ENV", "development")

	envFile := "config/.env.dev"
	if env == "production" {
		envFile = "config/.env.prod"
	}
	// godotenv never overrides variables that are already set, so real
	// environment variables win over file values.
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("config: %s not found, relying on environment", envFile)
	}

	return &Config{
		Env:                      env,
		Port:                     getEnv("PORT", DefaultPort),
		DBURL:                    mustGetEnv("DB_URL"),
		TokenSecret:              mustGetEnv("TOKEN_SECRET"),
		AccessExpiryMin:          getEnvAsInt("ACCESS_TOKEN_EXPIRY", DefaultAccessTokenExpiryMin),
		RefreshExpiryMin:         getEnvAsInt("REFRESH_TOKEN_EXPIRY", DefaultRefreshTokenExpiryMin),
		LoginMaxAttempts:         getEnvAsInt("LOGIN_MAX_ATTEMPTS", DefaultLoginMaxAttempts),
		LoginWindowMinutes:       getEnvAsInt("LOGIN_ATTEMPT_WINDOW", DefaultLoginWindowMinutes),
		MaxConcurrentSessions:    getEnvAsInt("MAX_CONCURRENT_SESSIONS", DefaultMaxConcurrentSessions),
		SessionInactivityMinutes: getEnvAsInt("SESSION_INACTIVITY_TIMEOUT", DefaultSessionInactivityMinutes),
		SweepIntervalMinutes:     getEnvAsInt("SWEEP_INTERVAL", DefaultSweepIntervalMinutes),
		AttemptRetentionDays:     getEnvAsInt("LOGIN_ATTEMPT_RETENTION", DefaultAttemptRetentionDays),
		AuditBufferSize:          getEnvAsInt("AUDIT_BUFFER_SIZE", DefaultAuditBufferSize),
	}
}

func (c *Config) AccessTokenExpiry() time.Duration {
	return time.Duration(c.AccessExpiryMin) * time.Minute
}

func (c *Config) RefreshTokenExpiry() time.Duration {
	return time.Duration(c.RefreshExpiryMin) * time.Minute
}

func (c *Config) LockoutWindow() time.Duration {
	return time.Duration(c.LoginWindowMinutes) * time.Minute
}

func (c *Config) InactivityTimeout() time.Duration {
	return time.Duration(c.SessionInactivityMinutes) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func (c *Config) AttemptRetention() time.Duration {
	return time.Duration(c.AttemptRetentionDays) * 24 * time.Hour
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func mustGetEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Fatalf("Missing required config: %s", key)
	return ""
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return val
}
