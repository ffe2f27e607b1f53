package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// insecureSecretFallback is the placeholder secret inherited from the original
// demo. It is only used when JWT_SECRET is unset and must never reach a real
// deployment.
const insecureSecretFallback = "your-secret-key"

// Config holds the application configuration.
type Config struct {
	ServerPort    int
	JWTSecret     string
	AuditDBPath   string
	PruneSchedule string        // standard cron expression for the audit pruner
	AuditMaxAge   time.Duration // audit rows older than this are pruned
	CORSOrigin    string
	AppEnv        string
}

// Load loads configuration from environment variables or sets defaults.
// A .env file in the working directory is read first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	portStr := getEnv("PORT", "3000")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	secret := getEnv("JWT_SECRET", "")
	if secret == "" {
		log.Warn().Msg("JWT_SECRET is not set, using the insecure built-in fallback secret")
		secret = insecureSecretFallback
	}

	maxAge, err := time.ParseDuration(getEnv("AUDIT_MAX_AGE", "168h"))
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerPort:    port,
		JWTSecret:     secret,
		AuditDBPath:   getEnv("AUDIT_DB_PATH", "./audit.db"),
		PruneSchedule: getEnv("AUDIT_PRUNE_SCHEDULE", "0 * * * *"),
		AuditMaxAge:   maxAge,
		CORSOrigin:    getEnv("CORS_ORIGIN", "http://localhost:3000"),
		AppEnv:        getEnv("APP_ENV", "development"),
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
