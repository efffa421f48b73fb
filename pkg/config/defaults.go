// Package config provides centralized default values for ChatLine
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Database Configuration
	DBDriver    string // "sqlite3" or "libsql"
	DBPath      string
	DBURL       string
	DBAuthToken string

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int

	// Operator Authentication
	AdminToken     string
	AdminTokenHash string // bcrypt hash; takes precedence over AdminToken when set
	JWTSecret      string

	// Websocket Configuration
	SessionSendBuffer int
	MaxEventBytes     int64
	WSWriteTimeout    time.Duration

	// Media Uploads
	UploadDir   string
	MaxUploadMB int64

	// Offline Operator Alerts (Resend)
	ResendAPIKey    string
	NotifyEmailFrom string
	NotifyEmailTo   string
	NotifyCooldown  time.Duration

	// Audio Transcription (AssemblyAI)
	AAIAPIKey            string
	TranscriptionTimeout time.Duration

	// Observability
	SlowQueryThreshold time.Duration
)

// Initialize loads configuration from the environment. Called once from
// startup after godotenv has populated the process env.
func Initialize() {
	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Database
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBPath = getEnvString("CHAT_DB_PATH", "chat.db")
	DBURL = getEnvString("DB_URL", "")
	DBAuthToken = getEnvString("DB_AUTH_TOKEN", "")

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)

	// Operator Authentication
	AdminToken = getEnvString("ADMIN_TOKEN", "change-me")
	AdminTokenHash = getEnvString("ADMIN_TOKEN_HASH", "")
	JWTSecret = getEnvString("JWT_SECRET", "")

	// Websocket
	SessionSendBuffer = getEnvInt("SESSION_SEND_BUFFER", 32)
	MaxEventBytes = int64(getEnvInt("MAX_EVENT_BYTES", 64*1024))
	WSWriteTimeout = getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second)

	// Media Uploads
	UploadDir = getEnvString("UPLOAD_DIR", "uploads")
	MaxUploadMB = int64(getEnvInt("MAX_UPLOAD_MB", 10))

	// Offline Operator Alerts
	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	NotifyEmailFrom = getEnvString("NOTIFY_EMAIL_FROM", "noreply@chatline.local")
	NotifyEmailTo = getEnvString("NOTIFY_EMAIL_TO", "")
	NotifyCooldown = getEnvDuration("NOTIFY_COOLDOWN", 15*time.Minute)

	// Audio Transcription
	AAIAPIKey = getEnvString("AAI_API_KEY", "")
	TranscriptionTimeout = getEnvDuration("TRANSCRIPTION_TIMEOUT", 2*time.Minute)

	// Observability
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 100*time.Millisecond)
}
