package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	JWTSecret          string
	Port               string
	DatabasePath       string
	LogLevel           string
	CSRFAuthKey        []byte
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MaxUploadSizeBytes int64

	// BlockedGroupSymbols are grouping symbols that must never survive a
	// merge. Existing groups carrying one of these keys are dropped as
	// legacy data repair (an earlier normalizer bug produced CURRENCY_USD
	// groups from cash-settlement legs).
	BlockedGroupSymbols []string

	// SyncWindowDays bounds the broker transaction fetch window. The broker
	// API rejects windows larger than 60 days.
	SyncWindowDays int

	BrokerAPIBaseURL   string
	BrokerAuthURL      string
	BrokerTokenURL     string
	BrokerClientID     string
	BrokerClientSecret string
	BrokerRedirectURL  string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes")
	if jwtSecret == "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes" {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	csrfAuthKeyStr := getEnv("CSRF_AUTH_KEY", "a-very-secure-32-byte-long-key-must-be-32-bytes!")
	if len(csrfAuthKeyStr) < 32 {
		log.Fatalf("FATAL: CSRF_AUTH_KEY must be at least 32 bytes long. Current length: %d", len(csrfAuthKeyStr))
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	syncWindowDays := getEnvAsInt("SYNC_WINDOW_DAYS", 60)
	if syncWindowDays <= 0 || syncWindowDays > 60 {
		log.Printf("WARNING: SYNC_WINDOW_DAYS %d out of range (1-60). Using 60.", syncWindowDays)
		syncWindowDays = 60
	}

	blockedSymbolsStr := getEnv("BLOCKED_GROUP_SYMBOLS", "CURRENCY_USD")
	var blockedSymbols []string
	for _, s := range strings.Split(blockedSymbolsStr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			blockedSymbols = append(blockedSymbols, s)
		}
	}

	Cfg = &AppConfig{
		JWTSecret:          jwtSecret,
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./tradevault.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CSRFAuthKey:        []byte(csrfAuthKeyStr),
		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute),
		RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
		MaxUploadSizeBytes: maxUploadSizeBytes,

		BlockedGroupSymbols: blockedSymbols,
		SyncWindowDays:      syncWindowDays,

		BrokerAPIBaseURL:   getEnv("BROKER_API_BASE_URL", "https://api.schwabapi.com/trader/v1"),
		BrokerAuthURL:      getEnv("BROKER_AUTH_URL", "https://api.schwabapi.com/v1/oauth/authorize"),
		BrokerTokenURL:     getEnv("BROKER_TOKEN_URL", "https://api.schwabapi.com/v1/oauth/token"),
		BrokerClientID:     getEnv("BROKER_CLIENT_ID", ""),
		BrokerClientSecret: getEnv("BROKER_CLIENT_SECRET", ""),
		BrokerRedirectURL:  getEnv("BROKER_REDIRECT_URL", "http://localhost:8080/api/broker/callback"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, SyncWindowDays=%d",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.SyncWindowDays)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
