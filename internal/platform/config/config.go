package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Keys for the signed+encrypted session cookie. The hash key must be
	// 32 or 64 bytes, the block key 16, 24 or 32 bytes.
	CookieHashKey  []byte
	CookieBlockKey []byte

	SessionExpiry time.Duration

	LoginThrottleEnabled  bool
	LoginThrottleAttempts int
	LoginThrottleWindow   time.Duration
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBUser:                getEnv("DB_USER", "user"),
		DBPassword:            getEnv("DB_PASSWORD", "password"),
		DBName:                getEnv("DB_NAME", "bildung_db"),
		DBSslMode:             getEnv("DB_SSLMODE", "disable"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvAsInt("REDIS_DB", 0),
		CookieHashKey:         []byte(getEnv("COOKIE_HASH_KEY", "0123456789abcdef0123456789abcdef")),
		CookieBlockKey:        []byte(getEnv("COOKIE_BLOCK_KEY", "0123456789abcdef")),
		SessionExpiry:         time.Duration(getEnvAsInt("SESSION_EXPIRY_DAYS", 5)) * 24 * time.Hour,
		LoginThrottleEnabled:  getEnvAsBool("LOGIN_THROTTLE_ENABLED", true),
		LoginThrottleAttempts: getEnvAsInt("LOGIN_THROTTLE_ATTEMPTS", 10),
		LoginThrottleWindow:   time.Duration(getEnvAsInt("LOGIN_THROTTLE_WINDOW_SECONDS", 300)) * time.Second,
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
