package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	LogMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	JWTSecret     string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	Scheduler SchedulerConfig
	Stream    StreamConfig
	Alimtalk  AlimtalkConfig
	Email     EmailConfig
	S3        S3Config
	Limits    LimitsConfig
}

// SchedulerConfig drives the automation queue sweep.
type SchedulerConfig struct {
	// CronSecretHash is a bcrypt hash of the shared secret the external scheduler sends.
	CronSecretHash string
	// CronSpec is used by cmd/worker when the sweep runs in-process.
	CronSpec   string
	BatchSize  int
	StaleAfter time.Duration
}

type StreamConfig struct {
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string
}

type AlimtalkConfig struct {
	BaseURL    string
	AppKey     string
	SecretKey  string
	SenderKey  string
	RatePerSec int
	Timeout    time.Duration
}

type EmailConfig struct {
	BaseURL       string
	AppKey        string
	SecretKey     string
	SenderAddress string
	RatePerSec    int
	Timeout       time.Duration
}

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PresignTTL time.Duration
}

type LimitsConfig struct {
	ManualSendPerMinute int
	APIPerMinute        int
	CatalogCacheTTL     time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		LogMode:       getEnv("LOG_MODE", "development"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "crm_messaging"),
		DBPort:        getEnv("DB_PORT", "5432"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		Scheduler: SchedulerConfig{
			CronSecretHash: getEnv("CRON_SECRET_HASH", ""),
			CronSpec:       getEnv("SWEEP_CRON_SPEC", "@every 1m"),
			BatchSize:      getEnvAsInt("SWEEP_BATCH_SIZE", 200),
			StaleAfter:     getEnvAsDuration("SWEEP_STALE_AFTER", 10*time.Minute),
		},
		Stream: StreamConfig{
			HeartbeatInterval: getEnvAsDuration("STREAM_HEARTBEAT_INTERVAL", 30*time.Second),
			WriteTimeout:      getEnvAsDuration("STREAM_WRITE_TIMEOUT", 5*time.Second),
			AllowedOrigins:    getEnvAsList("STREAM_ALLOWED_ORIGINS"),
		},
		Alimtalk: AlimtalkConfig{
			BaseURL:    getEnv("ALIMTALK_BASE_URL", "https://api-alimtalk.cloud.toast.com"),
			AppKey:     getEnv("ALIMTALK_APP_KEY", ""),
			SecretKey:  getEnv("ALIMTALK_SECRET_KEY", ""),
			SenderKey:  getEnv("ALIMTALK_SENDER_KEY", ""),
			RatePerSec: getEnvAsInt("ALIMTALK_RATE_PER_SEC", 20),
			Timeout:    getEnvAsDuration("ALIMTALK_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			BaseURL:       getEnv("EMAIL_BASE_URL", "https://api-mail.cloud.toast.com"),
			AppKey:        getEnv("EMAIL_APP_KEY", ""),
			SecretKey:     getEnv("EMAIL_SECRET_KEY", ""),
			SenderAddress: getEnv("EMAIL_SENDER_ADDRESS", ""),
			RatePerSec:    getEnvAsInt("EMAIL_RATE_PER_SEC", 10),
			Timeout:       getEnvAsDuration("EMAIL_TIMEOUT", 10*time.Second),
		},
		S3: S3Config{
			Region:     getEnv("S3_REGION", ""),
			Bucket:     getEnv("S3_BUCKET", ""),
			AccessKey:  getEnv("S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("S3_SECRET_KEY", ""),
			Endpoint:   getEnv("S3_ENDPOINT", ""),
			PresignTTL: getEnvAsDuration("S3_PRESIGN_TTL", 15*time.Minute),
		},
		Limits: LimitsConfig{
			ManualSendPerMinute: getEnvAsInt("MANUAL_SEND_PER_MINUTE", 30),
			APIPerMinute:        getEnvAsInt("API_PER_MINUTE", 600),
			CatalogCacheTTL:     getEnvAsDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
	}
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
