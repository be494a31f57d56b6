package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For duration parsing

	"github.com/joho/godotenv"      // For loading .env files
	"github.com/shopspring/decimal" // Reward units are money
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment

	Mpesa          MpesaConfig   // Payment gateway settings
	GatewayTimeout time.Duration // Bound on every outbound gateway call
	IdempotencyTTL time.Duration // Lifetime of settled-callback markers in Redis

	SurveyLimit      int             // Surveys per rolling day
	VideoLimit       int             // Videos per rolling day
	SurveyRewardUnit decimal.Decimal // Survey reward per user level
	VideoRewardUnit  decimal.Decimal // Video reward per user level
}

// MpesaConfig holds the M-Pesa Daraja credentials and endpoints
type MpesaConfig struct {
	BaseURL            string // API base URL
	ConsumerKey        string // OAuth consumer key
	ConsumerSecret     string // OAuth consumer secret
	ShortCode          string // Business short code
	PassKey            string // Lipa na M-Pesa pass key
	CallbackURL        string // Public base URL the gateway calls back
	InitiatorName      string // B2C initiator
	SecurityCredential string // B2C encrypted initiator password
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),             // Application port
		DBUser:     os.Getenv("DB_USER"),                   // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),               // Database password
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),         // Database host
		DBPort:     getEnv("DB_PORT", "3306"),              // Database port
		DBName:     os.Getenv("DB_NAME"),                   // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),                // JWT secret key
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"), // Redis server address
		RedisPass:  os.Getenv("REDIS_PASS"),                // Redis password
		RedisDB:    redisDB,                                // Redis database number
		IsProd:     os.Getenv("IS_PROD") == "true",         // Is production environment
		Mpesa: MpesaConfig{
			BaseURL:            getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:        os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret:     os.Getenv("MPESA_CONSUMER_SECRET"),
			ShortCode:          os.Getenv("MPESA_SHORT_CODE"),
			PassKey:            os.Getenv("MPESA_PASS_KEY"),
			CallbackURL:        os.Getenv("CALLBACK_URL"),
			InitiatorName:      os.Getenv("MPESA_INITIATOR_NAME"),
			SecurityCredential: os.Getenv("MPESA_SECURITY_CREDENTIAL"),
		},
		GatewayTimeout:   getDuration("GATEWAY_TIMEOUT", 15*time.Second),
		IdempotencyTTL:   getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		SurveyLimit:      getInt("SURVEY_LIMIT", 3),
		VideoLimit:       getInt("VIDEO_LIMIT", 3),
		SurveyRewardUnit: getDecimal("SURVEY_REWARD_UNIT", decimal.NewFromInt(5)),
		VideoRewardUnit:  getDecimal("VIDEO_REWARD_UNIT", decimal.NewFromInt(2)),
	}
}

// DSN builds the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func getDecimal(key string, def decimal.Decimal) decimal.Decimal {
	if v, err := decimal.NewFromString(os.Getenv(key)); err == nil && v.IsPositive() {
		return v
	}
	return def
}
