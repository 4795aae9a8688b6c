package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For list parsing
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort  string // Application port
	IsProd   bool   // Is production environment
	LogLevel string // Logrus level name

	DBDriver   string // Database driver: mysql or postgres
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name

	JWTSecret string // JWT secret key

	RedisAddr string // Redis server address
	RedisPass string // Redis password
	RedisDB   int    // Redis database number

	SMTPHost       string // SMTP server host
	SMTPPort       int    // SMTP server port
	SMTPUsername   string // SMTP login
	SMTPPassword   string // SMTP password
	SMTPSender     string // From address
	SMTPEncryption string // ssl, tls or none
	AdminEmail     string // Recipient of order and stock reports

	NATSURL string // Notification queue; in-process queue when empty

	UploadDir      string // Local upload directory
	MinioEndpoint  string // Object storage endpoint; local disk when empty
	MinioAccessKey string // Object storage access key
	MinioSecretKey string // Object storage secret key
	MinioBucket    string // Object storage bucket
	MinioUseSSL    bool   // Object storage TLS

	CORSOrigins []string // Allowed browser origins

	LowStockThreshold int    // Stock level reported by the daily job
	LowStockAt        string // Time of day for the daily job (HH:MM, UTC)

	CartTTL        time.Duration // Cart lifetime in Redis
	DeliveryOTPTTL time.Duration // Delivery OTP lifetime
	AuthOTPTTL     time.Duration // Registration / reset OTP lifetime
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:  getEnv("APP_PORT", "8080"),     // Application port
		IsProd:   os.Getenv("IS_PROD") == "true", // Is production environment
		LogLevel: getEnv("LOG_LEVEL", "info"),    // Log level

		DBDriver:   getEnv("DB_DRIVER", "mysql"),   // Database driver
		DBUser:     os.Getenv("DB_USER"),           // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),       // Database password
		DBHost:     getEnv("DB_HOST", "127.0.0.1"), // Database host
		DBPort:     getEnv("DB_PORT", "3306"),      // Database port
		DBName:     getEnv("DB_NAME", "pharmacy"),  // Database name

		JWTSecret: os.Getenv("JWT_SECRET"), // JWT secret key

		RedisAddr: getEnv("REDIS_ADDR", "127.0.0.1:6379"), // Redis server address
		RedisPass: os.Getenv("REDIS_PASS"),                // Redis password
		RedisDB:   getInt("REDIS_DB", 0),                  // Redis database number

		SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"), // SMTP host
		SMTPPort:       getInt("SMTP_PORT", 465),              // SMTP port
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),            // SMTP login
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),            // SMTP password
		SMTPSender:     os.Getenv("SMTP_SENDER"),              // From address
		SMTPEncryption: getEnv("SMTP_ENCRYPTION", "ssl"),      // Transport security
		AdminEmail:     getEnv("ADMIN_EMAIL", "admin@pharma.com"),

		NATSURL: os.Getenv("NATS_URL"), // Notification queue

		UploadDir:      getEnv("UPLOAD_DIR", "static/uploads"), // Local upload directory
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "pharmacy"),
		MinioUseSSL:    os.Getenv("MINIO_USE_SSL") == "true",

		CORSOrigins: getList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		LowStockThreshold: getInt("LOW_STOCK_THRESHOLD", 10),
		LowStockAt:        getEnv("LOW_STOCK_AT", "08:00"),

		CartTTL:        getDuration("CART_TTL", 24*time.Hour),
		DeliveryOTPTTL: getDuration("DELIVERY_OTP_TTL", 24*time.Hour),
		AuthOTPTTL:     getDuration("AUTH_OTP_TTL", 10*time.Minute),
	}
}

// DSN builds the driver specific Data Source Name
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return "host=" + c.DBHost + " user=" + c.DBUser + " password=" + c.DBPassword +
			" dbname=" + c.DBName + " port=" + c.DBPort + " sslmode=disable TimeZone=UTC"
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&loc=UTC"
}

// getEnv returns the variable or a fallback when unset
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getInt parses an integer variable, falling back on absence or parse error
func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// getDuration parses a Go duration string such as "24h"
func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// getList splits a comma separated variable
func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
