package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	API struct {
		Key           string
		Port          string
		PublicBaseURL string
	}
	DB struct {
		DSN string
	}
	S3 struct {
		Bucket    string
		Region    string
		AccessKey string
		SecretKey string
		Endpoint  string
	}
	Twilio struct {
		AccountSID string
		AuthToken  string
		FromNumber string
		RateLimit  int
	}
	Emergency struct {
		Phone     string
		Threshold float64
	}
	Upload struct {
		Folder        string
		ExpirySeconds int
	}
	Logging struct {
		Dir   string
		Level string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
}

// DefaultEmergencyThreshold is the confidence at or above which the emergency
// number is called.
const DefaultEmergencyThreshold = 0.95

// DefaultAPIKey is used when API_KEY is not set.
const DefaultAPIKey = "demo_api_key_please_change"

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// API settings
	cfg.API.Key = os.Getenv("API_KEY")
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.PublicBaseURL = os.Getenv("PUBLIC_BASE_URL")

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Object storage (all four must be set for presigned uploads)
	cfg.S3.Bucket = os.Getenv("S3_BUCKET")
	cfg.S3.Region = os.Getenv("AWS_REGION")
	cfg.S3.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.S3.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.S3.Endpoint = os.Getenv("S3_ENDPOINT")

	// Twilio settings
	cfg.Twilio.AccountSID = os.Getenv("TWILIO_SID")
	cfg.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.Twilio.FromNumber = os.Getenv("TWILIO_FROM")
	if rl, err := strconv.Atoi(os.Getenv("SMS_RATE_LIMIT")); err == nil {
		cfg.Twilio.RateLimit = rl
	}

	// Emergency escalation
	cfg.Emergency.Phone = os.Getenv("EMERGENCY_PHONE")
	if raw := os.Getenv("EMERGENCY_CONFIDENCE_THRESHOLD"); raw != "" {
		th, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid EMERGENCY_CONFIDENCE_THRESHOLD %q: %w", raw, err)
		}
		cfg.Emergency.Threshold = th
	} else {
		cfg.Emergency.Threshold = DefaultEmergencyThreshold
	}

	// Local uploads
	cfg.Upload.Folder = os.Getenv("UPLOAD_FOLDER")
	if exp, err := strconv.Atoi(os.Getenv("UPLOAD_EXPIRY_SECONDS")); err == nil {
		cfg.Upload.ExpirySeconds = exp
	}

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Kafka ingestion (optional)
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.API.Key == "" {
		cfg.API.Key = DefaultAPIKey
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":3000"
	}
	if cfg.Twilio.RateLimit <= 0 {
		cfg.Twilio.RateLimit = 10
	}
	if cfg.Upload.Folder == "" {
		cfg.Upload.Folder = "./uploads"
	}
	if cfg.Upload.ExpirySeconds <= 0 {
		cfg.Upload.ExpirySeconds = 300
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "safety-events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "alert-service"
	}

	return cfg, nil
}

// S3Configured reports whether every credential needed for presigned
// uploads is present.
func (c Config) S3Configured() bool {
	return c.S3.AccessKey != "" && c.S3.SecretKey != "" && c.S3.Bucket != "" && c.S3.Region != ""
}
