package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	SMS struct {
		AccountSID string
		AuthToken  string
		FromNumber string
		RatePerSec int
	}
	Push struct {
		TelegramBotToken string
		RatePerSec       int
	}
	API struct {
		Port     string
		BasePath string
	}
	Scheduler struct {
		TickInterval  time.Duration
		SweepInterval time.Duration
	}
	Dispatch struct {
		Timeout time.Duration
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	// Twilio SMS settings
	cfg.SMS.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	if r, err := strconv.Atoi(os.Getenv("SMS_RATE_PER_SEC")); err == nil {
		cfg.SMS.RatePerSec = r
	}

	// Push (Telegram gateway) settings
	cfg.Push.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if r, err := strconv.Atoi(os.Getenv("PUSH_RATE_PER_SEC")); err == nil {
		cfg.Push.RatePerSec = r
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Scheduler settings
	if s, err := strconv.Atoi(os.Getenv("TICK_INTERVAL_SECONDS")); err == nil {
		cfg.Scheduler.TickInterval = time.Duration(s) * time.Second
	}
	if s, err := strconv.Atoi(os.Getenv("SWEEP_INTERVAL_MINUTES")); err == nil {
		cfg.Scheduler.SweepInterval = time.Duration(s) * time.Minute
	}
	if s, err := strconv.Atoi(os.Getenv("DISPATCH_TIMEOUT_SECONDS")); err == nil {
		cfg.Dispatch.Timeout = time.Duration(s) * time.Second
	}

	// Logging settings
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "mill_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "mill-alert-service"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v1"
	}
	if cfg.Scheduler.TickInterval == 0 {
		cfg.Scheduler.TickInterval = time.Minute
	}
	if cfg.Scheduler.SweepInterval == 0 {
		cfg.Scheduler.SweepInterval = 15 * time.Minute
	}
	if cfg.Dispatch.Timeout == 0 {
		cfg.Dispatch.Timeout = 10 * time.Second
	}
	if cfg.SMS.RatePerSec == 0 {
		cfg.SMS.RatePerSec = 1
	}
	if cfg.Push.RatePerSec == 0 {
		cfg.Push.RatePerSec = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
