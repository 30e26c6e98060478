package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	API struct {
		Port     string
		BasePath string
	}
	Auth struct {
		JWTSecret string
	}
	Kafka struct {
		Brokers     []string
		ReportTopic string
		GroupID     string
		// FanoutTopic enables cross-process room fan-out when set.
		FanoutTopic string
	}
	Dispatch struct {
		SendBuffer int
	}
	Contacts struct {
		QueueSize  int
		MaxWorkers int
	}
	Telegram struct {
		BotToken      string
		RatePerSecond int
	}
	SMS struct {
		AccountSID string
		AuthToken  string
		FromNumber string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
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

	cfg.DB.DSN = os.Getenv("DB_DSN")

	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Kafka.ReportTopic = os.Getenv("KAFKA_REPORT_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")
	cfg.Kafka.FanoutTopic = os.Getenv("KAFKA_FANOUT_TOPIC")

	if n, err := strconv.Atoi(os.Getenv("DISPATCH_SEND_BUFFER")); err == nil {
		cfg.Dispatch.SendBuffer = n
	}

	if qs, err := strconv.Atoi(os.Getenv("CONTACTS_QUEUE_SIZE")); err == nil {
		cfg.Contacts.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("CONTACTS_MAX_WORKERS")); err == nil {
		cfg.Contacts.MaxWorkers = mw
	}

	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if r, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_PER_SECOND")); err == nil {
		cfg.Telegram.RatePerSecond = r
	}

	cfg.SMS.AccountSID = os.Getenv("SMS_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("SMS_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("SMS_FROM_NUMBER")

	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v1"
	}
	if cfg.Dispatch.SendBuffer == 0 {
		cfg.Dispatch.SendBuffer = 64
	}
	if cfg.Contacts.QueueSize == 0 {
		cfg.Contacts.QueueSize = 500
	}
	if cfg.Contacts.MaxWorkers == 0 {
		cfg.Contacts.MaxWorkers = 10
	}
	if cfg.Telegram.RatePerSecond == 0 {
		cfg.Telegram.RatePerSecond = 25
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
