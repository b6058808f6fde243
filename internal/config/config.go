package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort      string
	CORSAllowOrigin string

	WorkerRuntime    string
	WorkerScriptsDir string
	WorkerTimeout    time.Duration
	ArtifactDir      string
	TasksFile        string

	Email            EmailConfig
	AlertRecipient   string
	TelegramBotToken string
	TelegramChatID   int64

	DatabaseURL string

	KafkaBrokers        []string
	KafkaSchedulerTopic string
	KafkaGroupID        string

	SchedulerEnabled  bool
	SchedulerInterval time.Duration

	SubmitRateLimit float64
	SubmitRateBurst int

	LogLevel  string
	LogFile   string
	DebugAddr string

	OTel OTelConfig
}

type EmailConfig struct {
	User     string
	Password string
	SMTPHost string
	SMTPPort int
}

type OTelConfig struct {
	ExporterEndpoint string
	ServiceName      string
	SamplingRatio    float64
}

// EmailEnabled reports whether mail credentials are present.
func (c *Config) EmailEnabled() bool {
	return c.Email.User != "" && c.Email.Password != ""
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

var defaults = map[string]any{
	"SERVER_PORT":           "5000",
	"CORS_ALLOW_ORIGIN":     "*",
	"WORKER_RUNTIME":        "python3",
	"WORKER_SCRIPTS_DIR":    "processing",
	"WORKER_TIMEOUT":        "30m",
	"ARTIFACT_DIR":          "processing/temp_downloads",
	"TASKS_FILE":            "processing/monitoring_tasks.json",
	"EMAIL_SMTP_HOST":       "smtp.gmail.com",
	"EMAIL_SMTP_PORT":       "587",
	"KAFKA_SCHEDULER_TOPIC": "aoi-monitoring",
	"KAFKA_GROUP_ID":        "aoi-scheduler",
	"SCHEDULER_ENABLED":     "true",
	"SCHEDULER_INTERVAL":    "5m",
	"SUBMIT_RATE_LIMIT":     "1",
	"SUBMIT_RATE_BURST":     "5",
	"LOG_LEVEL":             "info",
	"OTEL_SERVICE_NAME":     "gagan-dhristi",
	"OTEL_SAMPLING_RATIO":   "0.1",
}

// Load reads .env (when present), the optional CONFIG_FILE and the
// environment, in increasing order of precedence. Invalid values fall
// back to their defaults with a warning.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	if f := os.Getenv("CONFIG_FILE"); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("failed to read config file, using environment only", "file", f, "error", err)
		}
	}

	l := loader{v: v}
	return &Config{
		ServerPort:      l.str("SERVER_PORT"),
		CORSAllowOrigin: l.str("CORS_ALLOW_ORIGIN"),

		WorkerRuntime:    l.str("WORKER_RUNTIME"),
		WorkerScriptsDir: l.str("WORKER_SCRIPTS_DIR"),
		WorkerTimeout:    l.duration("WORKER_TIMEOUT", 30*time.Minute),
		ArtifactDir:      l.str("ARTIFACT_DIR"),
		TasksFile:        l.str("TASKS_FILE"),

		Email: EmailConfig{
			User:     l.str("EMAIL_USER"),
			Password: l.str("EMAIL_PASSWORD"),
			SMTPHost: l.str("EMAIL_SMTP_HOST"),
			SMTPPort: l.integer("EMAIL_SMTP_PORT", 587),
		},
		AlertRecipient:   l.str("ALERT_RECIPIENT"),
		TelegramBotToken: l.str("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   l.int64("TELEGRAM_CHAT_ID", 0),

		DatabaseURL: l.str("DATABASE_URL"),

		KafkaBrokers:        l.list("KAFKA_BROKERS"),
		KafkaSchedulerTopic: l.str("KAFKA_SCHEDULER_TOPIC"),
		KafkaGroupID:        l.str("KAFKA_GROUP_ID"),

		SchedulerEnabled:  l.boolean("SCHEDULER_ENABLED", true),
		SchedulerInterval: l.duration("SCHEDULER_INTERVAL", 5*time.Minute),

		SubmitRateLimit: l.float("SUBMIT_RATE_LIMIT", 1),
		SubmitRateBurst: l.integer("SUBMIT_RATE_BURST", 5),

		LogLevel:  l.str("LOG_LEVEL"),
		LogFile:   l.str("LOG_FILE"),
		DebugAddr: l.str("DEBUG_ADDR"),

		OTel: OTelConfig{
			ExporterEndpoint: l.str("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:      l.str("OTEL_SERVICE_NAME"),
			SamplingRatio:    l.float("OTEL_SAMPLING_RATIO", 0.1),
		},
	}
}

type loader struct {
	v *viper.Viper
}

func (l loader) str(key string) string {
	return strings.TrimSpace(l.v.GetString(key))
}

func (l loader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(l.str(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l loader) duration(key string, fallback time.Duration) time.Duration {
	v := l.str(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration for config key, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func (l loader) integer(key string, fallback int) int {
	v := l.str(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer for config key, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func (l loader) int64(key string, fallback int64) int64 {
	v := l.str(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("invalid integer for config key, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func (l loader) float(key string, fallback float64) float64 {
	v := l.str(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number for config key, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func (l loader) boolean(key string, fallback bool) bool {
	v := l.str(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean for config key, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return b
}
