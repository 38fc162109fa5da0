package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Schedule  ScheduleConfig
	Assistant AssistantConfig
	Reports   ReportsConfig
	Worker    WorkerConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
	AllowOrigins    []string
}

// StorageConfig selects where medications and dose events are kept
type StorageConfig struct {
	Driver      string // memory, postgres or badger
	DatabaseURL string
	BadgerPath  string
}

// ScheduleConfig holds the adherence policy and calendar settings
type ScheduleConfig struct {
	Timezone               string
	GraceWindow            time.Duration
	LateCountsTowardStreak bool
	ColorPolicy            string // round_robin or random
	SeedDemoData           bool
}

// AssistantConfig holds the chat assistant provider settings
type AssistantConfig struct {
	Provider         string // gemini, azure_openai or none
	GeminiAPIKey     string
	GeminiModel      string
	OpenAI           OpenAIConfig
	Timeout          time.Duration
	RatePerMinute    int
	Burst            int
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// OpenAIConfig holds Azure OpenAI configuration
type OpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
}

// ReportsConfig holds Azure Blob Storage configuration for report PDFs.
// Reports are kept in memory when no account is set.
type ReportsConfig struct {
	AccountName string
	AccountKey  string
	Container   string
}

// WorkerConfig holds background job configuration
type WorkerConfig struct {
	CloseOutEnabled bool
	CloseOutCron    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from an optional .env file, an optional config
// file at path, and environment variables, in increasing precedence
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)
	v.SetDefault("server.alloworigins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.badgerpath", "data/pilly")

	// Schedule defaults
	v.SetDefault("schedule.timezone", "Local")
	v.SetDefault("schedule.gracewindow", 2*time.Hour)
	v.SetDefault("schedule.latecountstowardstreak", false)
	v.SetDefault("schedule.colorpolicy", "round_robin")
	v.SetDefault("schedule.seeddemodata", true)

	// Assistant defaults
	v.SetDefault("assistant.provider", "gemini")
	v.SetDefault("assistant.geminimodel", "gemini-2.5-flash")
	v.SetDefault("assistant.timeout", 15*time.Second)
	v.SetDefault("assistant.rateperminute", 30)
	v.SetDefault("assistant.burst", 5)
	v.SetDefault("assistant.failurethreshold", 3)
	v.SetDefault("assistant.opentimeout", 30*time.Second)

	// Reports defaults
	v.SetDefault("reports.container", "adherence-reports")

	// Worker defaults
	v.SetDefault("worker.closeoutenabled", true)
	v.SetDefault("worker.closeoutcron", "5 0 * * *")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")
	v.BindEnv("server.shutdowntimeout", "SHUTDOWN_TIMEOUT")
	v.BindEnv("server.alloworigins", "CORS_ALLOW_ORIGINS")

	// Storage
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.databaseurl", "DATABASE_URL")
	v.BindEnv("storage.badgerpath", "BADGER_PATH")

	// Schedule
	v.BindEnv("schedule.timezone", "PILLY_TIMEZONE", "TZ")
	v.BindEnv("schedule.gracewindow", "GRACE_WINDOW")
	v.BindEnv("schedule.latecountstowardstreak", "LATE_COUNTS_TOWARD_STREAK")
	v.BindEnv("schedule.colorpolicy", "COLOR_POLICY")
	v.BindEnv("schedule.seeddemodata", "SEED_DEMO_DATA")

	// Assistant
	v.BindEnv("assistant.provider", "ASSISTANT_PROVIDER")
	v.BindEnv("assistant.geminiapikey", "GEMINI_API_KEY", "API_KEY")
	v.BindEnv("assistant.geminimodel", "GEMINI_MODEL")
	v.BindEnv("assistant.openai.endpoint", "AZURE_OPENAI_ENDPOINT")
	v.BindEnv("assistant.openai.apikey", "AZURE_OPENAI_API_KEY")
	v.BindEnv("assistant.openai.deployment", "AZURE_OPENAI_DEPLOYMENT")
	v.BindEnv("assistant.timeout", "ASSISTANT_TIMEOUT")
	v.BindEnv("assistant.rateperminute", "ASSISTANT_RATE_PER_MINUTE")
	v.BindEnv("assistant.burst", "ASSISTANT_BURST")

	// Reports
	v.BindEnv("reports.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("reports.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("reports.container", "AZURE_STORAGE_REPORT_CONTAINER")

	// Worker
	v.BindEnv("worker.closeoutenabled", "CLOSEOUT_ENABLED")
	v.BindEnv("worker.closeoutcron", "CLOSEOUT_CRON")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.databaseurl is required for the postgres driver")
		}
	case DriverBadger:
		if c.Storage.BadgerPath == "" {
			return fmt.Errorf("storage.badgerpath is required for the badger driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if _, err := c.Schedule.Location(); err != nil {
		return err
	}
	if !slices.Contains([]string{"round_robin", "random"}, c.Schedule.ColorPolicy) {
		return fmt.Errorf("unknown schedule.colorpolicy %q", c.Schedule.ColorPolicy)
	}

	if !slices.Contains([]string{"", "gemini", "azure_openai", "none"}, c.Assistant.Provider) {
		return fmt.Errorf("unknown assistant.provider %q", c.Assistant.Provider)
	}
	if c.Assistant.Timeout <= 0 {
		return fmt.Errorf("assistant.timeout must be positive")
	}
	if c.Assistant.RatePerMinute <= 0 || c.Assistant.Burst <= 0 {
		return fmt.Errorf("assistant.rateperminute and assistant.burst must be positive")
	}

	if (c.Reports.AccountName == "") != (c.Reports.AccountKey == "") {
		return fmt.Errorf("reports.accountname and reports.accountkey must be set together")
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console")
	}

	return nil
}

// Location returns the time zone calendar dates are evaluated in
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule.timezone: %w", err)
	}
	return loc, nil
}
