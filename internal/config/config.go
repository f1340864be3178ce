package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mirror backend selectors accepted by DUTY_MIRROR_BACKEND.
const (
	MirrorBackendSQLite = "sqlite"
	MirrorBackendRedis  = "redis"
)

// Config captures the configuration consumed by the duty roster client.
type Config struct {
	// Remote backend.
	APIBaseURL  string        `mapstructure:"DUTY_API_BASE_URL"`
	HTTPTimeout time.Duration `mapstructure:"DUTY_HTTP_TIMEOUT"`

	// Daemon credentials for the initial login.
	Username string `mapstructure:"DUTY_USERNAME"`
	Password string `mapstructure:"DUTY_PASSWORD"`

	// Session lifecycle.
	SessionCheckInterval time.Duration `mapstructure:"DUTY_SESSION_CHECK_INTERVAL"`
	SessionDefaultTTL    time.Duration `mapstructure:"DUTY_SESSION_DEFAULT_TTL"`

	// Durable mirror.
	MirrorBackend string `mapstructure:"DUTY_MIRROR_BACKEND"`
	SQLitePath    string `mapstructure:"DUTY_SQLITE_PATH"`
	RedisAddr     string `mapstructure:"DUTY_REDIS_ADDR"`
	RedisPassword string `mapstructure:"DUTY_REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"DUTY_REDIS_DB"`

	// Reminder trigger.
	ReminderEnabled       bool          `mapstructure:"DUTY_REMINDER_ENABLED"`
	ReminderHoursBefore   int           `mapstructure:"DUTY_REMINDER_HOURS_BEFORE"`
	ReminderWebhookURL    string        `mapstructure:"DUTY_REMINDER_WEBHOOK_URL"`
	ReminderCheckInterval time.Duration `mapstructure:"DUTY_REMINDER_CHECK_INTERVAL"`
	ShiftStartHour        int           `mapstructure:"DUTY_SHIFT_START_HOUR"`

	// Operational endpoints and logging.
	OpsListenAddr string `mapstructure:"DUTY_OPS_LISTEN_ADDR"`
	LogLevel      string `mapstructure:"DUTY_LOG_LEVEL"`
	LogFormat     string `mapstructure:"DUTY_LOG_FORMAT"`
}

// Load reads configuration from an optional config.yaml and the process
// environment, applying defaults for optional fields while validating required
// values and reporting all problems together.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("DUTY_API_BASE_URL", "http://localhost:8000")
	v.SetDefault("DUTY_HTTP_TIMEOUT", "15s")
	v.SetDefault("DUTY_USERNAME", "")
	v.SetDefault("DUTY_PASSWORD", "")
	v.SetDefault("DUTY_SESSION_CHECK_INTERVAL", "1m")
	v.SetDefault("DUTY_SESSION_DEFAULT_TTL", "1h")
	v.SetDefault("DUTY_MIRROR_BACKEND", MirrorBackendSQLite)
	v.SetDefault("DUTY_SQLITE_PATH", "dutyroster.db")
	v.SetDefault("DUTY_REDIS_ADDR", "localhost:6379")
	v.SetDefault("DUTY_REDIS_PASSWORD", "")
	v.SetDefault("DUTY_REDIS_DB", 0)
	v.SetDefault("DUTY_REMINDER_ENABLED", false)
	v.SetDefault("DUTY_REMINDER_HOURS_BEFORE", 2)
	v.SetDefault("DUTY_REMINDER_WEBHOOK_URL", "")
	v.SetDefault("DUTY_REMINDER_CHECK_INTERVAL", "1m")
	v.SetDefault("DUTY_SHIFT_START_HOUR", 18)
	v.SetDefault("DUTY_OPS_LISTEN_ADDR", ":9090")
	v.SetDefault("DUTY_LOG_LEVEL", "info")
	v.SetDefault("DUTY_LOG_FORMAT", "text")

	// A missing config file is fine; environment variables and defaults cover
	// every key.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		invalid = append(invalid, "DUTY_API_BASE_URL")
	}
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "DUTY_USERNAME")
	}
	if c.Password == "" {
		missing = append(missing, "DUTY_PASSWORD")
	}
	if c.HTTPTimeout <= 0 {
		invalid = append(invalid, "DUTY_HTTP_TIMEOUT")
	}
	if c.SessionCheckInterval <= 0 {
		invalid = append(invalid, "DUTY_SESSION_CHECK_INTERVAL")
	}
	if c.SessionDefaultTTL <= 0 {
		invalid = append(invalid, "DUTY_SESSION_DEFAULT_TTL")
	}

	switch strings.ToLower(strings.TrimSpace(c.MirrorBackend)) {
	case MirrorBackendSQLite:
		c.MirrorBackend = MirrorBackendSQLite
		if strings.TrimSpace(c.SQLitePath) == "" {
			invalid = append(invalid, "DUTY_SQLITE_PATH")
		}
	case MirrorBackendRedis:
		c.MirrorBackend = MirrorBackendRedis
		if strings.TrimSpace(c.RedisAddr) == "" {
			invalid = append(invalid, "DUTY_REDIS_ADDR")
		}
	default:
		invalid = append(invalid, "DUTY_MIRROR_BACKEND")
	}

	if c.ReminderHoursBefore < 1 || c.ReminderHoursBefore > 24 {
		invalid = append(invalid, "DUTY_REMINDER_HOURS_BEFORE")
	}
	if c.ReminderCheckInterval <= 0 {
		invalid = append(invalid, "DUTY_REMINDER_CHECK_INTERVAL")
	}
	if c.ShiftStartHour < 0 || c.ShiftStartHour > 23 {
		invalid = append(invalid, "DUTY_SHIFT_START_HOUR")
	}
	if c.ReminderEnabled && strings.TrimSpace(c.ReminderWebhookURL) == "" {
		invalid = append(invalid, "DUTY_REMINDER_WEBHOOK_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration values: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return nil
}
