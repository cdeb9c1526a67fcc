// Package config provides configuration loading, validation, and management
// for the task bot. It reads a YAML file, applies BOT_* environment overrides,
// sets default values and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SweepTaskName is the scheduler key of the deadline sweeper job.
const SweepTaskName = "deadline_sweep"

// Config defines the application configuration for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds the bot token and the privileged user ids consulted by
// the admin identity source.
type TelegramConfig struct {
	Token         string        `mapstructure:"token"          validate:"required"`
	AdminUserIDs  []int64       `mapstructure:"admin_user_ids" validate:"min=1,dive,gt=0"`
	NotifyTimeout time.Duration `mapstructure:"notify_timeout" validate:"min=1s,max=1m"`
	// NotifyAttempts is the number of delivery tries per notification.
	NotifyAttempts int `mapstructure:"notify_attempts" validate:"min=1,max=10"`
	// BreakerMaxFailures consecutive delivery failures stop deliveries for
	// BreakerCooldown.
	BreakerMaxFailures int           `mapstructure:"breaker_max_failures" validate:"min=1"`
	BreakerCooldown    time.Duration `mapstructure:"breaker_cooldown"     validate:"min=1s"`
}

// SchedulerConfig configures the periodic jobs. The deadline sweeper always
// runs every SweepIntervalSeconds; other jobs are cron-scheduled.
type SchedulerConfig struct {
	SweepIntervalSeconds int                   `mapstructure:"sweep_interval_seconds" validate:"min=1,max=86400"`
	Tasks                map[string]TaskConfig `mapstructure:"tasks"                  validate:"dive"`
}

// TaskConfig describes one scheduled job. Interval takes precedence over
// Schedule when both are set.
type TaskConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	Interval time.Duration `mapstructure:"interval" validate:"min=0"`
}

// TasksConfig bounds the parameters an admin may use when assigning a task.
type TasksConfig struct {
	DefaultTTL               time.Duration `mapstructure:"default_ttl"                 validate:"gt=0,ltefield=MaxTTL"`
	MaxTTL                   time.Duration `mapstructure:"max_ttl"                     validate:"gt=0"`
	MinDifficulty            int           `mapstructure:"min_difficulty"              validate:"min=0"`
	MaxDifficulty            int           `mapstructure:"max_difficulty"              validate:"gtefield=MinDifficulty"`
	MaxTextLength            int           `mapstructure:"max_text_length"             validate:"min=1,max=4000"`
	CompletionPointsPerLevel int64         `mapstructure:"completion_points_per_level" validate:"min=0"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" validate:"required_if=Enabled true"`
}

// MessagesConfig holds every user-facing string. Fields ending in Fmt are
// fmt format strings.
type MessagesConfig struct {
	Welcome            string `mapstructure:"welcome"              validate:"required"`
	Help               string `mapstructure:"help"                 validate:"required"`
	NotAuthorized      string `mapstructure:"not_authorized"       validate:"required"`
	GeneralError       string `mapstructure:"general_error"        validate:"required"`
	NoTask             string `mapstructure:"no_task"              validate:"required"`
	ActiveTaskFmt      string `mapstructure:"active_task_fmt"      validate:"required"`
	PointsFmt          string `mapstructure:"points_fmt"           validate:"required"`
	ReportPrompt       string `mapstructure:"report_prompt"        validate:"required"`
	ReportAccepted     string `mapstructure:"report_accepted"      validate:"required"`
	NoActiveTask       string `mapstructure:"no_active_task"       validate:"required"`
	NoCaption          string `mapstructure:"no_caption"           validate:"required"`
	TaskExpired        string `mapstructure:"task_expired"         validate:"required"`
	NewTaskFmt         string `mapstructure:"new_task_fmt"         validate:"required"`
	AddTaskUsage       string `mapstructure:"add_task_usage"       validate:"required"`
	TaskAssignedFmt    string `mapstructure:"task_assigned_fmt"    validate:"required"`
	ActiveTaskExists   string `mapstructure:"active_task_exists"   validate:"required"`
	InvalidArgumentFmt string `mapstructure:"invalid_argument_fmt" validate:"required"`
	AddPointsUsage     string `mapstructure:"add_points_usage"     validate:"required"`
	PointsAddedFmt     string `mapstructure:"points_added_fmt"     validate:"required"`
	LeaderboardHeader  string `mapstructure:"leaderboard_header"   validate:"required"`
	LeaderboardEmpty   string `mapstructure:"leaderboard_empty"    validate:"required"`
	HistoryHeader      string `mapstructure:"history_header"       validate:"required"`
	HistoryEmpty       string `mapstructure:"history_empty"        validate:"required"`
	ButtonMyTask       string `mapstructure:"button_my_task"       validate:"required"`
	ButtonSubmitReport string `mapstructure:"button_submit_report" validate:"required"`
	ButtonMyPoints     string `mapstructure:"button_my_points"     validate:"required"`
}

// SweepInterval returns the deadline sweeper period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Scheduler.SweepIntervalSeconds) * time.Second
}

// LoadConfig reads configuration from the given YAML file, overlays BOT_*
// environment variables (optionally seeded from a .env file), sets default
// values and validates the result. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	startTime := time.Now()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applySweepInterval()

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	slog.Debug("Configuration loaded",
		"path", path,
		"db_path", cfg.Database.Path,
		"admins", len(cfg.Telegram.AdminUserIDs),
		"sweep_interval", cfg.SweepInterval(),
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}

// Validate checks the struct tags of cfg.
func Validate(cfg *Config) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// applySweepInterval makes sure the sweeper job exists and runs on the
// configured interval.
func (c *Config) applySweepInterval() {
	if c.Scheduler.Tasks == nil {
		c.Scheduler.Tasks = make(map[string]TaskConfig)
	}
	sweep, ok := c.Scheduler.Tasks[SweepTaskName]
	if !ok {
		sweep.Enabled = true
	}
	sweep.Interval = c.SweepInterval()
	c.Scheduler.Tasks[SweepTaskName] = sweep
}
