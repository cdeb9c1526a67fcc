package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration.
const (
	DefaultLogLevel = "info"
	DefaultDBPath   = "storage.db"

	DefaultNotifyTimeout        = 10 * time.Second
	DefaultNotifyAttempts       = 3
	DefaultBreakerMaxFailures   = 5
	DefaultBreakerCooldown      = time.Minute
	DefaultSweepIntervalSeconds = 60
	DefaultMaintenanceSchedule  = "0 0 4 * * *" // daily at 04:00, seconds field enabled

	DefaultTaskTTL       = 6 * time.Hour
	DefaultMaxTaskTTL    = 7 * 24 * time.Hour
	DefaultMinDifficulty = 1
	DefaultMaxDifficulty = 5
	DefaultMaxTextLength = 1000

	DefaultMetricsListenAddr = ":9090"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("database.path", DefaultDBPath)

	// Required values get an empty default so BOT_* env overrides are picked up.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_ids", []int64{})
	v.SetDefault("telegram.notify_timeout", DefaultNotifyTimeout)
	v.SetDefault("telegram.notify_attempts", DefaultNotifyAttempts)
	v.SetDefault("telegram.breaker_max_failures", DefaultBreakerMaxFailures)
	v.SetDefault("telegram.breaker_cooldown", DefaultBreakerCooldown)

	v.SetDefault("scheduler.sweep_interval_seconds", DefaultSweepIntervalSeconds)
	v.SetDefault("scheduler.tasks", map[string]any{
		"sql_maintenance": map[string]any{
			"enabled":  true,
			"schedule": DefaultMaintenanceSchedule,
		},
	})

	v.SetDefault("tasks.default_ttl", DefaultTaskTTL)
	v.SetDefault("tasks.max_ttl", DefaultMaxTaskTTL)
	v.SetDefault("tasks.min_difficulty", DefaultMinDifficulty)
	v.SetDefault("tasks.max_difficulty", DefaultMaxDifficulty)
	v.SetDefault("tasks.max_text_length", DefaultMaxTextLength)
	v.SetDefault("tasks.completion_points_per_level", 0)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", DefaultMetricsListenAddr)

	v.SetDefault("messages.welcome", "Hi, %s! 👋\nReady for new tasks?")
	v.SetDefault("messages.help", "📋 My task: show your active task\n✅ Submit report: send a photo with a caption\n🏆 My points: show your points\n/top: leaderboard\n/history: your recent tasks")
	v.SetDefault("messages.not_authorized", "🚫 You are not allowed to use this command.")
	v.SetDefault("messages.general_error", "❌ Something went wrong. Please try again later.")
	v.SetDefault("messages.no_task", "There are no tasks for you right now. Hang on, new ones are coming soon!")
	v.SetDefault("messages.active_task_fmt", "📝 Task #%d: %s\n⭐ Level: %d\n⏰ Due: %s")
	v.SetDefault("messages.points_fmt", "You have %d points 🏅")
	v.SetDefault("messages.report_prompt", "Send one message with a photo and the report text as its caption.")
	v.SetDefault("messages.report_accepted", "Report submitted! Wait for review. 🕵️")
	v.SetDefault("messages.no_active_task", "You have no active tasks.")
	v.SetDefault("messages.no_caption", "(no text)")
	v.SetDefault("messages.task_expired", "⏰ Time for your task has run out!")
	v.SetDefault("messages.new_task_fmt", "📝 New task #%d: %s\n⭐ Level: %d\n⏰ Due: %s")
	v.SetDefault("messages.add_task_usage", "Usage: /add_task <telegram_id> <level> [ttl, e.g. 6h or 2d] <task text>\nIf the text starts with a word like 3d, give the ttl first.")
	v.SetDefault("messages.task_assigned_fmt", "Task #%d assigned ✅ (due %s)")
	v.SetDefault("messages.active_task_exists", "This user already has an active task.")
	v.SetDefault("messages.invalid_argument_fmt", "Invalid input: %s")
	v.SetDefault("messages.add_points_usage", "Usage: /add_points <telegram_id> <amount>")
	v.SetDefault("messages.points_added_fmt", "Credited %d points to %d (total %d).")
	v.SetDefault("messages.leaderboard_header", "🏆 Leaderboard:\n")
	v.SetDefault("messages.leaderboard_empty", "Nobody has points yet.")
	v.SetDefault("messages.history_header", "🗂 Your recent tasks:\n")
	v.SetDefault("messages.history_empty", "You have no tasks yet.")
	v.SetDefault("messages.button_my_task", "📋 My tasks")
	v.SetDefault("messages.button_submit_report", "✅ Submit report")
	v.SetDefault("messages.button_my_points", "🏆 My points")
}
