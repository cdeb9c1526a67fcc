// Package main contains the entrypoint for the task bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/edgard/taskbot/internal/bot"
	"github.com/edgard/taskbot/internal/bot/handlers"
	"github.com/edgard/taskbot/internal/bot/tasks"
	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/lifecycle"
	"github.com/edgard/taskbot/internal/logger"
	"github.com/edgard/taskbot/internal/metrics"
	"github.com/edgard/taskbot/internal/resilience"
	"github.com/edgard/taskbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the process
// exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	clock := clockwork.NewRealClock()
	admins := lifecycle.NewStaticAdmins(cfg.Telegram.AdminUserIDs...)
	manager := lifecycle.NewManager(store, admins, clock, lifecycle.Limits{
		MinDifficulty:  cfg.Tasks.MinDifficulty,
		MaxDifficulty:  cfg.Tasks.MaxDifficulty,
		MaxTTL:         cfg.Tasks.MaxTTL,
		MaxTextLength:  cfg.Tasks.MaxTextLength,
		PointsPerLevel: cfg.Tasks.CompletionPointsPerLevel,
	}, m, log)
	ledger := lifecycle.NewLedger(store, clock, m, log)

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, tgbot.WithMiddlewares(logger.Middleware(log)))
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	notifier := telegram.NewNotifier(tg, resilience.New(resilience.Config{
		Name:        "telegram_notify",
		MaxFailures: cfg.Telegram.BreakerMaxFailures,
		Cooldown:    cfg.Telegram.BreakerCooldown,
		Attempts:    cfg.Telegram.NotifyAttempts,
		Permanent:   telegram.IsPermanentError,
	}, log))
	sweeper := lifecycle.NewSweeper(store, notifier, clock, lifecycle.SweeperOptions{
		Message:       cfg.Messages.TaskExpired,
		NotifyTimeout: cfg.Telegram.NotifyTimeout,
	}, m, log)

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Tasks:    manager,
		Points:   ledger,
		Admins:   admins,
		Notifier: notifier,
		Reports:  handlers.NewReportModes(),
	}
	if _, err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, clock, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Sweeper: sweeper,
		Clock:   clock,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var metricsServer bot.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.ListenAddr, reg, store, log)
	}

	app := bot.NewBot(log, tg, sched, metricsServer)

	log.Info("Starting bot...")
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Bot stopped due to error", "error", err)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
