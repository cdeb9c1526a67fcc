// Package bot wires the Telegram listener, the job scheduler and the metrics
// server together and manages their lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"
)

// Listener receives Telegram updates until ctx is cancelled.
type Listener interface {
	Start(ctx context.Context)
}

var _ Listener = (*tgbot.Bot)(nil)

// JobRunner is the part of Scheduler the orchestrator drives.
type JobRunner interface {
	Start() error
	Stop() error
}

// MetricsServer serves metrics until ctx is cancelled.
type MetricsServer interface {
	Run(ctx context.Context) error
}

// Bot runs the components until the context is cancelled or one of them
// fails.
type Bot struct {
	logger    *slog.Logger
	listener  Listener
	scheduler JobRunner
	metrics   MetricsServer
}

// NewBot creates the orchestrator. metricsServer may be nil when metrics are
// disabled.
func NewBot(logger *slog.Logger, listener Listener, scheduler JobRunner, metricsServer MetricsServer) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		listener:  listener,
		scheduler: scheduler,
		metrics:   metricsServer,
	}
}

// Run starts all components and blocks until shutdown. The scheduler is
// stopped, waiting for in-flight jobs, before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")
		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.metrics != nil {
		g.Go(func() error {
			if err := b.metrics.Run(gCtx); err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
