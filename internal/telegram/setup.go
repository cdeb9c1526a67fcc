// Package telegram creates the go-telegram bot, registers handlers on it and
// delivers direct messages to users.
package telegram

import (
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"

	"github.com/edgard/taskbot/internal/bot/handlers"
	"github.com/edgard/taskbot/internal/logger"
)

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, log *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if log == nil {
		log = logger.Discard()
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.With("component", "telegram_bot").Info("Telegram bot instance created")
	return b, nil
}

// applyMiddleware wraps handler so that mw[0] is the outermost middleware.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers every handler with b, wrapping each in its own
// middleware. Handlers with a Match function are registered by match func,
// the rest by type, pattern and match type. It returns the handler ids keyed
// like the input map.
func RegisterHandlers(b *bot.Bot, log *slog.Logger, registered map[string]handlers.RegisteredHandler) (map[string]string, error) {
	if b == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "handler_registry")

	ids := make(map[string]string, len(registered))
	for name, rh := range registered {
		if rh.Handler == nil {
			log.Warn("Skipping registration for nil handler", "name", name)
			continue
		}

		h := applyMiddleware(rh.Handler, rh.Middleware)
		if rh.Match != nil {
			ids[name] = b.RegisterHandlerMatchFunc(rh.Match, h)
		} else {
			ids[name] = b.RegisterHandler(rh.HandlerType, rh.Pattern, rh.MatchType, h)
		}
		log.Debug("Registered handler", "name", name, "pattern", rh.Pattern, "middleware_count", len(rh.Middleware))
	}

	log.Info("Registered Telegram handlers", "count", len(ids))
	return ids, nil
}
