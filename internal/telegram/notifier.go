package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/taskbot/internal/resilience"
)

// Sender is the subset of *bot.Bot used to deliver messages.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Notifier sends plain text messages to a user's private chat, whose id is
// the user id. Deliveries go through the breaker when one is set.
type Notifier struct {
	sender  Sender
	breaker *resilience.Breaker
}

func NewNotifier(sender Sender, breaker *resilience.Breaker) *Notifier {
	return &Notifier{sender: sender, breaker: breaker}
}

func (n *Notifier) Notify(ctx context.Context, userID int64, text string) error {
	send := func(ctx context.Context) error {
		_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: userID, Text: text})
		return err
	}

	var err error
	if n.breaker != nil {
		err = n.breaker.Execute(ctx, send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to send message to %d: %w", userID, err)
	}
	return nil
}

// IsPermanentError reports Telegram errors caused by the recipient or the
// request itself, such as a user who blocked the bot. Retrying them is
// pointless and they say nothing about the API's health.
func IsPermanentError(err error) bool {
	return errors.Is(err, bot.ErrorForbidden) || errors.Is(err, bot.ErrorBadRequest)
}
