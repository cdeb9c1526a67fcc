package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/errs"
)

// dueLayout is how deadlines are shown to users.
const dueLayout = "2006-01-02 15:04 MST"

func sendText(ctx context.Context, b *tgbot.Bot, log *slog.Logger, chatID int64, text string) {
	send(ctx, b, log, &tgbot.SendMessageParams{ChatID: chatID, Text: text})
}

func send(ctx context.Context, b *tgbot.Bot, log *slog.Logger, params *tgbot.SendMessageParams) {
	if _, err := b.SendMessage(ctx, params); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", params.ChatID)
	}
}

// mainKeyboard is the reply keyboard shown after /start.
func mainKeyboard(msgs config.MessagesConfig) *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: msgs.ButtonMyTask}, {Text: msgs.ButtonSubmitReport}},
			{{Text: msgs.ButtonMyPoints}},
		},
		ResizeKeyboard: true,
	}
}

// errorText maps a service error to the message shown to the user.
// Infrastructure failures never leak their details.
func errorText(msgs config.MessagesConfig, err error) string {
	switch {
	case errors.Is(err, errs.ErrPermissionDenied):
		return msgs.NotAuthorized
	case errors.Is(err, errs.ErrInvalidArgument):
		return fmt.Sprintf(msgs.InvalidArgumentFmt, errs.Message(err))
	case errors.Is(err, errs.ErrActiveTaskExists):
		return msgs.ActiveTaskExists
	case errors.Is(err, errs.ErrNoActiveTask):
		return msgs.NoActiveTask
	case errors.Is(err, errs.ErrNotFound):
		return msgs.NoTask
	default:
		return msgs.GeneralError
	}
}

// replyError logs err at a level matching its kind and sends the mapped text.
func replyError(ctx context.Context, b *tgbot.Bot, log *slog.Logger, msgs config.MessagesConfig, chatID int64, err error) {
	if errs.IsBusiness(err) {
		log.InfoContext(ctx, "Request rejected", "code", errs.Code(err), "error", err)
	} else {
		log.ErrorContext(ctx, "Request failed", "error", err)
	}
	sendText(ctx, b, log, chatID, errorText(msgs, err))
}

// displayName builds the name stored for a Telegram user.
func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}
