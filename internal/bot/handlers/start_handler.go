package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler registers the sender and shows the main keyboard.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	from := update.Message.From
	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	if _, err := h.deps.Tasks.RegisterUser(ctx, from.ID, displayName(from)); err != nil {
		replyError(ctx, b, log, msgs, chatID, err)
		return
	}

	log.InfoContext(ctx, "User started the bot", "chat_id", chatID, "user_id", from.ID)
	send(ctx, b, log, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        fmt.Sprintf(msgs.Welcome, from.FirstName),
		ReplyMarkup: mainKeyboard(msgs),
	})
}
