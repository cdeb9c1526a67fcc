// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that lets the update through only when the
// sender is an admin according to deps.Admins. Everyone else gets the
// not-authorized message.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			userID := update.Message.From.ID
			if !deps.Admins.IsAdmin(ctx, userID) {
				chatID := update.Message.Chat.ID
				deps.Logger.WarnContext(ctx, "Unauthorized access attempt",
					"middleware", "AdminOnly", "user_id", userID, "chat_id", chatID)
				sendText(ctx, b, deps.Logger, chatID, deps.Config.Messages.NotAuthorized)
				return
			}

			next(ctx, b, update)
		}
	}
}
