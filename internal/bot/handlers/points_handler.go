package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
)

// NewPointsHandler returns a handler showing the sender's point total. It
// serves both /points and the "My points" keyboard button.
func NewPointsHandler(deps HandlerDeps) bot.HandlerFunc {
	return pointsHandler{deps}.Handle
}

type pointsHandler struct {
	deps HandlerDeps
}

func (h pointsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "points")

	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	total, err := h.deps.Points.GetTotalPoints(ctx, update.Message.From.ID)
	if err != nil {
		replyError(ctx, b, log, msgs, chatID, err)
		return
	}
	sendText(ctx, b, log, chatID, fmt.Sprintf(msgs.PointsFmt, total))
}

// NewTopHandler returns a handler for /top.
func NewTopHandler(deps HandlerDeps) bot.HandlerFunc {
	return topHandler{deps}.Handle
}

type topHandler struct {
	deps HandlerDeps
}

const leaderboardSize = 10

func (h topHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "top")

	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	rows, err := h.deps.Points.Leaderboard(ctx, leaderboardSize)
	if err != nil {
		replyError(ctx, b, log, msgs, chatID, err)
		return
	}
	sendText(ctx, b, log, chatID, formatLeaderboard(msgs, rows))
}

func formatLeaderboard(msgs config.MessagesConfig, rows []database.UserPoints) string {
	if len(rows) == 0 {
		return msgs.LeaderboardEmpty
	}
	var sb strings.Builder
	sb.WriteString(msgs.LeaderboardHeader)
	for i, row := range rows {
		name := row.Name
		if name == "" {
			name = fmt.Sprintf("%d", row.UserID)
		}
		fmt.Fprintf(&sb, "%d. %s: %d\n", i+1, name, row.Total)
	}
	return sb.String()
}
