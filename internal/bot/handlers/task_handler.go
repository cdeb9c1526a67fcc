package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/errs"
)

// NewTaskHandler returns a handler showing the sender's active task. It serves
// both /task and the "My task" keyboard button.
func NewTaskHandler(deps HandlerDeps) bot.HandlerFunc {
	return taskHandler{deps}.Handle
}

type taskHandler struct {
	deps HandlerDeps
}

func (h taskHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "task")

	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	task, err := h.deps.Tasks.GetActiveTask(ctx, update.Message.From.ID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		sendText(ctx, b, log, chatID, msgs.NoTask)
	case err != nil:
		replyError(ctx, b, log, msgs, chatID, err)
	default:
		sendText(ctx, b, log, chatID, formatTask(msgs.ActiveTaskFmt, task))
	}
}

// formatTask renders a task with a format taking id, text, difficulty and
// deadline in that order.
func formatTask(format string, task *database.Task) string {
	return fmt.Sprintf(format, task.ID, task.Text, task.Difficulty, task.Deadline.UTC().Format(dueLayout))
}

func statusLabel(status database.TaskStatus) string {
	switch status {
	case database.TaskActive:
		return "⏳"
	case database.TaskCompleted:
		return "✅"
	case database.TaskExpired:
		return "⌛"
	default:
		return string(status)
	}
}

// NewHistoryHandler returns a handler for /history.
func NewHistoryHandler(deps HandlerDeps) bot.HandlerFunc {
	return historyHandler{deps}.Handle
}

type historyHandler struct {
	deps HandlerDeps
}

const historyLimit = 10

func (h historyHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "history")

	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	tasks, err := h.deps.Tasks.TaskHistory(ctx, update.Message.From.ID, historyLimit)
	if err != nil {
		replyError(ctx, b, log, msgs, chatID, err)
		return
	}
	sendText(ctx, b, log, chatID, formatHistory(msgs, tasks))
}

func formatHistory(msgs config.MessagesConfig, tasks []database.Task) string {
	if len(tasks) == 0 {
		return msgs.HistoryEmpty
	}
	var sb strings.Builder
	sb.WriteString(msgs.HistoryHeader)
	for _, t := range tasks {
		fmt.Fprintf(&sb, "%s #%d %s (⭐ %d)\n", statusLabel(t.Status), t.ID, t.Text, t.Difficulty)
	}
	return sb.String()
}
