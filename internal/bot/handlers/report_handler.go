package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewReportPromptHandler returns a handler for the "Submit report" button. It
// puts the sender in report mode and explains what to send.
func NewReportPromptHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		log := deps.Logger.With("handler", "report_prompt")

		deps.Reports.Arm(update.Message.From.ID)
		log.DebugContext(ctx, "Report mode armed", "user_id", update.Message.From.ID)
		sendText(ctx, b, log, update.Message.Chat.ID, deps.Config.Messages.ReportPrompt)
	}
}

// NewReportHandler returns a handler for photo messages from users in report
// mode. The largest photo size is stored as the proof and the caption as the
// report text. Report mode ends once a report is accepted.
func NewReportHandler(deps HandlerDeps) bot.HandlerFunc {
	return reportHandler{deps}.Handle
}

type reportHandler struct {
	deps HandlerDeps
}

// IsPhotoMessage matches private messages that carry a photo.
func IsPhotoMessage(update *models.Update) bool {
	return update.Message != nil &&
		update.Message.From != nil &&
		update.Message.Chat.Type == models.ChatTypePrivate &&
		len(update.Message.Photo) > 0
}

func (h reportHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "report")

	if !IsPhotoMessage(update) {
		return
	}

	msg := update.Message
	msgs := h.deps.Config.Messages

	if !h.deps.Reports.Armed(msg.From.ID) {
		log.DebugContext(ctx, "Ignoring photo outside report mode", "user_id", msg.From.ID)
		return
	}

	photo := msg.Photo[len(msg.Photo)-1].FileID
	caption := strings.TrimSpace(msg.Caption)
	if caption == "" {
		caption = msgs.NoCaption
	}

	task, _, err := h.deps.Tasks.SubmitReport(ctx, msg.From.ID, caption, photo)
	if err != nil {
		replyError(ctx, b, log, msgs, msg.Chat.ID, err)
		return
	}
	h.deps.Reports.Disarm(msg.From.ID)

	log.InfoContext(ctx, "Report accepted", "user_id", msg.From.ID, "task_id", task.ID)
	sendText(ctx, b, log, msg.Chat.ID, msgs.ReportAccepted)
}
