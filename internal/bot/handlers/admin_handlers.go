package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/taskbot/internal/errs"
	"github.com/edgard/taskbot/internal/lifecycle"
)

var errUsage = errors.New("wrong number of arguments")

// NewAddTaskHandler returns a handler for
// /add_task <telegram_id> <level> [ttl] <text>.
func NewAddTaskHandler(deps HandlerDeps) bot.HandlerFunc {
	return addTaskHandler{deps}.Handle
}

type addTaskHandler struct {
	deps HandlerDeps
}

func (h addTaskHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "add_task")

	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	params, err := parseAddTask(update.Message.Text, h.deps.Config.Tasks.DefaultTTL)
	if errors.Is(err, errUsage) {
		sendText(ctx, b, log, chatID, msgs.AddTaskUsage)
		return
	}
	if err != nil {
		replyError(ctx, b, log, msgs, chatID, err)
		return
	}
	params.AdminID = update.Message.From.ID

	task, err := h.deps.Tasks.AssignTask(ctx, params)
	if err != nil {
		replyError(ctx, b, log, msgs, chatID, err)
		return
	}

	sendText(ctx, b, log, chatID, fmt.Sprintf(msgs.TaskAssignedFmt, task.ID, task.Deadline.UTC().Format(dueLayout)))

	if h.deps.Notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, h.deps.Config.Telegram.NotifyTimeout)
	defer cancel()
	if err := h.deps.Notifier.Notify(nctx, task.AssignedTo, formatTask(msgs.NewTaskFmt, task)); err != nil {
		log.WarnContext(ctx, "Failed to notify assignee about new task", "task_id", task.ID, "user_id", task.AssignedTo, "error", err)
	}
}

// parseAddTask parses the arguments of /add_task. The third argument is taken
// as the ttl when it is shaped like a duration ("6h", "90m", "2d") and text
// follows it, so a task text that starts with such a word needs an explicit
// ttl in front of it.
func parseAddTask(text string, defaultTTL time.Duration) (lifecycle.AssignParams, error) {
	args := commandArgs(text)
	if len(args) < 3 {
		return lifecycle.AssignParams{}, errUsage
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return lifecycle.AssignParams{}, errs.InvalidArgumentf("telegram id %q is not a number", args[0])
	}
	level, err := strconv.Atoi(args[1])
	if err != nil {
		return lifecycle.AssignParams{}, errs.InvalidArgumentf("level %q is not a number", args[1])
	}

	ttl := defaultTTL
	rest := args[2:]
	if len(rest) > 1 && ttlPattern.MatchString(rest[0]) {
		ttl, err = parseTTL(rest[0])
		if err != nil {
			return lifecycle.AssignParams{}, err
		}
		rest = rest[1:]
	}

	return lifecycle.AssignParams{
		UserID:     userID,
		Difficulty: level,
		Text:       strings.Join(rest, " "),
		TTL:        ttl,
	}, nil
}

var ttlPattern = regexp.MustCompile(`^([0-9]+d|([0-9]+(\.[0-9]+)?(h|m|s|ms))+)$`)

const maxTTLDays = int64(math.MaxInt64 / int64(24*time.Hour))

// parseTTL accepts Go durations ("90m", "6h") and whole days ("2d").
func parseTTL(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil || n > maxTTLDays {
			return 0, errs.InvalidArgumentf("ttl %q is out of range", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errs.InvalidArgumentf("ttl %q is not a duration", s)
	}
	return d, nil
}

// NewAddPointsHandler returns a handler for /add_points <telegram_id> <amount>.
func NewAddPointsHandler(deps HandlerDeps) bot.HandlerFunc {
	return addPointsHandler{deps}.Handle
}

type addPointsHandler struct {
	deps HandlerDeps
}

func (h addPointsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "add_points")

	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	userID, amount, err := parseAddPoints(update.Message.Text)
	if errors.Is(err, errUsage) {
		sendText(ctx, b, log, chatID, msgs.AddPointsUsage)
		return
	}
	if err != nil {
		replyError(ctx, b, log, msgs, chatID, err)
		return
	}

	reason := fmt.Sprintf("manual credit by %d", update.Message.From.ID)
	if err := h.deps.Points.CreditPoints(ctx, userID, amount, reason); err != nil {
		replyError(ctx, b, log, msgs, chatID, err)
		return
	}
	total, err := h.deps.Points.GetTotalPoints(ctx, userID)
	if err != nil {
		replyError(ctx, b, log, msgs, chatID, err)
		return
	}

	sendText(ctx, b, log, chatID, fmt.Sprintf(msgs.PointsAddedFmt, amount, userID, total))
}

func parseAddPoints(text string) (userID, amount int64, err error) {
	args := commandArgs(text)
	if len(args) != 2 {
		return 0, 0, errUsage
	}
	if userID, err = strconv.ParseInt(args[0], 10, 64); err != nil {
		return 0, 0, errs.InvalidArgumentf("telegram id %q is not a number", args[0])
	}
	if amount, err = strconv.ParseInt(args[1], 10, 64); err != nil {
		return 0, 0, errs.InvalidArgumentf("amount %q is not a number", args[1])
	}
	if amount == 0 {
		return 0, 0, errs.InvalidArgumentf("amount must not be zero")
	}
	return userID, amount, nil
}

// commandArgs splits a command message into its arguments, dropping the
// leading /command (with or without @botname).
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return fields
	}
	return fields[1:]
}
