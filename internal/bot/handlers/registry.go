package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler describes one handler and how updates are routed to it.
// When Match is set it takes precedence over HandlerType, Pattern and
// MatchType.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
	Match       tgbot.MatchFunc
}

func command(pattern string, h tgbot.HandlerFunc, mw ...tgbot.Middleware) RegisteredHandler {
	return RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     pattern,
		Handler:     h,
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  mw,
	}
}

func button(text string, h tgbot.HandlerFunc) RegisteredHandler {
	return RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     text,
		Handler:     h,
		MatchType:   tgbot.MatchTypeExact,
	}
}

// RegisterAllCommands returns every handler keyed by a unique name.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	if deps.Reports == nil {
		deps.Reports = NewReportModes()
	}
	msgs := deps.Config.Messages
	showTask := NewTaskHandler(deps)
	showPoints := NewPointsHandler(deps)
	adminOnly := AdminOnly(deps)

	return map[string]RegisteredHandler{
		"/start":   command("start", NewStartHandler(deps)),
		"/help":    command("help", NewHelpHandler(deps)),
		"/task":    command("task", showTask),
		"/points":  command("points", showPoints),
		"/top":     command("top", NewTopHandler(deps)),
		"/history": command("history", NewHistoryHandler(deps)),

		"/add_task":   command("add_task", NewAddTaskHandler(deps), adminOnly),
		"/add_points": command("add_points", NewAddPointsHandler(deps), adminOnly),

		"button:task":   button(msgs.ButtonMyTask, showTask),
		"button:report": button(msgs.ButtonSubmitReport, NewReportPromptHandler(deps)),
		"button:points": button(msgs.ButtonMyPoints, showPoints),

		"report": {
			Handler: NewReportHandler(deps),
			Match:   IsPhotoMessage,
		},
	}
}
