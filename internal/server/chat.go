package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/headliner/internal/agent"
	"github.com/mohammad-safakhou/headliner/internal/worker"
	"github.com/mohammad-safakhou/headliner/models"
	"github.com/mohammad-safakhou/headliner/session"
)

// ChatHandler is the interactive front-end. Without a session id every caller
// shares the configured conversation.
type ChatHandler struct {
	runner    Runner
	sessions  session.Store
	sessionID string
	timeout   time.Duration
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Reply     string      `json:"reply"`
	RunID     string      `json:"run_id"`
	State     agent.State `json:"state"`
	Steps     int         `json:"steps"`
	SessionID string      `json:"session_id"`
}

type historyResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []models.Message `json:"messages"`
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("", h.chat)
	g.GET("/history", h.history)
}

func (h *ChatHandler) session(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return h.sessionID
}

func (h *ChatHandler) chat(c echo.Context) error {
	var body chatRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	msg := strings.TrimSpace(body.Message)
	if msg == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	ctx := c.Request().Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	sid := h.session(body.SessionID)
	res, err := h.runner.Submit(ctx, worker.Request{
		ID:        uuid.NewString(),
		Trigger:   worker.TriggerInteractive,
		SessionID: sid,
		Prompt:    msg,
	})
	if err != nil {
		return runError(err)
	}
	return c.JSON(http.StatusOK, chatResponse{
		Reply:     res.Reply,
		RunID:     res.RunID,
		State:     res.State,
		Steps:     res.Steps,
		SessionID: sid,
	})
}

func (h *ChatHandler) history(c echo.Context) error {
	sid := h.session(c.QueryParam("session_id"))
	msgs, err := h.sessions.Load(c.Request().Context(), sid)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return c.JSON(http.StatusOK, historyResponse{SessionID: sid, Messages: msgs})
}

// runError maps a failed run onto an HTTP status.
func runError(err error) error {
	var toolErr *agent.ToolError
	switch {
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrStopped):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, agent.ErrModel), errors.As(err, &toolErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	default:
		return err
	}
}
