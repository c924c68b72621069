package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/headliner/internal/store"
	"github.com/mohammad-safakhou/headliner/internal/worker"
)

type RunsHandler struct {
	runner Runner
	runs   RunLister
	daily  func() (worker.Request, error)
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/latest", h.latest)
	g.POST("/daily", h.trigger)
}

func (h *RunsHandler) list(c echo.Context) error {
	if h.runs == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "run history requires postgres")
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	runs, err := h.runs.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

type latestResponse struct {
	Trigger   string     `json:"trigger"`
	StartedAt *time.Time `json:"started_at"`
}

// latest reports when a run of the given trigger last started, scheduled by
// default, so a missed morning digest is visible.
func (h *RunsHandler) latest(c echo.Context) error {
	if h.runs == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "run history requires postgres")
	}
	trigger := c.QueryParam("trigger")
	switch trigger {
	case "":
		trigger = worker.TriggerScheduled
	case worker.TriggerScheduled, worker.TriggerInteractive, worker.TriggerManual:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown trigger")
	}
	ts, err := h.runs.LatestRunTime(c.Request().Context(), trigger)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, latestResponse{Trigger: trigger, StartedAt: ts})
}

// trigger queues the headline routine now and returns without waiting.
func (h *RunsHandler) trigger(c echo.Context) error {
	if h.daily == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "daily routine not configured")
	}
	req, err := h.daily()
	if err != nil {
		return err
	}
	req.Trigger = worker.TriggerManual
	if err := h.runner.Enqueue(req); err != nil {
		return runError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued", "id": req.ID})
}
