package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mohammad-safakhou/headliner/internal/store"
	"github.com/mohammad-safakhou/headliner/internal/worker"
	"github.com/mohammad-safakhou/headliner/session"
)

// Runner accepts agent runs. *worker.Queue satisfies it.
type Runner interface {
	Submit(ctx context.Context, req worker.Request) (worker.Result, error)
	Enqueue(req worker.Request) error
}

// RunLister reads run history. *store.Store satisfies it.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	LatestRunTime(ctx context.Context, trigger string) (*time.Time, error)
}

// Deps wires the HTTP front-end.
type Deps struct {
	Runner    Runner
	Sessions  session.Store
	Runs      RunLister
	SessionID string
	// Daily builds the request of the headline routine.
	Daily          func() (worker.Request, error)
	Metrics        http.Handler
	RequestTimeout time.Duration
	Logger         *log.Logger
}

func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		d.Logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	api := e.Group("/api")
	ch := &ChatHandler{runner: d.Runner, sessions: d.Sessions, sessionID: d.SessionID, timeout: d.RequestTimeout}
	ch.Register(api.Group("/chat"))
	rh := &RunsHandler{runner: d.Runner, runs: d.Runs, daily: d.Daily}
	rh.Register(api.Group("/runs"))
	return e
}

// Serve runs e on addr until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}
