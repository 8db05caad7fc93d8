package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	core "github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/internal/runstore"
)

// workflowRunner is the orchestrator surface the handler needs.
type workflowRunner interface {
	Run(ctx context.Context, topic string, opts core.RunOptions) (*core.RunResult, error)
}

type RunsHandler struct {
	Store  *runstore.Store
	Orch   workflowRunner
	Cache  *runstore.ReportCache
	Logger *log.Logger

	// Timeout bounds each background workflow run.
	Timeout time.Duration
}

type triggerRunRequest struct {
	Topic      string `json:"topic"`
	LimitSteps bool   `json:"limit_steps"`
	MaxSteps   int    `json:"max_steps"`
}

func (h *RunsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(AuthMiddleware(secret))
	g.POST("", h.trigger)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/steps", h.steps)
}

func (h *RunsHandler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}

// trigger starts a workflow run in the background and returns its id. The
// caller polls GET /runs/:id for completion.
func (h *RunsHandler) trigger(c echo.Context) error {
	var req triggerRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}

	runID, err := h.launch(c.Request().Context(), req.Topic, core.RunOptions{
		LimitSteps: req.LimitSteps,
		MaxSteps:   req.MaxSteps,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID, "status": runstore.StatusRunning})
}

// launch records the run and executes the workflow in a goroutine. The run
// row is created first so a crash mid-run still leaves a visible record.
func (h *RunsHandler) launch(ctx context.Context, topic string, opts core.RunOptions) (string, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	// The orchestrator assigns its own run id, so reserve one here and let
	// the background goroutine own the row.
	reserved := newRunID()
	if err := h.Store.CreateRun(ctx, reserved, topic); err != nil {
		return "", err
	}

	runsStarted.Inc()
	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		started := time.Now()
		result, err := h.Orch.Run(runCtx, topic, opts)
		runDuration.Observe(time.Since(started).Seconds())

		// runCtx may already be expired; persistence gets its own deadline.
		dbCtx, dbCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer dbCancel()

		steps := 0
		report := ""
		if result != nil {
			report = result.Report
			for _, rec := range result.History {
				steps++
				if dbErr := h.Store.RecordStep(dbCtx, runstore.RunStep{
					RunID:     reserved,
					StepIndex: steps,
					Step:      rec.Step,
					Agent:     rec.Agent,
					Output:    rec.Output,
				}); dbErr != nil {
					h.logger().Printf("recording step %d for run %s: %v", steps, reserved, dbErr)
				}
			}
		}
		if err != nil {
			msg := err.Error()
			runsFinished.WithLabelValues(runstore.StatusFailed).Inc()
			if dbErr := h.Store.FinishRun(dbCtx, reserved, runstore.StatusFailed, steps, report, &msg); dbErr != nil {
				h.logger().Printf("finishing failed run %s: %v", reserved, dbErr)
			}
			return
		}
		runsFinished.WithLabelValues(runstore.StatusSucceeded).Inc()
		if dbErr := h.Store.FinishRun(dbCtx, reserved, runstore.StatusSucceeded, steps, report, nil); dbErr != nil {
			h.logger().Printf("finishing run %s: %v", reserved, dbErr)
		}
		h.Cache.Invalidate(dbCtx, topic)
	}()

	return reserved, nil
}

func newRunID() string { return uuid.NewString() }

func (h *RunsHandler) list(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := h.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []runstore.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) get(c echo.Context) error {
	run, err := h.Store.GetRun(c.Request().Context(), c.Param("id"))
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}

func (h *RunsHandler) steps(c echo.Context) error {
	steps, err := h.Store.ListRunSteps(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if steps == nil {
		steps = []runstore.RunStep{}
	}
	return c.JSON(http.StatusOK, steps)
}
