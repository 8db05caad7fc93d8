package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	core "github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/internal/runstore"
)

// Scheduler fires workflow runs for scheduled topics. A Redis lock prevents
// duplicate runs when multiple instances share the store.
type Scheduler struct {
	Store  *runstore.Store
	Runs   *RunsHandler
	Rdb    *redis.Client
	Stop   chan struct{}
	Logger *log.Logger

	// Interval between due checks. Zero means hourly.
	Interval time.Duration
}

func (s *Scheduler) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

func (s *Scheduler) Start() {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	scheds, err := s.Store.ListSchedules(ctx)
	if err != nil {
		s.logger().Printf("listing schedules: %v", err)
		return
	}
	for _, sc := range scheds {
		last, err := s.Store.LatestRunTime(ctx, sc.Topic)
		if err != nil {
			s.logger().Printf("latest run time for %s: %v", sc.Topic, err)
			continue
		}
		if !isDue(sc.Cron, last) {
			continue
		}

		// distributed lock to avoid duplicate runs
		if s.Rdb != nil {
			lockKey := "sched:lock:" + sc.ID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}

		// jitter to avoid stampedes
		time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)
		runID, err := s.Runs.launch(ctx, sc.Topic, core.RunOptions{})
		if err != nil {
			s.logger().Printf("launching scheduled run for %s: %v", sc.Topic, err)
			continue
		}
		s.logger().Printf("scheduled run %s started for topic %s", runID, sc.Topic)
	}
}

// isDue determines if a schedule with cronSpec should run now based on the
// last run time. Supports "@daily", "@hourly", and standard cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Invalid spec falls back to @daily.
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}

// SchedulesHandler manages recurring research schedules.
type SchedulesHandler struct {
	Store *runstore.Store
}

type createScheduleRequest struct {
	Topic string `json:"topic"`
	Cron  string `json:"cron"`
}

func (h *SchedulesHandler) Register(g *echo.Group, secret []byte) {
	g.Use(AuthMiddleware(secret))
	g.POST("", h.create)
	g.GET("", h.list)
	g.DELETE("/:id", h.remove)
}

func (h *SchedulesHandler) create(c echo.Context) error {
	var req createScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	if req.Cron == "" {
		req.Cron = "@daily"
	}
	if req.Cron != "@daily" && req.Cron != "@hourly" {
		if _, err := cronexpr.Parse(req.Cron); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cron expression")
		}
	}
	sched, err := h.Store.CreateSchedule(c.Request().Context(), req.Topic, req.Cron)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, sched)
}

func (h *SchedulesHandler) list(c echo.Context) error {
	scheds, err := h.Store.ListSchedules(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if scheds == nil {
		scheds = []runstore.Schedule{}
	}
	return c.JSON(http.StatusOK, scheds)
}

func (h *SchedulesHandler) remove(c echo.Context) error {
	if err := h.Store.DeleteSchedule(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
