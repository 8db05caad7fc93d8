package server

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/researcher/internal/docstore"
	"github.com/mohammad-safakhou/researcher/internal/runstore"
)

type TopicsHandler struct {
	Docs  *docstore.Store
	Index *docstore.Index
	Cache *runstore.ReportCache
}

func (h *TopicsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(AuthMiddleware(secret))
	g.GET("", h.listTopics)
	g.GET("/:topic/papers", h.listPapers)
	g.GET("/:topic/report", h.report)
}

// RegisterSearch mounts the cross-topic search endpoint.
func (h *TopicsHandler) RegisterSearch(g *echo.Group, secret []byte) {
	g.Use(AuthMiddleware(secret))
	g.GET("", h.search)
}

func (h *TopicsHandler) listTopics(c echo.Context) error {
	topics, err := h.Docs.Topics()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if topics == nil {
		topics = []docstore.TopicInfo{}
	}
	return c.JSON(http.StatusOK, topics)
}

func (h *TopicsHandler) listPapers(c echo.Context) error {
	docs, skipped, err := h.Docs.ListForTopic(c.Param("topic"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"topic":   docstore.NormalizeTopic(c.Param("topic")),
		"papers":  docs,
		"skipped": skipped,
	})
}

func (h *TopicsHandler) report(c echo.Context) error {
	topic := docstore.NormalizeTopic(c.Param("topic"))
	ctx := c.Request().Context()

	if cached, ok := h.Cache.Get(ctx, topic); ok {
		return c.JSON(http.StatusOK, map[string]string{"topic": topic, "report": cached})
	}
	report, err := h.Docs.Report(topic)
	if err != nil {
		if os.IsNotExist(err) {
			return echo.NewHTTPError(http.StatusNotFound, "no report for topic")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.Cache.Set(ctx, topic, report)
	return c.JSON(http.StatusOK, map[string]string{"topic": topic, "report": report})
}

func (h *TopicsHandler) search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	if h.Index == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search index not configured")
	}
	k, _ := strconv.Atoi(c.QueryParam("k"))
	hits, err := h.Index.Search(query, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hits == nil {
		hits = []docstore.Hit{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"query": query, "hits": hits})
}
