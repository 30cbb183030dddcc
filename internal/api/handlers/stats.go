package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ezvis/internal/database/repositories"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// StatsHandler serves the query catalog over HTTP
type StatsHandler struct {
	statsRepo repositories.StatsRepository
	runsRepo  repositories.ImportRunRepository
	logger    *pterm.Logger
}

// NewStatsHandler creates a new stats handler. runsRepo may be nil.
func NewStatsHandler(
	statsRepo repositories.StatsRepository,
	runsRepo repositories.ImportRunRepository,
	logger *pterm.Logger,
) *StatsHandler {
	return &StatsHandler{
		statsRepo: statsRepo,
		runsRepo:  runsRepo,
		logger:    logger,
	}
}

// QueryResponse is the envelope of every catalog endpoint
type QueryResponse struct {
	Query string     `json:"query"`
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
	Rows  any        `json:"rows"`
}

// Query returns a handler running one catalog query with the request's start/end bounds
func (h *StatsHandler) Query(kind repositories.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		tr, err := repositories.ParseTimeRange(c.Query("start"), c.Query("end"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rows, err := h.statsRepo.Query(c.Request.Context(), kind, tr)
		if err != nil {
			h.respondQueryError(c, kind, err)
			return
		}

		c.JSON(http.StatusOK, QueryResponse{
			Query: string(kind),
			Start: tr.Start,
			End:   tr.End,
			Rows:  rows,
		})
	}
}

// QueryByName resolves the kind from the :kind path parameter
func (h *StatsHandler) QueryByName(c *gin.Context) {
	kind, err := repositories.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"kinds": repositories.Kinds(),
		})
		return
	}
	h.Query(kind)(c)
}

// GetImportRuns lists recent import runs
func (h *StatsHandler) GetImportRuns(c *gin.Context) {
	if h.runsRepo == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}

	limit := 20
	if limitParam := c.Query("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	runs, err := h.runsRepo.FindRecent(limit)
	if err != nil {
		h.logger.WithCaller().Error("Failed to get import runs", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get import runs"})
		return
	}

	c.JSON(http.StatusOK, runs)
}

func (h *StatsHandler) respondQueryError(c *gin.Context, kind repositories.Kind, err error) {
	if errors.Is(err, repositories.ErrInvalidTimeRange) || errors.Is(err, repositories.ErrUnknownQuery) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.WithCaller().Error("Failed to run query", h.logger.Args("query", string(kind), "error", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get " + string(kind)})
}
