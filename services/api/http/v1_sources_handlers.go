package http

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/printer-page-counter/internal/series"
)

// periodPattern accepts monthly (2006-01) and daily (2006-01-02) keys.
var periodPattern = regexp.MustCompile(`^\d{4}-\d{2}(-\d{2})?$`)

// handleV1ListSources returns all source ids with at least one reading
// GET /api/v1/sources
func (s *Server) handleV1ListSources(c *gin.Context) {
	ctx, cancel := s.requestTimeout(c)
	defer cancel()

	ids, err := s.store.Sources(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": ids,
		"meta": gin.H{
			"count": len(ids),
		},
	})
}

// handleV1SourceSeries returns the reading series of one source
// GET /api/v1/sources/:id/series?period=2024-06
func (s *Server) handleV1SourceSeries(c *gin.Context) {
	sourceID, ok := sourceParam(c)
	if !ok {
		return
	}
	period := c.Query("period")
	if period != "" && !periodPattern.MatchString(period) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period"})
		return
	}

	ctx, cancel := s.requestTimeout(c)
	defer cancel()

	rows, err := s.store.Series(ctx, sourceID, series.PeriodKey(period))
	if err != nil {
		s.internalError(c, err)
		return
	}

	meta := gin.H{
		"source_id": sourceID,
		"count":     len(rows),
	}
	if period != "" {
		meta["period"] = period
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "meta": meta})
}

// handleV1SourceUsage returns pages used per period for one source
// GET /api/v1/sources/:id/usage
func (s *Server) handleV1SourceUsage(c *gin.Context) {
	sourceID, ok := sourceParam(c)
	if !ok {
		return
	}

	ctx, cancel := s.requestTimeout(c)
	defer cancel()

	usage, err := s.store.Usage(ctx, sourceID)
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": usage,
		"meta": gin.H{
			"source_id": sourceID,
			"periods":   len(usage),
		},
	})
}

// sourceParam reads :id and answers 400 when it cannot name a series.
func sourceParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := series.ValidateSourceID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}
