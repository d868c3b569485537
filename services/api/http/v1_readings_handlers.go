package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleV1LatestPeriod returns every reading of the fleet's most recent period
// GET /api/v1/readings/latest-period
func (s *Server) handleV1LatestPeriod(c *gin.Context) {
	ctx, cancel := s.requestTimeout(c)
	defer cancel()

	latest, err := s.store.LatestPeriodReadings(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": latest.Readings,
		"meta": gin.H{
			"period":       latest.Period,
			"count":        len(latest.Readings),
			"generated_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleV1Totals returns the last known counter total of every source
// GET /api/v1/totals
func (s *Server) handleV1Totals(c *gin.Context) {
	ctx, cancel := s.requestTimeout(c)
	defer cancel()

	totals, err := s.store.LatestTotals(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}

	var sum int64
	for _, total := range totals {
		sum += total
	}

	c.JSON(http.StatusOK, gin.H{
		"data": totals,
		"meta": gin.H{
			"count": len(totals),
			"sum":   sum,
		},
	})
}
