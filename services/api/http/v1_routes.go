package http

import "github.com/gin-gonic/gin"

// registerV1Routes sets up /api/v1. Health and metrics stay outside the
// bearer token check.
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware())
	if s.cfg.BearerToken != "" {
		v1.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}

	readings := v1.Group("/readings")
	{
		readings.GET("/latest-period", s.handleV1LatestPeriod)
	}

	sources := v1.Group("/sources")
	{
		sources.GET("", s.handleV1ListSources)
		sources.GET("/:id/series", s.handleV1SourceSeries)
		sources.GET("/:id/usage", s.handleV1SourceUsage)
	}

	v1.GET("/totals", s.handleV1Totals)
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}
