package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"jobmate/etl-service/internal/logger"
)

// NewRouter builds the gin engine with recovery, request logging and all routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	h.RegisterRoutes(r)
	return r
}

func requestLogger() gin.HandlerFunc {
	base := logger.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log := base.With().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Logger()

		if len(c.Errors) > 0 {
			log.Error().Msg(c.Errors.String())
		} else {
			log.Info().Msg("request processed")
		}
	}
}
