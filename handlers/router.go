package handlers

import (
	"net/http"

	"discord-harvester/metrics"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with middleware and routes.
// Middleware order: request id, access log, recovery, metrics.
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(RequestID())
	r.Use(Logger())
	r.Use(Recovery())
	r.Use(metrics.Middleware())

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	discord := r.Group("/discord")
	{
		discord.POST("/harvest", h.SubmitHarvest)
		discord.GET("/harvest/status/:job_id", h.JobStatus)
		discord.GET("/harvest/jobs", h.ListJobs)
		discord.GET("/servers", h.ListServers)
		discord.GET("/channels/:server_id", h.ListChannels)
		discord.POST("/analyze", h.Analyze)
	}
	return r
}
