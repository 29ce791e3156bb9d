// Package handlers exposes the harvester over HTTP: job submission and
// status, ad-hoc server and channel listing, and period analysis.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"discord-harvester/analyzer"
	"discord-harvester/bot"
	"discord-harvester/database"
	"discord-harvester/models"
	"discord-harvester/utils"

	"github.com/gin-gonic/gin"
)

// AnalysisService runs period analyses.
type AnalysisService interface {
	Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Outcome, error)
}

// Handlers groups the HTTP endpoints. Analysis may be nil when no LLM is
// configured; the endpoint then answers 503.
type Handlers struct {
	jobs     database.JobQueue
	open     bot.Opener
	analysis AnalysisService
}

// New binds the handlers to their dependencies.
func New(jobs database.JobQueue, open bot.Opener, analysis AnalysisService) *Handlers {
	return &Handlers{jobs: jobs, open: open, analysis: analysis}
}

// HarvestRequest is the body of POST /discord/harvest.
type HarvestRequest struct {
	DiscordID string  `json:"discordId" binding:"required"`
	ServerID  int64   `json:"serverId" binding:"required"`
	Channels  []int64 `json:"channels" binding:"required,min=1"`
	After     string  `json:"after"`
	Before    string  `json:"before"`
}

// SubmitHarvest queues a harvest job.
func (h *Handlers) SubmitHarvest(c *gin.Context) {
	var req HarvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	id, err := h.jobs.Submit(c.Request.Context(), models.HarvestJob{
		RequesterID: req.DiscordID,
		ServerID:    req.ServerID,
		ChannelIDs:  req.Channels,
		After:       req.After,
		Before:      req.Before,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id, "status": "queued"})
}

// JobStatus reports the state of one job.
func (h *Handlers) JobStatus(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":      job.ID,
		"status":      job.Status,
		"inserted":    job.InsertedCount,
		"finished_at": job.FinishedAt,
		"error":       job.ErrorMessage,
	})
}

// ListJobs returns recent jobs, optionally filtered by ?status=.
func (h *Handlers) ListJobs(c *gin.Context) {
	status := models.JobStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status "+string(status))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
		return
	}
	jobs, err := h.jobs.List(c.Request.Context(), status, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	if jobs == nil {
		jobs = []models.HarvestJob{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// ListServers lists the guilds the bot is in through a dedicated session.
func (h *Handlers) ListServers(c *gin.Context) {
	var guilds []bot.Guild
	err := bot.WithSession(c.Request.Context(), h.open, func(g bot.Gateway) error {
		var err error
		guilds, err = g.ListGuilds(c.Request.Context())
		return err
	})
	if err != nil {
		failErr(c, err)
		return
	}
	if guilds == nil {
		guilds = []bot.Guild{}
	}
	c.JSON(http.StatusOK, gin.H{"servers": guilds})
}

// ListChannels lists the readable text channels of a guild through a
// dedicated session.
func (h *Handlers) ListChannels(c *gin.Context) {
	serverID, err := utils.ParseSnowflake("server", c.Param("server_id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var (
		guild    *bot.Guild
		channels []bot.GuildChannel
	)
	err = bot.WithSession(c.Request.Context(), h.open, func(g bot.Gateway) error {
		guilds, err := g.ListGuilds(c.Request.Context())
		if err != nil {
			return err
		}
		for i := range guilds {
			if guilds[i].ID == serverID {
				guild = &guilds[i]
				break
			}
		}
		if guild == nil {
			return &models.TargetNotFoundError{Kind: "guild", ID: c.Param("server_id")}
		}
		channels, err = g.ListChannels(c.Request.Context(), serverID)
		return err
	})
	if err != nil {
		failErr(c, err)
		return
	}
	if channels == nil {
		channels = []bot.GuildChannel{}
	}
	c.JSON(http.StatusOK, gin.H{
		"server_id":   utils.FormatSnowflake(guild.ID),
		"server_name": guild.Name,
		"channels":    channels,
	})
}

// Analyze runs a period analysis over stored messages.
func (h *Handlers) Analyze(c *gin.Context) {
	if h.analysis == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeAnalysis, "analysis is not configured")
		return
	}
	var req analyzer.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	out, err := h.analysis.Analyze(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
