// Package api implements the admin HTTP surface of the etl service.
//
// Routes:
//
//	GET  /health             → liveness + database ping
//	POST /api/v1/runs        → trigger an asynchronous pipeline run
//	GET  /api/v1/runs/last   → current stage and the last finished run
//	GET  /api/v1/jobs        → most recently written job_data rows (?limit=N)
//	POST /api/v1/normalize   → normalize a posted raw listing without storing it
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jobmate/etl-service/internal/dag"
	"jobmate/etl-service/internal/logger"
	"jobmate/etl-service/internal/model"
	"jobmate/etl-service/internal/normalize"
	"jobmate/etl-service/internal/pipeline"
)

const maxListLimit = 500

// RunController starts runs and reports on them. *pipeline.Pipeline implements it.
type RunController interface {
	Run(ctx context.Context) (*pipeline.Report, error)
	Running() (bool, dag.Stage)
	LastReport() (pipeline.Report, bool)
}

// JobReader is the read side of the store.
type JobReader interface {
	ListJobs(ctx context.Context, limit int) ([]model.NormalizedJob, error)
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies.
type Handler struct {
	runs    RunController
	jobs    JobReader
	norm    *normalize.Normalizer
	runCtx  context.Context // parent of triggered runs; outlives the request
	version string
	log     zerolog.Logger
}

// NewHandler returns a configured Handler. Runs triggered over HTTP are
// bound to runCtx, not to the request that started them.
func NewHandler(runCtx context.Context, runs RunController, jobs JobReader, norm *normalize.Normalizer, version string) *Handler {
	if norm == nil {
		norm = normalize.New(nil)
	}
	return &Handler{
		runs:    runs,
		jobs:    jobs,
		norm:    norm,
		runCtx:  runCtx,
		version: version,
		log:     logger.Component("api"),
	}
}

// RegisterRoutes mounts all routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.POST("/runs", h.TriggerRun)
	v1.GET("/runs/last", h.LastRun)
	v1.GET("/jobs", h.ListJobs)
	v1.POST("/normalize", h.Normalize)
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (h *Handler) Health(c *gin.Context) {
	if err := h.jobs.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "service": "etl-service", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "etl-service", "version": h.version})
}

func (h *Handler) TriggerRun(c *gin.Context) {
	if running, stage := h.runs.Running(); running {
		c.JSON(http.StatusConflict, gin.H{"error": pipeline.ErrRunInProgress.Error(), "stage": stage})
		return
	}

	go func() {
		if _, err := h.runs.Run(h.runCtx); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				h.log.Info().Msg("triggered run skipped: another run is active")
				return
			}
			h.log.Error().Err(err).Msg("triggered run failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

type runStatus struct {
	Running bool             `json:"running"`
	Stage   dag.Stage        `json:"stage,omitempty"`
	Last    *pipeline.Report `json:"last"`
}

func (h *Handler) LastRun(c *gin.Context) {
	running, stage := h.runs.Running()
	resp := runStatus{Running: running, Stage: stage}
	if rep, ok := h.runs.LastReport(); ok {
		resp.Last = &rep
	}
	if !running && resp.Last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run has finished yet"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListJobs(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	jobs, err := h.jobs.ListJobs(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) Normalize(c *gin.Context) {
	var raw model.RawListing
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	job, err := h.norm.Normalize(&raw)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}
