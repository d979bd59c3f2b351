package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vantagelab/termlens/internal/application/analysis"
	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/pkg/errors"
)

const (
	defaultRunListLimit = 20
	maxRunListLimit     = 100
)

// AnalysisHandler serves the /v1/analyses resource.
type AnalysisHandler struct {
	service analysis.Service
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(service analysis.Service) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// SubmitRequest is the POST /v1/analyses body.
type SubmitRequest struct {
	Terms []term.Record `json:"terms"`
}

// Submit stores the batch and schedules a run. Responds 202: the pipeline
// runs asynchronously and the run resource reports progress.
func (h *AnalysisHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeExportParseError, "decode term batch"))
		return
	}
	run, err := h.service.Submit(c.Request.Context(), req.Terms)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// List returns recent runs, newest first.
func (h *AnalysisHandler) List(c *gin.Context) {
	limit := defaultRunListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRunListLimit {
			respondError(c, errors.InvalidParam("limit must be an integer in [1,100]"))
			return
		}
		limit = n
	}
	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if runs == nil {
		runs = []*analysis.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Get returns one run by id.
func (h *AnalysisHandler) Get(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if run == nil {
		respondError(c, errors.New(errors.ErrCodeRunNotFound, "run not found"))
		return
	}
	c.JSON(http.StatusOK, run)
}

// Clusters returns the enriched clusters of a finished run.
func (h *AnalysisHandler) Clusters(c *gin.Context) {
	clusters, err := h.service.ListClusters(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": clusters})
}
