package ingest

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"novelhub/internal/job"
	"novelhub/internal/novel"
	"novelhub/pkg/models"
)

// Handler exposes job submission and job status lookups.
type Handler struct {
	Jobs       *job.Repo
	Novels     *novel.Repo
	Dispatcher *Dispatcher
}

func NewHandler(jobs *job.Repo, novels *novel.Repo, d *Dispatcher) *Handler {
	return &Handler{Jobs: jobs, Novels: novels, Dispatcher: d}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/ingest", h.submit)
	r.GET("/jobs/:id", h.getJob)
}

type submitRequest struct {
	URL string `json:"url" binding:"required"`
}

// submit creates and dispatches an ingestion job for a URL. If the work is
// already in the catalog, no job is created and the stored record is
// pointed at instead; a past failed job never blocks a retry.
func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	if u, err := url.Parse(req.URL); err != nil || u.Scheme == "" || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be absolute"})
		return
	}

	ctx := c.Request.Context()

	// duplicates get a synthetic done response pointing at the stored
	// record; no job row is created
	if n, err := h.Novels.GetNovelBySourceURL(ctx, req.URL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	} else if n != nil {
		c.JSON(http.StatusOK, gin.H{
			"job_id":  "",
			"status":  models.StatusDone,
			"message": "novel already exists for this url",
			"novel":   n,
		})
		return
	}

	if ch, err := h.Novels.GetOneShotBySourceURL(ctx, req.URL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	} else if ch != nil {
		ch.Content = ""
		c.JSON(http.StatusOK, gin.H{
			"job_id":   "",
			"status":   models.StatusDone,
			"message":  "one-shot already exists for this url",
			"one_shot": ch,
		})
		return
	}

	j, err := h.Jobs.Create(ctx, req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create job failed"})
		return
	}

	// a dispatch failure is already recorded on the job row; the client
	// still gets the id and can read the error state from it
	if err := h.Dispatcher.Dispatch(ctx, j); err != nil {
		if refreshed, gerr := h.Jobs.Get(ctx, j.ID); gerr == nil {
			j = refreshed
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"job": j})
}

func (h *Handler) getJob(c *gin.Context) {
	j, err := h.Jobs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, job.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	c.JSON(http.StatusOK, j)
}
