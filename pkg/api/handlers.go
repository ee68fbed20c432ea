package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/dittolpd/internal/logger"
	"github.com/marmos91/dittolpd/pkg/spool"
	"github.com/marmos91/dittolpd/pkg/store/content"
	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

type handlers struct {
	spool *spool.Spool
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) listQueues(c *gin.Context) {
	queues, err := h.spool.Queues(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": queues})
}

func (h *handlers) lockQueue(c *gin.Context) {
	h.setLocked(c, true)
}

func (h *handlers) unlockQueue(c *gin.Context) {
	h.setLocked(c, false)
}

func (h *handlers) setLocked(c *gin.Context, locked bool) {
	name := c.Param("queue")
	op := h.spool.UnlockQueue
	if locked {
		op = h.spool.LockQueue
	}
	if err := op(c.Request.Context(), name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": name, "locked": locked})
}

func (h *handlers) listJobs(c *gin.Context) {
	list, err := h.spool.ListJobs(c.Request.Context(), c.Param("queue"))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list})
}

func (h *handlers) getJob(c *gin.Context) {
	j, err := h.spool.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (h *handlers) getJobFile(c *gin.Context) {
	rc, f, err := h.spool.OpenFile(c.Request.Context(), c.Param("id"), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer func() { _ = rc.Close() }()

	c.DataFromReader(http.StatusOK, f.Size, "application/octet-stream", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", f.Name),
	})
}

func (h *handlers) deleteJob(c *gin.Context) {
	if err := h.spool.RemoveJob(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondError maps spool and store errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, spool.ErrUnknownQueue),
		errors.Is(err, spool.ErrFileNotFound),
		errors.Is(err, jobs.ErrJobNotFound),
		errors.Is(err, content.ErrContentNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		logger.Error("API %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
