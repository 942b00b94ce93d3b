package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"comanda-system/internal/database/models"
	"comanda-system/internal/services/printing"
)

type PrintQueue interface {
	Poll(ctx context.Context, limit int, workerID string) ([]printing.ClaimedJob, error)
	MarkCompleted(ctx context.Context, jobID int64) error
	MarkFailed(ctx context.Context, jobID int64, message string) error
	Retry(ctx context.Context, jobID int64) error
	Cancel(ctx context.Context, jobID int64) error
	List(ctx context.Context, status string, limit int) ([]models.PrintJob, error)
}

type PrintJobHTTPHandler struct {
	queue        PrintQueue
	defaultLimit int
}

func NewPrintJobHTTPHandler(queue PrintQueue, defaultLimit int) *PrintJobHTTPHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &PrintJobHTTPHandler{queue: queue, defaultLimit: defaultLimit}
}

// PollResponse is the worker protocol response body. Its shape is a wire
// contract shared with deployed workers and must stay bit-compatible.
type PollResponse struct {
	Jobs      []printing.ClaimedJob `json:"jobs"`
	Count     int                   `json:"count"`
	Timestamp string                `json:"timestamp"`
}

type MarkFailedRequest struct {
	ErrorMessage string `json:"error_message" binding:"required"`
}

// Poll claims up to limit deliverable jobs for the calling worker.
func (h *PrintJobHTTPHandler) Poll(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid limit"))
			return
		}
		if n > 50 {
			n = 50
		}
		limit = n
	}

	workerID := c.GetHeader("X-Worker-ID")
	if workerID == "" {
		workerID = c.ClientIP()
	}

	jobs, err := h.queue.Poll(c.Request.Context(), limit, workerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []printing.ClaimedJob{}
	}

	c.JSON(http.StatusOK, PollResponse{
		Jobs:      jobs,
		Count:     len(jobs),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *PrintJobHTTPHandler) MarkCompleted(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid job ID"))
		return
	}

	if err := h.queue.MarkCompleted(c.Request.Context(), jobID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Job marked as completed", nil))
}

func (h *PrintJobHTTPHandler) MarkFailed(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid job ID"))
		return
	}

	var req MarkFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request: "+err.Error()))
		return
	}

	if err := h.queue.MarkFailed(c.Request.Context(), jobID, req.ErrorMessage); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Job marked as failed", nil))
}

// List is the operator view over the queue; with jobs never auto-reclaimed
// from in_progress it is how stuck claims get noticed.
func (h *PrintJobHTTPHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	jobs, err := h.queue.List(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		view := gin.H{
			"id":            job.ID,
			"order_item_id": job.OrderItemId,
			"status":        string(job.Status),
			"attempts":      job.Attempts,
			"max_attempts":  job.MaxAttempts,
			"error_message": job.ErrorMessage,
			"claimed_by":    job.ClaimedBy,
			"claimed_at":    job.ClaimedAt,
			"printed_at":    job.PrintedAt,
			"created_at":    job.CreatedAt,
		}
		if job.Printer != nil {
			view["printer_name"] = job.Printer.Name
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, successResponse("Print jobs retrieved", views))
}

func (h *PrintJobHTTPHandler) Retry(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid job ID"))
		return
	}

	if err := h.queue.Retry(c.Request.Context(), jobID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Job requeued", nil))
}

func (h *PrintJobHTTPHandler) Cancel(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid job ID"))
		return
	}

	if err := h.queue.Cancel(c.Request.Context(), jobID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Job cancelled", nil))
}
