package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"comanda-system/internal/database/models"
	"comanda-system/internal/gateway/middleware"
	"comanda-system/internal/services/printing"
)

type fakeQueue struct {
	jobs    []printing.ClaimedJob
	pollErr error
	polled  struct {
		limit    int
		workerID string
	}
	completed []int64
	failed    map[int64]string
}

func (f *fakeQueue) Poll(ctx context.Context, limit int, workerID string) ([]printing.ClaimedJob, error) {
	f.polled.limit = limit
	f.polled.workerID = workerID
	return f.jobs, f.pollErr
}

func (f *fakeQueue) MarkCompleted(ctx context.Context, jobID int64) error {
	f.completed = append(f.completed, jobID)
	return nil
}

func (f *fakeQueue) MarkFailed(ctx context.Context, jobID int64, message string) error {
	if f.failed == nil {
		f.failed = make(map[int64]string)
	}
	f.failed[jobID] = message
	return nil
}

func (f *fakeQueue) Retry(ctx context.Context, jobID int64) error  { return nil }
func (f *fakeQueue) Cancel(ctx context.Context, jobID int64) error { return nil }

func (f *fakeQueue) List(ctx context.Context, status string, limit int) ([]models.PrintJob, error) {
	return nil, nil
}

func workerRouter(queue PrintQueue, token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewPrintJobHTTPHandler(queue, 10)
	worker := r.Group("/print-jobs")
	worker.Use(middleware.WorkerAuth(token))
	{
		worker.GET("/poll", handler.Poll)
		worker.POST("/:id/mark_completed", handler.MarkCompleted)
		worker.POST("/:id/mark_failed", handler.MarkFailed)
	}
	return r
}

func TestPollRequiresToken(t *testing.T) {
	r := workerRouter(&fakeQueue{}, "secret")

	for name, header := range map[string]string{
		"missing": "",
		"wrong":   "Bearer nope",
		"scheme":  "Basic secret",
	} {
		req := httptest.NewRequest(http.MethodGet, "/print-jobs/poll", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s token: expected 401, got %d", name, w.Code)
		}
	}
}

func TestPollResponseShape(t *testing.T) {
	queue := &fakeQueue{jobs: []printing.ClaimedJob{{
		ID:          3,
		Content:     "ticket",
		PrinterPort: "/dev/usb/lp0",
		PrinterName: "kitchen",
		OrderItemId: 11,
		Attempts:    1,
		MaxAttempts: 3,
	}}}
	r := workerRouter(queue, "secret")

	req := httptest.NewRequest(http.MethodGet, "/print-jobs/poll?limit=5", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Worker-ID", "kitchen-pi")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if queue.polled.limit != 5 {
		t.Errorf("expected limit 5, got %d", queue.polled.limit)
	}
	if queue.polled.workerID != "kitchen-pi" {
		t.Errorf("expected worker id from header, got %q", queue.polled.workerID)
	}

	var parsed struct {
		Jobs      []map[string]interface{} `json:"jobs"`
		Count     int                      `json:"count"`
		Timestamp string                   `json:"timestamp"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if parsed.Count != 1 || len(parsed.Jobs) != 1 {
		t.Fatalf("expected one job, got count=%d jobs=%d", parsed.Count, len(parsed.Jobs))
	}
	if parsed.Timestamp == "" {
		t.Error("timestamp missing")
	}

	job := parsed.Jobs[0]
	for _, key := range []string{
		"id", "content", "printer_port", "printer_name",
		"order_item_id", "attempts", "max_attempts",
	} {
		if _, ok := job[key]; !ok {
			t.Errorf("job missing field %q", key)
		}
	}
}

func TestPollEmptyQueueReturnsArray(t *testing.T) {
	r := workerRouter(&fakeQueue{}, "secret")

	req := httptest.NewRequest(http.MethodGet, "/print-jobs/poll", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"jobs":[]`) {
		t.Errorf("empty queue must serialize jobs as [], got %s", body)
	}
	if !strings.Contains(body, `"count":0`) {
		t.Errorf("expected count 0, got %s", body)
	}
}

func TestPollRejectsBadLimit(t *testing.T) {
	r := workerRouter(&fakeQueue{}, "secret")

	for _, limit := range []string{"0", "-1", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/print-jobs/poll?limit="+limit, nil)
		req.Header.Set("Authorization", "Bearer secret")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit %q: expected 400, got %d", limit, w.Code)
		}
	}
}

func TestMarkCompleted(t *testing.T) {
	queue := &fakeQueue{}
	r := workerRouter(queue, "secret")

	req := httptest.NewRequest(http.MethodPost, "/print-jobs/7/mark_completed", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if len(queue.completed) != 1 || queue.completed[0] != 7 {
		t.Errorf("expected job 7 completed, got %v", queue.completed)
	}
}

func TestMarkFailedRequiresMessage(t *testing.T) {
	queue := &fakeQueue{}
	r := workerRouter(queue, "secret")

	req := httptest.NewRequest(http.MethodPost, "/print-jobs/7/mark_failed",
		strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without error_message, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/print-jobs/7/mark_failed",
		strings.NewReader(`{"error_message":"out of paper"}`))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if queue.failed[7] != "out of paper" {
		t.Errorf("expected failure message recorded, got %v", queue.failed)
	}
}

func TestConflictErrorsMapTo409(t *testing.T) {
	queue := &fakeQueue{pollErr: printing.ErrJobNotInProgress}
	r := workerRouter(queue, "secret")

	req := httptest.NewRequest(http.MethodGet, "/print-jobs/poll", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}
