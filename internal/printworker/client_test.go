package printworker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBackoff(t *testing.T) {
	base := 2 * time.Second
	max := 30 * time.Second

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{20, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := Backoff(base, tc.failures, max); got != tc.want {
			t.Errorf("Backoff(%d failures) = %s, want %s", tc.failures, got, tc.want)
		}
	}
}

func TestFileDeviceWrite(t *testing.T) {
	dir := t.TempDir()
	device := &FileDevice{Dir: dir}

	if err := device.Write("lp0", "ticket one"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := device.Write("lp0", "ticket two"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(dir + "/lp0.out")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "ticket one") || !strings.Contains(content, "ticket two") {
		t.Errorf("spool file missing tickets: %q", content)
	}
}

func TestPollSendsAuthAndWorkerID(t *testing.T) {
	var gotAuth, gotWorker string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotWorker = r.Header.Get("X-Worker-ID")
		json.NewEncoder(w).Encode(pollResponse{Jobs: []claimedJob{}, Count: 0})
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:  server.URL,
		Token:    "secret",
		WorkerID: "kitchen-pi",
	}, &FileDevice{Dir: t.TempDir()}, zap.NewNop())

	jobs, err := client.poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotWorker != "kitchen-pi" {
		t.Errorf("expected worker id header, got %q", gotWorker)
	}
}

func TestPollErrorOnUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Token: "wrong"},
		&FileDevice{Dir: t.TempDir()}, zap.NewNop())

	if _, err := client.poll(context.Background()); err == nil {
		t.Error("expected error on 401")
	}
}

func TestProcessAcksOnlyAfterDeviceWrite(t *testing.T) {
	var completed, failed []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/mark_completed"):
			completed = append(completed, r.URL.Path)
		case strings.HasSuffix(r.URL.Path, "/mark_failed"):
			failed = append(failed, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dir := t.TempDir()
	client := NewClient(Config{BaseURL: server.URL, Token: "secret"},
		&FileDevice{Dir: dir}, zap.NewNop())

	client.process(context.Background(), claimedJob{
		ID:          5,
		Content:     "ticket",
		PrinterPort: "lp0",
	})

	if len(completed) != 1 || !strings.Contains(completed[0], "/print-jobs/5/") {
		t.Errorf("expected completion report for job 5, got %v", completed)
	}
	if len(failed) != 0 {
		t.Errorf("unexpected failure reports: %v", failed)
	}
	if _, err := os.Stat(dir + "/lp0.out"); err != nil {
		t.Errorf("ticket was not written to the device: %v", err)
	}
}

type brokenDevice struct{}

func (brokenDevice) Write(port, content string) error {
	return os.ErrPermission
}

func TestProcessReportsDeviceFailure(t *testing.T) {
	var failedBody string
	var completed int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/mark_completed"):
			completed++
		case strings.HasSuffix(r.URL.Path, "/mark_failed"):
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			failedBody = body["error_message"]
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Token: "secret"},
		brokenDevice{}, zap.NewNop())

	client.process(context.Background(), claimedJob{ID: 9, Content: "ticket"})

	if completed != 0 {
		t.Error("a failed device write must never be acknowledged as completed")
	}
	if failedBody == "" {
		t.Error("device error must be reported through mark_failed")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pollResponse{Jobs: []claimedJob{}})
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:      server.URL,
		Token:        "secret",
		PollInterval: 10 * time.Millisecond,
	}, &FileDevice{Dir: t.TempDir()}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
