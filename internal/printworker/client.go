package printworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// Client is the reference pull worker: it polls the gateway for claimed
// print jobs, writes each ticket to the printer device and reports the
// outcome back. A job is only acknowledged after the device write succeeds,
// so a crash between write and ack means a reprint, never a lost ticket.
type Client struct {
	cfg    Config
	http   *http.Client
	device DeviceWriter
	log    *zap.Logger
}

type Config struct {
	BaseURL      string
	Token        string
	WorkerID     string
	PollInterval time.Duration
	Limit        int
}

// DeviceWriter delivers rendered ticket content to a physical printer port.
type DeviceWriter interface {
	Write(port string, content string) error
}

// FileDevice appends tickets to a file per port. It stands in for a real
// ESC/POS transport during development and in tests.
type FileDevice struct {
	Dir string
}

func (d *FileDevice) Write(port string, content string) error {
	if port == "" {
		port = "default"
	}
	f, err := os.OpenFile(d.Dir+"/"+port+".out", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content + "\n")
	return err
}

type claimedJob struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	PrinterPort string `json:"printer_port"`
	PrinterName string `json:"printer_name"`
	OrderItemID int64  `json:"order_item_id"`
	Attempts    int32  `json:"attempts"`
	MaxAttempts int32  `json:"max_attempts"`
}

type pollResponse struct {
	Jobs  []claimedJob `json:"jobs"`
	Count int          `json:"count"`
}

func NewClient(cfg Config, device DeviceWriter, log *zap.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		device: device,
		log:    log,
	}
}

// Run polls until ctx is cancelled. Poll failures back off exponentially so
// a gateway restart does not get hammered.
func (c *Client) Run(ctx context.Context) error {
	failures := 0
	for {
		jobs, err := c.poll(ctx)
		if err != nil {
			failures++
			c.log.Warn("poll failed", zap.Error(err), zap.Int("failures", failures))
		} else {
			failures = 0
			for _, job := range jobs {
				c.process(ctx, job)
			}
		}

		wait := c.cfg.PollInterval
		if failures > 0 {
			wait = Backoff(c.cfg.PollInterval, failures, 30*time.Second)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Backoff doubles the base interval per consecutive failure, capped at max.
func Backoff(base time.Duration, failures int, max time.Duration) time.Duration {
	wait := base
	for i := 1; i < failures; i++ {
		wait *= 2
		if wait >= max {
			return max
		}
	}
	if wait > max {
		return max
	}
	return wait
}

func (c *Client) poll(ctx context.Context) ([]claimedJob, error) {
	url := fmt.Sprintf("%s/print-jobs/poll?limit=%d", c.cfg.BaseURL, c.cfg.Limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("poll: unexpected status %d: %s", resp.StatusCode, body)
	}

	var parsed pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("poll: decode response: %w", err)
	}
	return parsed.Jobs, nil
}

func (c *Client) process(ctx context.Context, job claimedJob) {
	log := c.log.With(zap.Int64("job_id", job.ID), zap.String("printer", job.PrinterName))

	if err := c.device.Write(job.PrinterPort, job.Content); err != nil {
		log.Error("device write failed", zap.Error(err))
		if rerr := c.reportFailed(ctx, job.ID, err.Error()); rerr != nil {
			log.Error("mark_failed report failed", zap.Error(rerr))
		}
		return
	}

	if err := c.reportCompleted(ctx, job.ID); err != nil {
		// The ticket is printed but the ack was lost; the job stays
		// in_progress until an operator retries or cancels it.
		log.Error("mark_completed report failed", zap.Error(err))
		return
	}
	log.Info("ticket printed")
}

func (c *Client) reportCompleted(ctx context.Context, jobID int64) error {
	url := fmt.Sprintf("%s/print-jobs/%d/mark_completed", c.cfg.BaseURL, jobID)
	return c.post(ctx, url, nil)
}

func (c *Client) reportFailed(ctx context.Context, jobID int64, message string) error {
	url := fmt.Sprintf("%s/print-jobs/%d/mark_failed", c.cfg.BaseURL, jobID)
	payload, err := json.Marshal(map[string]string{"error_message": message})
	if err != nil {
		return err
	}
	return c.post(ctx, url, payload)
}

func (c *Client) post(ctx context.Context, url string, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, raw)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if c.cfg.WorkerID != "" {
		req.Header.Set("X-Worker-ID", c.cfg.WorkerID)
	}
}
