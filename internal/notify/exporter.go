// Package notify batches transaction outcome events and delivers them to a webhook
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Event describes the end of one state-changing request
type Event struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Address     string    `json:"address"`
	State       string    `json:"state"`
	TxHash      string    `json:"transactionHash,omitempty"`
	BlockNumber uint64    `json:"blockNumber,omitempty"`
	GasUsed     uint64    `json:"gasUsed,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	ErrorKind   string    `json:"errorKind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Config holds the webhook destination and batching settings
type Config struct {
	WebhookURL    string
	WebhookAPIKey string
	BatchSize     int
	Interval      time.Duration
	RetryMax      int
}

// Exporter buffers events and posts them in batches. The zero-URL exporter drops events.
type Exporter struct {
	config     Config
	httpClient *retryablehttp.Client

	mu         sync.Mutex
	batch      []Event
	lastExport time.Time
	exported   int
	failed     int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExporter creates an exporter and starts its periodic flush. Call Stop to flush the
// remaining events.
func NewExporter(cfg Config) *Exporter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	e := &Exporter{
		config:     cfg,
		httpClient: client,
		batch:      make([]Event, 0, cfg.BatchSize),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	if e.Enabled() {
		e.wg.Add(1)
		go e.periodicExport()
		logrus.WithFields(logrus.Fields{
			"batch_size": cfg.BatchSize,
			"interval":   cfg.Interval.String(),
		}).Info("Transaction webhook exporter initialized")
	}
	return e
}

// Enabled reports whether a webhook is configured
func (e *Exporter) Enabled() bool {
	return e.config.WebhookURL != ""
}

// Add queues an event. A full batch is sent right away.
func (e *Exporter) Add(ev Event) {
	if !e.Enabled() {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	e.mu.Lock()
	e.batch = append(e.batch, ev)
	full := len(e.batch) >= e.config.BatchSize
	e.mu.Unlock()

	if full {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.Flush(e.ctx)
		}()
	}
}

// Flush sends everything buffered so far
func (e *Exporter) Flush(ctx context.Context) {
	e.mu.Lock()
	if len(e.batch) == 0 {
		e.mu.Unlock()
		return
	}
	events := e.batch
	e.batch = make([]Event, 0, e.config.BatchSize)
	e.mu.Unlock()

	err := e.post(ctx, events)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.failed += len(events)
		logrus.WithFields(logrus.Fields{"count": len(events), "error": err}).Error("Failed to export transaction events")
		return
	}
	e.exported += len(events)
	e.lastExport = time.Now()
	logrus.WithField("count", len(events)).Debug("Exported transaction events")
}

// Stop ends the periodic flush and sends what is left
func (e *Exporter) Stop() {
	e.cancel()
	e.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.Flush(ctx)
}

// Status summarizes the exporter for the status endpoint
func (e *Exporter) Status() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := map[string]interface{}{
		"enabled":         e.Enabled(),
		"batch_size":      e.config.BatchSize,
		"export_interval": e.config.Interval.String(),
		"pending":         len(e.batch),
		"exported":        e.exported,
		"failed":          e.failed,
	}
	if !e.lastExport.IsZero() {
		status["last_export"] = e.lastExport.UTC().Format(time.RFC3339)
	}
	return status
}

func (e *Exporter) periodicExport() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Flush(e.ctx)
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Exporter) post(ctx context.Context, events []Event) error {
	payload := struct {
		Events     []Event `json:"events"`
		ExportTime string  `json:"export_time"`
		Count      int     `json:"count"`
	}{
		Events:     events,
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		Count:      len(events),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.WebhookAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}
