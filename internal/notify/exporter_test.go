package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []map[string]interface{}
	auth     []string
	status   int
}

func (w *webhookRecorder) handler(rw http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	w.mu.Lock()
	w.payloads = append(w.payloads, payload)
	w.auth = append(w.auth, r.Header.Get("Authorization"))
	status := w.status
	w.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	rw.WriteHeader(status)
}

func (w *webhookRecorder) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.payloads)
}

func TestExporter_DisabledDropsEvents(t *testing.T) {
	e := NewExporter(Config{})
	defer e.Stop()

	e.Add(Event{ID: "1"})
	assert.False(t, e.Enabled())
	assert.Equal(t, 0, e.Status()["pending"])
}

func TestExporter_FlushPostsBatch(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	e := NewExporter(Config{WebhookURL: srv.URL, WebhookAPIKey: "secret", BatchSize: 10, Interval: time.Hour})
	defer e.Stop()

	e.Add(Event{ID: "a", Kind: "deposit", State: "confirmed", TxHash: "0x01"})
	e.Add(Event{ID: "b", Kind: "withdraw", State: "failed", ErrorKind: "LedgerWriteError"})
	assert.Equal(t, 2, e.Status()["pending"])

	e.Flush(context.Background())

	require.Equal(t, 1, rec.count())
	assert.Equal(t, float64(2), rec.payloads[0]["count"])
	events := rec.payloads[0]["events"].([]interface{})
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].(map[string]interface{})["id"])
	assert.Equal(t, "LedgerWriteError", events[1].(map[string]interface{})["errorKind"])
	assert.Equal(t, "Bearer secret", rec.auth[0])

	status := e.Status()
	assert.Equal(t, 0, status["pending"])
	assert.Equal(t, 2, status["exported"])
	assert.Contains(t, status, "last_export")
}

func TestExporter_FullBatchSendsImmediately(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	e := NewExporter(Config{WebhookURL: srv.URL, BatchSize: 2, Interval: time.Hour})
	defer e.Stop()

	e.Add(Event{ID: "a"})
	e.Add(Event{ID: "b"})

	assert.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestExporter_StopFlushesRemainder(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	e := NewExporter(Config{WebhookURL: srv.URL, BatchSize: 50, Interval: time.Hour})
	e.Add(Event{ID: "a"})
	e.Stop()

	assert.Equal(t, 1, rec.count())
}

func TestExporter_ErrorStatusCountsFailure(t *testing.T) {
	rec := &webhookRecorder{status: http.StatusBadRequest}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	e := NewExporter(Config{WebhookURL: srv.URL, BatchSize: 50, Interval: time.Hour})
	defer e.Stop()

	e.Add(Event{ID: "a"})
	e.Flush(context.Background())

	status := e.Status()
	assert.Equal(t, 1, status["failed"])
	assert.Equal(t, 0, status["exported"])
}
