package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// captureSink records delivered events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Deliver(_ context.Context, ev *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSink) Close(context.Context) error { return nil }

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func testEvent(id string) *Event {
	return &Event{
		IncidentID: id,
		Timestamp:  time.Now().UTC(),
		AttackType: "DoS Attack",
		Severity:   "HIGH",
		Confidence: 85.0,
		Source:     "198.51.100.7",
	}
}

func TestEmitterDeliversToSinks(t *testing.T) {
	sink := &captureSink{}
	em := NewEmitter(EmitterConfig{QueueSize: 8, Workers: 2}, []Sink{sink})

	em.Emit(context.Background(), testEvent("i1"))
	em.Emit(context.Background(), testEvent("i2"))
	em.Close(context.Background())

	if got := sink.count(); got != 2 {
		t.Fatalf("delivered %d events, want 2", got)
	}
	m := em.MetricsSnapshot()
	if m.Enqueued() != 2 {
		t.Fatalf("enqueued = %d, want 2", m.Enqueued())
	}
	if m.SinkSuccess("capture") != 2 {
		t.Fatalf("sink success = %d, want 2", m.SinkSuccess("capture"))
	}
}

func TestEmitterCountsFailures(t *testing.T) {
	sink := &captureSink{err: errors.New("sink down")}
	em := NewEmitter(EmitterConfig{QueueSize: 8, Workers: 1}, []Sink{sink})

	em.Emit(context.Background(), testEvent("i1"))
	em.Close(context.Background())

	m := em.MetricsSnapshot()
	if m.SinkFailure("capture") != 1 {
		t.Fatalf("sink failure = %d, want 1", m.SinkFailure("capture"))
	}
}

func TestEmitterDropsAfterClose(t *testing.T) {
	sink := &captureSink{}
	em := NewEmitter(EmitterConfig{QueueSize: 8, Workers: 1}, []Sink{sink})
	em.Close(context.Background())

	em.Emit(context.Background(), testEvent("late"))

	m := em.MetricsSnapshot()
	if m.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", m.Dropped())
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "alerts.jsonl")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}

	if err := sink.Deliver(context.Background(), testEvent("i1")); err != nil {
		t.Fatalf("deliver 1: %v", err)
	}
	if err := sink.Deliver(context.Background(), testEvent("i2")); err != nil {
		t.Fatalf("deliver 2: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close sink: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("unmarshal jsonl line: %v", err)
	}
	if decoded.IncidentID != "i1" {
		t.Fatalf("expected incident_id i1, got %s", decoded.IncidentID)
	}
}

func TestWebhookSinkPostsEvent(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL, map[string]string{"X-Test": "1"}, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	if err := sink.Deliver(context.Background(), testEvent("i1")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got.AttackType != "DoS Attack" {
		t.Fatalf("posted attack_type = %q", got.AttackType)
	}
}

func TestWebhookSinkHandlesNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("fail"))
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL, nil, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	if err := sink.Deliver(context.Background(), testEvent("i1")); err == nil {
		t.Fatal("expected non-2xx to return error")
	} else if !strings.Contains(err.Error(), "status") {
		t.Fatalf("unexpected error: %v", err)
	}
}
