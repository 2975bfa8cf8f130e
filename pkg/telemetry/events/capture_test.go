package events

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestClient_CaptureDelivers(t *testing.T) {
	var (
		mu       sync.Mutex
		received []payload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/capture" {
			t.Errorf("path = %q, want /capture", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var p payload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("body is not JSON: %v", err)
		}
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, APIKey: "ph-key"})
	c.Capture("usage_trial_started", "actor-1", map[string]any{"job_number": "job-7"})
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("delivered events = %d, want 1", len(received))
	}
	p := received[0]
	if p.APIKey != "ph-key" {
		t.Errorf("api_key = %q", p.APIKey)
	}
	if p.Event != "usage_trial_started" || p.DistinctID != "actor-1" {
		t.Errorf("event/distinct_id = %q/%q", p.Event, p.DistinctID)
	}
	if p.Properties["job_number"] != "job-7" {
		t.Errorf("properties = %v", p.Properties)
	}
	if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC 3339: %v", p.Timestamp, err)
	}
}

func TestClient_CloseDrainsQueue(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	for i := 0; i < 10; i++ {
		c.Capture("usage_charge_confirmed", "actor-1", nil)
	}
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 10 {
		t.Fatalf("delivered events = %d, want 10", count)
	}
}

func TestClient_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, BufferSize: 2})

	// One event occupies the worker, two fill the buffer, the rest drop.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			c.Capture("usage_charge_confirmed", "actor-1", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Capture blocked on a full buffer")
	}

	close(release)
	c.Close()

	if c.Dropped() == 0 {
		t.Fatal("overflow events should be counted as dropped")
	}
}

func TestClient_NilIsNoOp(t *testing.T) {
	var c *Client
	c.Capture("usage_trial_started", "actor-1", nil)
	if c.Dropped() != 0 {
		t.Fatal("nil client should report zero drops")
	}
	c.Close()
}

func TestClient_DeliveryFailureDoesNotStopWorker(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		n := count
		mu.Unlock()
		if n == 1 {
			http.Error(w, "rejected", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	c.Capture("usage_charge_refused", "actor-1", nil)
	c.Capture("usage_charge_confirmed", "actor-1", nil)
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Fatalf("delivered events = %d, want 2", count)
	}
}
