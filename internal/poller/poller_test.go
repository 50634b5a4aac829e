package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeGateway scripts the server side of the delivery protocol.
type fakeGateway struct {
	mu sync.Mutex
	// completeAfter maps streamID to how many polls return complete:false
	// before the completed response appears. -1 means never complete.
	completeAfter map[string]int
	polls         map[string]int
	multipart     map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		completeAfter: make(map[string]int),
		polls:         make(map[string]int),
		multipart:     make(map[string]bool),
	}
}

func (f *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Message == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "message is required"})
			return
		}
		audio := "/audio/partial.mp3"
		json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"text":      "partial for " + req.Message,
			"isPartial": true,
			"streamId":  "stream-" + req.Message,
			"audioUrl":  audio,
		})
	})
	mux.HandleFunc("/response/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/response/")

		f.mu.Lock()
		f.polls[id]++
		after, known := f.completeAfter[id]
		count := f.polls[id]
		multipart := f.multipart[id]
		f.mu.Unlock()

		if !known || after < 0 || count <= after {
			json.NewEncoder(w).Encode(map[string]any{"success": true, "complete": false})
			return
		}

		resp := map[string]any{
			"success":  true,
			"complete": true,
			"text":     "final for " + id,
			"audioUrl": "/audio/final.mp3",
		}
		if multipart {
			resp["initialAudioUrl"] = "/audio/partial.mp3"
			resp["hasMultipartAudio"] = true
		}
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func (f *fakeGateway) pollCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[id]
}

func TestSubmit_ReturnsPartialAndRegisters(t *testing.T) {
	gw := newFakeGateway()
	srv := httptest.NewServer(gw.handler())
	defer srv.Close()

	gw.completeAfter["stream-hi"] = 2

	c := NewClient(srv.URL, 5*time.Millisecond, 30)
	delivered := make(chan Delivery, 1)
	c.OnDelivered = func(d Delivery) { delivered <- d }

	reply, err := c.Submit(context.Background(), "hi", "", "female", "en-US")
	if err != nil {
		t.Fatalf("Expected reply, got error %v", err)
	}
	if !reply.Partial {
		t.Error("Expected a partial reply")
	}
	if reply.Text != "partial for hi" {
		t.Errorf("Expected partial text, got '%s'", reply.Text)
	}
	if reply.AudioURL != "/audio/partial.mp3" {
		t.Errorf("Expected partial audio URL, got '%s'", reply.AudioURL)
	}
	if c.PendingCount() != 1 {
		t.Errorf("Expected 1 pending stream, got %d", c.PendingCount())
	}
	if got := c.StreamState("stream-hi"); got != StatePolling {
		t.Errorf("Expected stream-hi to be polling, got %v", got)
	}

	select {
	case d := <-delivered:
		if d.StreamID != "stream-hi" {
			t.Errorf("Expected stream-hi, got %s", d.StreamID)
		}
		if d.Text != "final for stream-hi" {
			t.Errorf("Expected final text, got '%s'", d.Text)
		}
		if len(d.AudioURLs) != 1 || d.AudioURLs[0] != "/audio/final.mp3" {
			t.Errorf("Expected single final audio URL, got %v", d.AudioURLs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for delivery")
	}

	if c.PendingCount() != 0 {
		t.Errorf("Expected pending set to empty after delivery, got %d", c.PendingCount())
	}
	if got := c.StreamState("stream-hi"); got != StateIdle {
		t.Errorf("Expected delivered stream to read idle, got %v", got)
	}
}

func TestDelivery_MultipartPlaybackOrder(t *testing.T) {
	gw := newFakeGateway()
	srv := httptest.NewServer(gw.handler())
	defer srv.Close()

	gw.completeAfter["stream-hi"] = 1
	gw.multipart["stream-hi"] = true

	c := NewClient(srv.URL, 5*time.Millisecond, 30)
	delivered := make(chan Delivery, 1)
	c.OnDelivered = func(d Delivery) { delivered <- d }

	if _, err := c.Submit(context.Background(), "hi", "", "", ""); err != nil {
		t.Fatalf("Expected reply, got error %v", err)
	}

	select {
	case d := <-delivered:
		want := []string{"/audio/partial.mp3", "/audio/final.mp3"}
		if len(d.AudioURLs) != 2 || d.AudioURLs[0] != want[0] || d.AudioURLs[1] != want[1] {
			t.Errorf("Expected playback order %v, got %v", want, d.AudioURLs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for delivery")
	}
}

func TestPolling_AbandonsAfterBudget(t *testing.T) {
	gw := newFakeGateway()
	srv := httptest.NewServer(gw.handler())
	defer srv.Close()

	gw.completeAfter["stream-hi"] = -1 // never completes

	c := NewClient(srv.URL, 2*time.Millisecond, 5)
	abandoned := make(chan string, 1)
	c.OnAbandoned = func(id string) { abandoned <- id }
	c.OnDelivered = func(d Delivery) { t.Errorf("Unexpected delivery for %s", d.StreamID) }

	if _, err := c.Submit(context.Background(), "hi", "", "", ""); err != nil {
		t.Fatalf("Expected reply, got error %v", err)
	}

	select {
	case id := <-abandoned:
		if id != "stream-hi" {
			t.Errorf("Expected stream-hi abandoned, got %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for abandonment")
	}

	if c.PendingCount() != 0 {
		t.Errorf("Expected pending set to empty after abandonment, got %d", c.PendingCount())
	}

	polls := gw.pollCount("stream-hi")
	if polls > 5 {
		t.Errorf("Expected at most 5 polls, got %d", polls)
	}
}

func TestLoop_StopsWhenIdleAndRestarts(t *testing.T) {
	gw := newFakeGateway()
	srv := httptest.NewServer(gw.handler())
	defer srv.Close()

	gw.completeAfter["stream-a"] = 1
	gw.completeAfter["stream-b"] = 1

	c := NewClient(srv.URL, 2*time.Millisecond, 30)
	delivered := make(chan Delivery, 2)
	c.OnDelivered = func(d Delivery) { delivered <- d }

	if _, err := c.Submit(context.Background(), "a", "", "", ""); err != nil {
		t.Fatalf("Expected reply, got error %v", err)
	}
	<-delivered

	// With nothing pending the ticker exits; no further polls happen.
	quiescent := gw.pollCount("stream-a")
	time.Sleep(20 * time.Millisecond)
	if got := gw.pollCount("stream-a"); got != quiescent {
		t.Errorf("Expected no polls while idle, got %d extra", got-quiescent)
	}

	// A new submission restarts the loop.
	if _, err := c.Submit(context.Background(), "b", "", "", ""); err != nil {
		t.Fatalf("Expected reply, got error %v", err)
	}
	select {
	case d := <-delivered:
		if d.StreamID != "stream-b" {
			t.Errorf("Expected stream-b delivered, got %s", d.StreamID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for second delivery")
	}
}

func TestSubmit_ServerRejection(t *testing.T) {
	gw := newFakeGateway()
	srv := httptest.NewServer(gw.handler())
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Millisecond, 30)
	if _, err := c.Submit(context.Background(), "", "", "", ""); err == nil {
		t.Fatal("Expected an error for a rejected submission")
	}
	if c.PendingCount() != 0 {
		t.Errorf("Expected no pending streams after rejection, got %d", c.PendingCount())
	}
}
