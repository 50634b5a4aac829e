package store

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCorrelationStore_PublishAndTake(t *testing.T) {
	s := NewMemoryCorrelationStore(time.Minute)

	s.Publish(CompletionRecord{
		StreamID: "stream-1",
		Text:     "hello there",
		AudioRef: "abc.mp3",
	})

	rec, ok := s.Take("stream-1")
	if !ok {
		t.Fatal("Expected record for stream-1")
	}

	if rec.Text != "hello there" {
		t.Errorf("Expected text 'hello there', got '%s'", rec.Text)
	}

	if rec.AudioRef != "abc.mp3" {
		t.Errorf("Expected audio ref 'abc.mp3', got '%s'", rec.AudioRef)
	}
}

func TestCorrelationStore_TakeClaimsOnce(t *testing.T) {
	s := NewMemoryCorrelationStore(time.Minute)

	s.Publish(CompletionRecord{StreamID: "stream-1", Text: "once"})

	if _, ok := s.Take("stream-1"); !ok {
		t.Fatal("Expected first take to succeed")
	}

	if _, ok := s.Take("stream-1"); ok {
		t.Error("Expected second take to come away empty")
	}

	if s.Len() != 0 {
		t.Errorf("Expected empty store after take, got %d records", s.Len())
	}
}

func TestCorrelationStore_TakeUnknownStream(t *testing.T) {
	s := NewMemoryCorrelationStore(time.Minute)

	if _, ok := s.Take("never-published"); ok {
		t.Error("Expected no record for unknown stream ID")
	}
}

func TestCorrelationStore_DuplicatePublishAfterTakeIgnored(t *testing.T) {
	s := NewMemoryCorrelationStore(time.Minute)

	s.Publish(CompletionRecord{StreamID: "stream-1", Text: "first"})
	if _, ok := s.Take("stream-1"); !ok {
		t.Fatal("Expected first take to succeed")
	}

	// A late duplicate publish must not resurrect the delivered response
	s.Publish(CompletionRecord{StreamID: "stream-1", Text: "second"})

	if _, ok := s.Take("stream-1"); ok {
		t.Error("Expected claimed stream ID to stay gone after duplicate publish")
	}
}

func TestCorrelationStore_ExpiresUnclaimedRecords(t *testing.T) {
	s := NewMemoryCorrelationStore(10 * time.Millisecond)

	s.Publish(CompletionRecord{StreamID: "stream-1", Text: "never polled"})

	time.Sleep(25 * time.Millisecond)

	expired := s.PruneExpired()
	if expired != 1 {
		t.Errorf("Expected 1 expired record, got %d", expired)
	}

	if _, ok := s.Take("stream-1"); ok {
		t.Error("Expected expired record to be gone")
	}
}

func TestCorrelationStore_PublishEvictsExpired(t *testing.T) {
	s := NewMemoryCorrelationStore(10 * time.Millisecond)

	s.Publish(CompletionRecord{StreamID: "old", Text: "stale"})
	time.Sleep(25 * time.Millisecond)

	// Any write triggers opportunistic eviction of expired records
	s.Publish(CompletionRecord{StreamID: "new", Text: "fresh"})

	if s.Len() != 1 {
		t.Errorf("Expected 1 record after opportunistic eviction, got %d", s.Len())
	}

	if _, ok := s.Take("old"); ok {
		t.Error("Expected stale record to be evicted by the write")
	}

	if _, ok := s.Take("new"); !ok {
		t.Error("Expected fresh record to survive eviction")
	}
}

func TestCorrelationStore_ExpiredStreamCannotReappear(t *testing.T) {
	s := NewMemoryCorrelationStore(10 * time.Millisecond)

	s.Publish(CompletionRecord{StreamID: "stream-1", Text: "first"})
	time.Sleep(25 * time.Millisecond)
	s.PruneExpired()

	s.Publish(CompletionRecord{StreamID: "stream-1", Text: "second"})

	if _, ok := s.Take("stream-1"); ok {
		t.Error("Expected expired stream ID to reject re-publish")
	}
}

func TestCorrelationStore_ConcurrentPublishTake(t *testing.T) {
	s := NewMemoryCorrelationStore(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("stream-%d", n)
			s.Publish(CompletionRecord{StreamID: id, Text: "concurrent"})
			if _, ok := s.Take(id); !ok {
				t.Errorf("Expected record for %s", id)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Errorf("Expected empty store after concurrent takes, got %d", s.Len())
	}
}
