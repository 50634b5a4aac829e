package store

import (
	"sync"
	"time"

	"github.com/voiceloopai/chat-gateway/internal/observability"
)

// MemoryCorrelationStore is a mutex-guarded CorrelationStore with age-based
// eviction. Records older than the retention window are dropped unclaimed;
// eviction runs as a side effect of writes and from the janitor.
type MemoryCorrelationStore struct {
	mu        sync.RWMutex
	retention time.Duration
	records   map[string]CompletionRecord
	// claimed remembers taken or expired stream IDs so a late duplicate
	// publish cannot resurrect an already-delivered response.
	claimed map[string]time.Time
}

// NewMemoryCorrelationStore creates a correlation store that retains
// unclaimed records for the given window.
func NewMemoryCorrelationStore(retention time.Duration) *MemoryCorrelationStore {
	return &MemoryCorrelationStore{
		retention: retention,
		records:   make(map[string]CompletionRecord),
		claimed:   make(map[string]time.Time),
	}
}

// Publish parks a completed response for pickup. Publishing under a stream ID
// that was already taken or expired is a no-op.
func (s *MemoryCorrelationStore) Publish(rec CompletionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(time.Now())

	if _, gone := s.claimed[rec.StreamID]; gone {
		logger := observability.GetLogger()
		logger.Warn().
			Str("correlation_id", rec.StreamID).
			Msg("Dropping duplicate publish for already-claimed stream")
		return
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.records[rec.StreamID] = rec

	observability.RecordResponsePublished()
	observability.SetResponsesPending(len(s.records))
}

// Take claims the record for a stream ID, removing it. The second caller for
// the same ID comes away empty.
func (s *MemoryCorrelationStore) Take(streamID string) (CompletionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[streamID]
	if !ok {
		return CompletionRecord{}, false
	}

	delete(s.records, streamID)
	s.claimed[streamID] = time.Now()

	observability.RecordResponseConsumed()
	observability.SetResponsesPending(len(s.records))
	return rec, true
}

// Len returns the number of unclaimed records.
func (s *MemoryCorrelationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// PruneExpired drops records older than the retention window and returns how
// many were dropped. Suitable for a periodic janitor.
func (s *MemoryCorrelationStore) PruneExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(time.Now())
}

func (s *MemoryCorrelationStore) pruneLocked(now time.Time) int {
	cutoff := now.Add(-s.retention)

	expired := 0
	for id, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			s.claimed[id] = now
			expired++
		}
	}

	// Claim markers only need to outlive the retention window
	for id, at := range s.claimed {
		if at.Before(cutoff) {
			delete(s.claimed, id)
		}
	}

	if expired > 0 {
		observability.RecordResponsesExpired(expired)
		observability.SetResponsesPending(len(s.records))
	}
	return expired
}
