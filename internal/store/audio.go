package store

import (
	"sync"
	"time"

	"github.com/voiceloopai/chat-gateway/internal/observability"
)

// MemoryBlobStore is a mutex-guarded BlobStore that keeps the most recently
// created blobs up to a fixed capacity. Insertion order is creation order;
// eviction always removes the oldest blob first.
type MemoryBlobStore struct {
	mu       sync.RWMutex
	capacity int
	blobs    map[string]AudioBlob
	order    []string // filenames, oldest first
}

// NewMemoryBlobStore creates a blob store holding at most capacity blobs.
func NewMemoryBlobStore(capacity int) *MemoryBlobStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryBlobStore{
		capacity: capacity,
		blobs:    make(map[string]AudioBlob),
		order:    make([]string, 0, capacity),
	}
}

// Put stores a blob and evicts the oldest entries beyond capacity.
func (s *MemoryBlobStore) Put(blob AudioBlob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if blob.CreatedAt.IsZero() {
		blob.CreatedAt = time.Now()
	}

	if _, exists := s.blobs[blob.Filename]; !exists {
		s.order = append(s.order, blob.Filename)
	}
	s.blobs[blob.Filename] = blob

	evicted := 0
	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.blobs, oldest)
		evicted++
	}

	if evicted > 0 {
		observability.RecordAudioBlobsEvicted(evicted)
	}
	observability.SetAudioBlobsCached(len(s.blobs))
}

// Get returns the blob for a filename if it is still cached.
func (s *MemoryBlobStore) Get(filename string) (AudioBlob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[filename]
	return blob, ok
}

// Len returns the number of cached blobs.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
