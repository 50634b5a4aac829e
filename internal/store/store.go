// Package store holds the in-memory caches that bridge the asynchronous
// response assembly and the polling delivery endpoints.
package store

import "time"

// CompletionRecord is the finished outcome of a chat stream, parked until a
// single consumer claims it by stream ID.
type CompletionRecord struct {
	StreamID        string
	Text            string
	AudioRef        string // blob filename of the main audio, empty when synthesis produced nothing
	InitialAudioRef string // blob filename of the partial-stage fragment when the reply is multipart
	Multipart       bool
	CreatedAt       time.Time
}

// AudioBlob is a synthesized audio payload addressable by filename.
type AudioBlob struct {
	Filename    string
	Data        []byte
	ContentType string
	CreatedAt   time.Time
}

// CorrelationStore parks completed responses keyed by stream ID. Each record
// is delivered at most once: Take removes it, and a taken or expired ID can
// never be published again.
type CorrelationStore interface {
	Publish(rec CompletionRecord)
	Take(streamID string) (CompletionRecord, bool)
	Len() int
}

// BlobStore caches synthesized audio with a bounded capacity, evicting the
// oldest blobs first.
type BlobStore interface {
	Put(blob AudioBlob)
	Get(filename string) (AudioBlob, bool)
	Len() int
}
