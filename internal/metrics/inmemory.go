package metrics

import (
	"sync"
	"sync/atomic"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	MomentsCreated    uint64
	MomentsUpdated    uint64
	MomentsDeleted    uint64
	MomentsRejected   map[string]uint64
	MediaSaved        uint64
	MediaBytesSaved   int64
	MediaSaveFailures uint64
	MediaCleanup      map[string]uint64
	CleanupQueueDepth int64
	SessionCacheHits  uint64
	SessionCacheMiss  uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	momentsCreated    uint64
	momentsUpdated    uint64
	momentsDeleted    uint64
	mediaSaved        uint64
	mediaBytesSaved   int64
	mediaSaveFailures uint64
	cleanupQueueDepth int64
	sessionCacheHits  uint64
	sessionCacheMiss  uint64

	mu       sync.Mutex
	rejected map[string]uint64
	cleanup  map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		rejected: make(map[string]uint64),
		cleanup:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	rejected := make(map[string]uint64, len(m.rejected))
	for k, v := range m.rejected {
		rejected[k] = v
	}
	cleanup := make(map[string]uint64, len(m.cleanup))
	for k, v := range m.cleanup {
		cleanup[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		MomentsCreated:    atomic.LoadUint64(&m.momentsCreated),
		MomentsUpdated:    atomic.LoadUint64(&m.momentsUpdated),
		MomentsDeleted:    atomic.LoadUint64(&m.momentsDeleted),
		MomentsRejected:   rejected,
		MediaSaved:        atomic.LoadUint64(&m.mediaSaved),
		MediaBytesSaved:   atomic.LoadInt64(&m.mediaBytesSaved),
		MediaSaveFailures: atomic.LoadUint64(&m.mediaSaveFailures),
		MediaCleanup:      cleanup,
		CleanupQueueDepth: atomic.LoadInt64(&m.cleanupQueueDepth),
		SessionCacheHits:  atomic.LoadUint64(&m.sessionCacheHits),
		SessionCacheMiss:  atomic.LoadUint64(&m.sessionCacheMiss),
	}
}

// IncMomentCreated increments the created counter.
func (m *InMemoryRecorder) IncMomentCreated(kind string) {
	atomic.AddUint64(&m.momentsCreated, 1)
}

// IncMomentUpdated increments the updated counter.
func (m *InMemoryRecorder) IncMomentUpdated(kind string) {
	atomic.AddUint64(&m.momentsUpdated, 1)
}

// IncMomentDeleted increments the deleted counter.
func (m *InMemoryRecorder) IncMomentDeleted(kind string) {
	atomic.AddUint64(&m.momentsDeleted, 1)
}

// IncMomentRejected counts a rejected request by reason.
func (m *InMemoryRecorder) IncMomentRejected(reason string) {
	m.mu.Lock()
	m.rejected[reason]++
	m.mu.Unlock()
}

// ObserveMediaSaved records a successful media write.
func (m *InMemoryRecorder) ObserveMediaSaved(bytes int64) {
	atomic.AddUint64(&m.mediaSaved, 1)
	atomic.AddInt64(&m.mediaBytesSaved, bytes)
}

// IncMediaSaveFailed increments the media write failure counter.
func (m *InMemoryRecorder) IncMediaSaveFailed() {
	atomic.AddUint64(&m.mediaSaveFailures, 1)
}

// IncMediaCleanup counts a cleanup outcome.
func (m *InMemoryRecorder) IncMediaCleanup(status string) {
	m.mu.Lock()
	m.cleanup[status]++
	m.mu.Unlock()
}

// SetCleanupQueueDepth stores the latest queue depth.
func (m *InMemoryRecorder) SetCleanupQueueDepth(depth int64) {
	atomic.StoreInt64(&m.cleanupQueueDepth, depth)
}

// IncSessionCacheHit increments the session cache hit counter.
func (m *InMemoryRecorder) IncSessionCacheHit() {
	atomic.AddUint64(&m.sessionCacheHits, 1)
}

// IncSessionCacheMiss increments the session cache miss counter.
func (m *InMemoryRecorder) IncSessionCacheMiss() {
	atomic.AddUint64(&m.sessionCacheMiss, 1)
}
