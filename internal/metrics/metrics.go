// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory for tests.
type Recorder interface {
	// Moment lifecycle metrics; kind is the moment type (TEXT, IMAGE, ...).
	IncMomentCreated(kind string)
	IncMomentUpdated(kind string)
	IncMomentDeleted(kind string)
	IncMomentRejected(reason string) // reason: the error code returned to the caller

	// Media store metrics
	ObserveMediaSaved(bytes int64)
	IncMediaSaveFailed()
	IncMediaCleanup(status string) // status: "deleted", "queued", "retried", "dropped"
	SetCleanupQueueDepth(depth int64)

	// Session lookup metrics
	IncSessionCacheHit()
	IncSessionCacheMiss()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

// Cleanup statuses reported through IncMediaCleanup.
const (
	CleanupDeleted = "deleted"
	CleanupQueued  = "queued"
	CleanupRetried = "retried"
	CleanupDropped = "dropped"
)
