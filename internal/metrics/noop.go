package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncMomentCreated is a no-op.
func (n *NoopRecorder) IncMomentCreated(kind string) {}

// IncMomentUpdated is a no-op.
func (n *NoopRecorder) IncMomentUpdated(kind string) {}

// IncMomentDeleted is a no-op.
func (n *NoopRecorder) IncMomentDeleted(kind string) {}

// IncMomentRejected is a no-op.
func (n *NoopRecorder) IncMomentRejected(reason string) {}

// ObserveMediaSaved is a no-op.
func (n *NoopRecorder) ObserveMediaSaved(bytes int64) {}

// IncMediaSaveFailed is a no-op.
func (n *NoopRecorder) IncMediaSaveFailed() {}

// IncMediaCleanup is a no-op.
func (n *NoopRecorder) IncMediaCleanup(status string) {}

// SetCleanupQueueDepth is a no-op.
func (n *NoopRecorder) SetCleanupQueueDepth(depth int64) {}

// IncSessionCacheHit is a no-op.
func (n *NoopRecorder) IncSessionCacheHit() {}

// IncSessionCacheMiss is a no-op.
func (n *NoopRecorder) IncSessionCacheMiss() {}
