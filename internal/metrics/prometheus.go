package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "daybook"

// PrometheusRecorder exposes recorder events as Prometheus collectors.
type PrometheusRecorder struct {
	momentsCreated  *prometheus.CounterVec
	momentsUpdated  *prometheus.CounterVec
	momentsDeleted  *prometheus.CounterVec
	momentsRejected *prometheus.CounterVec
	mediaSavedBytes prometheus.Histogram
	mediaSaveFailed prometheus.Counter
	mediaCleanup    *prometheus.CounterVec
	cleanupDepth    prometheus.Gauge
	sessionCache    *prometheus.CounterVec
}

// NewPrometheus creates a recorder and registers its collectors with reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	p := &PrometheusRecorder{
		momentsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "moments_created_total", Help: "Moments created by type."},
			[]string{"type"},
		),
		momentsUpdated: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "moments_updated_total", Help: "Moments updated by type."},
			[]string{"type"},
		),
		momentsDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "moments_deleted_total", Help: "Moments deleted by type."},
			[]string{"type"},
		),
		momentsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "moments_rejected_total", Help: "Rejected moment requests by error code."},
			[]string{"reason"},
		),
		mediaSavedBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "media_saved_bytes",
			Help:      "Size of media files written to the store.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		mediaSaveFailed: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "media_save_failures_total", Help: "Media writes that failed."},
		),
		mediaCleanup: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "media_cleanup_total", Help: "Media cleanup outcomes."},
			[]string{"status"},
		),
		cleanupDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "media_cleanup_queue_depth", Help: "References waiting for cleanup."},
		),
		sessionCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "session_cache_lookups_total", Help: "Session cache lookups by result."},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		p.momentsCreated,
		p.momentsUpdated,
		p.momentsDeleted,
		p.momentsRejected,
		p.mediaSavedBytes,
		p.mediaSaveFailed,
		p.mediaCleanup,
		p.cleanupDepth,
		p.sessionCache,
	)

	return p
}

func (p *PrometheusRecorder) IncMomentCreated(kind string) {
	p.momentsCreated.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncMomentUpdated(kind string) {
	p.momentsUpdated.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncMomentDeleted(kind string) {
	p.momentsDeleted.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncMomentRejected(reason string) {
	p.momentsRejected.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) ObserveMediaSaved(bytes int64) {
	p.mediaSavedBytes.Observe(float64(bytes))
}

func (p *PrometheusRecorder) IncMediaSaveFailed() {
	p.mediaSaveFailed.Inc()
}

func (p *PrometheusRecorder) IncMediaCleanup(status string) {
	p.mediaCleanup.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) SetCleanupQueueDepth(depth int64) {
	p.cleanupDepth.Set(float64(depth))
}

func (p *PrometheusRecorder) IncSessionCacheHit() {
	p.sessionCache.WithLabelValues("hit").Inc()
}

func (p *PrometheusRecorder) IncSessionCacheMiss() {
	p.sessionCache.WithLabelValues("miss").Inc()
}
