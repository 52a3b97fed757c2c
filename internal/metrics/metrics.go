// Package metrics exposes pipeline counters in Prometheus format.
//
// All methods are safe on a nil *Pipeline so callers can leave metrics
// disabled without guarding every call.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "board_tracker"

// Job outcome labels.
const (
	OutcomeFound       = "found"
	OutcomeNoCandidate = "no_candidate"
	OutcomeError       = "error"
)

// Pipeline holds the collectors for one pipeline instance.
type Pipeline struct {
	registry *prometheus.Registry

	jobs         *prometheus.CounterVec
	stale        prometheus.Counter
	dropped      prometheus.Counter
	boards       prometheus.Counter
	activeTracks prometheus.Gauge
	jobDuration  *prometheus.HistogramVec
}

// NewPipeline creates the collectors on a private registry.
func NewPipeline() *Pipeline {
	m := &Pipeline{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Scan and track jobs completed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_completions_total",
			Help:      "Completions discarded because their generation was superseded.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because the event buffer was full.",
		}),
		boards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boards_acquired_total",
			Help:      "Board acquisitions.",
		}),
		activeTracks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tracks",
			Help:      "Regions with a track entry.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of external scan, track and locate calls.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.jobs, m.stale, m.dropped, m.boards, m.activeTracks, m.jobDuration)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Pipeline) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveJob counts one completed job.
func (m *Pipeline) ObserveJob(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind, outcome).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// StaleCompletion counts one discarded completion.
func (m *Pipeline) StaleCompletion() {
	if m == nil {
		return
	}
	m.stale.Inc()
}

// FrameDropped counts one frame rejected by a full event buffer.
func (m *Pipeline) FrameDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// BoardAcquired counts one board acquisition.
func (m *Pipeline) BoardAcquired() {
	if m == nil {
		return
	}
	m.boards.Inc()
}

// SetActiveTracks records the current track table size.
func (m *Pipeline) SetActiveTracks(n int) {
	if m == nil {
		return
	}
	m.activeTracks.Set(float64(n))
}

// Handler returns a gin engine serving reg at /metrics and a liveness
// probe at /healthz.
func Handler(reg *prometheus.Registry) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return r
}

// Serve exposes Handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
