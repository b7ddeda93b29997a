package thread

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for refinement runs.
type Metrics struct {
	runs       *prometheus.CounterVec
	iterations prometheus.Histogram
	verdicts   *prometheus.CounterVec
	duration   prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the instance registered with the global registry.
// Collectors are created once so several generators can coexist.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers the collectors with reg. Registration errors other
// than AlreadyRegisteredError panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "space2thread",
			Subsystem: "thread",
			Name:      "runs_total",
			Help:      "Refinement runs by outcome (approved, exhausted, error, config_error).",
		},
		[]string{"outcome"},
	)
	iterations := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "space2thread",
			Subsystem: "thread",
			Name:      "iterations",
			Help:      "Rounds used by completed refinement runs.",
			Buckets:   []float64{1, 2, 3},
		},
	)
	verdicts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "space2thread",
			Subsystem: "thread",
			Name:      "verdicts_total",
			Help:      "Judge verdicts by kind (approved, rejected, malformed).",
		},
		[]string{"kind"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "space2thread",
			Subsystem: "thread",
			Name:      "run_duration_seconds",
			Help:      "Wall time of refinement runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	collectors := []prometheus.Collector{runs, iterations, verdicts, duration}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch target := collector.(type) {
				case *prometheus.CounterVec:
					switch target { //nolint:exhaustive
					case runs:
						runs = already.ExistingCollector.(*prometheus.CounterVec)
					case verdicts:
						verdicts = already.ExistingCollector.(*prometheus.CounterVec)
					}
				case prometheus.Histogram:
					switch target { //nolint:exhaustive
					case iterations:
						iterations = already.ExistingCollector.(prometheus.Histogram)
					case duration:
						duration = already.ExistingCollector.(prometheus.Histogram)
					}
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		runs:       runs,
		iterations: iterations,
		verdicts:   verdicts,
		duration:   duration,
	}
}

func (m *Metrics) observeRun(outcome string, iterations int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	if iterations > 0 {
		m.iterations.Observe(float64(iterations))
	}
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeVerdict(kind string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(kind).Inc()
}
