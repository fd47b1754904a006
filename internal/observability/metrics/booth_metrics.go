package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BoothMetrics captures low-cardinality capture workflow metrics.
type BoothMetrics struct {
	captureTotal    *prometheus.CounterVec
	captureDuration *prometheus.HistogramVec
	eventsDropped   prometheus.Counter
}

var (
	boothMetricsOnce sync.Once
	boothMetrics     *BoothMetrics
)

// Booth returns the process-wide booth metrics, registering them on first use.
func Booth() *BoothMetrics {
	return BoothWithConfig(Config{})
}

func BoothWithConfig(cfg Config) *BoothMetrics {
	boothMetricsOnce.Do(func() {
		boothMetrics = newBoothMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return boothMetrics
}

func ResetBoothMetricsForTest() {
	boothMetricsOnce = sync.Once{}
	boothMetrics = nil
}

func newBoothMetrics(registerer prometheus.Registerer, cfg Config) *BoothMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "photobooth"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	captureTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "photobooth_captures_total",
			Help:        "Capture workflow outcomes by result (success, failure, timeout).",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	captureDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "photobooth_capture_duration_seconds",
			Help: "Wall time from trigger to terminal event.",
			Buckets: []float64{
				1, 2.5, 5, 10, 20, 45, 90, 180,
			},
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	eventsDropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "photobooth_events_dropped_total",
			Help:        "Events dropped because a subscriber buffer was full.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(captureTotal, captureDuration, eventsDropped)

	return &BoothMetrics{
		captureTotal:    captureTotal,
		captureDuration: captureDuration,
		eventsDropped:   eventsDropped,
	}
}

// ObserveCapture records one finished capture workflow.
func (m *BoothMetrics) ObserveCapture(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.captureTotal.WithLabelValues(result).Inc()
	m.captureDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ObserveDroppedEvent records a fan-out delivery drop.
func (m *BoothMetrics) ObserveDroppedEvent() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
