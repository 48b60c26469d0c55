package inventory

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// Metrics exposes Prometheus collectors for the movement processor.
type Metrics struct {
	movements     *prometheus.CounterVec
	lockWait      prometheus.Histogram
	notifications *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the stock metrics. A nil registerer uses the default
// Prometheus registerer, registered once per process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "almox_stock_movements_total",
			Help: "Stock movements by type and outcome.",
		}, []string{"type", "result"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "almox_stock_lock_wait_seconds",
			Help:    "Time spent waiting for the per-item stock lock.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "almox_stock_notifications_total",
			Help: "Status change notifications emitted by target status.",
		}, []string{"status"}),
	}
	registerer.MustRegister(m.movements, m.lockWait, m.notifications)
	return m
}

func (m *Metrics) observeMovement(t MovementType, err error) {
	if m == nil {
		return
	}
	label := string(t)
	if !t.Valid() {
		label = "UNKNOWN"
	}
	m.movements.WithLabelValues(label, outcome(err)).Inc()
}

func (m *Metrics) observeLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *Metrics) observeNotification(st status.Status) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(st)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrMissingActor):
		return "invalid"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrInactiveLocation):
		return "inactive_location"
	case errors.Is(err, shared.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, shared.ErrBusy):
		return "busy"
	case errors.Is(err, shared.ErrDuplicate):
		return "duplicate"
	default:
		return "error"
	}
}
