package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// LockCounter tracks the number of lock acquisitions.
	LockCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "airlock_lock_total",
		Help: "Total number of lock acquisitions",
	})
	// GuardCancelCounter tracks cancel signals forwarded upstream by guards.
	GuardCancelCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "airlock_guard_cancel_total",
		Help: "Total number of cancellations forwarded to upstream publishers",
	})
	// DroppedValueCounter tracks values dropped after a pending cancel.
	DroppedValueCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "airlock_guard_dropped_total",
		Help: "Total number of values dropped because cancellation was pending",
	})
	// WaiterGauge reports the number of continuations queued on locks.
	WaiterGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "airlock_waiters",
		Help: "Current number of queued lock waiters",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers airlock core metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LockCounter, GuardCancelCounter, DroppedValueCounter, WaiterGauge)
}
