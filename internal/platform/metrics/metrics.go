// Package metrics exposes Prometheus instrumentation for roster operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder records roster operation outcomes. A nil *Recorder is a no-op.
type Recorder struct {
	ops               *prometheus.CounterVec
	orderSaveFailures *prometheus.CounterVec
	orderSaveDuration *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors with reg.
// A nil reg skips registration (useful in tests).
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "operations_total",
			Help:      "Roster operations by collection, operation and result.",
		}, []string{"collection", "op", "result"}),
		orderSaveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "order_save_failed_rows_total",
			Help:      "Rows whose display_order update failed during an order save.",
		}, []string{"collection"}),
		orderSaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roster",
			Name:      "order_save_duration_seconds",
			Help:      "Wall time of a settle-all order save batch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection"}),
	}
	if reg != nil {
		reg.MustRegister(r.ops, r.orderSaveFailures, r.orderSaveDuration)
	}
	return r
}

// Op counts one operation; err == nil is recorded as "ok".
func (r *Recorder) Op(collection, op string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.ops.WithLabelValues(collection, op, result).Inc()
}

// OrderSave records one order save batch.
func (r *Recorder) OrderSave(collection string, failed int, took time.Duration) {
	if r == nil {
		return
	}
	if failed > 0 {
		r.orderSaveFailures.WithLabelValues(collection).Add(float64(failed))
	}
	r.orderSaveDuration.WithLabelValues(collection).Observe(took.Seconds())
}
