package spreadsheet

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the optional set of Prometheus collectors the engine updates.
// a nil *Metrics is valid and records nothing.
type Metrics struct {
	functionCalls       *prometheus.CounterVec
	functionErrors      *prometheus.CounterVec
	calculationDuration prometheus.Histogram
	dirtyCells          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		// Labels: function
		functionCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spreadsheet",
			Name:      "function_calls_total",
			Help:      "Total formula function invocations",
		}, []string{"function"}),

		// Labels: function, code (#DIV/0!, #N/A, ...)
		functionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spreadsheet",
			Name:      "function_errors_total",
			Help:      "Total formula function invocations that produced an error value",
		}, []string{"function", "code"}),

		calculationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spreadsheet",
			Name:      "calculation_duration_seconds",
			Help:      "Time spent recalculating dirty cells",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		dirtyCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spreadsheet",
			Name:      "dirty_cells",
			Help:      "Cells waiting for recalculation",
		}),
	}

	for _, c := range []prometheus.Collector{m.functionCalls, m.functionErrors, m.calculationDuration, m.dirtyCells} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering spreadsheet metrics")
		}
	}
	return m, nil
}

func (m *Metrics) recordCall(function string) {
	if m == nil {
		return
	}
	m.functionCalls.WithLabelValues(function).Inc()
}

func (m *Metrics) recordError(function string, code ErrorCode) {
	if m == nil {
		return
	}
	m.functionErrors.WithLabelValues(function, code.String()).Inc()
}

func (m *Metrics) observeCalculation(d time.Duration) {
	if m == nil {
		return
	}
	m.calculationDuration.Observe(d.Seconds())
}

func (m *Metrics) setDirtyCells(n int) {
	if m == nil {
		return
	}
	m.dirtyCells.Set(float64(n))
}
