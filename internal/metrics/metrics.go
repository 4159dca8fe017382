package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "transit_pulse"

// Исходы агрегации сообщения
const (
	OutcomeCreated   = "created"
	OutcomeMerged    = "merged"
	OutcomeDuplicate = "duplicate"
)

// Metrics - коллекторы движка агрегации и жизненного цикла
type Metrics struct {
	ReportsAggregated   *prometheus.CounterVec
	AggregationConflict prometheus.Counter
	AggregationErrors   prometheus.Counter
	AggregationDuration prometheus.Histogram
	IncidentTransitions *prometheus.CounterVec
}

// New создаёт коллекторы и регистрирует их в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportsAggregated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_aggregated_total",
			Help:      "Reports aggregated into incidents, by outcome.",
		}, []string{"outcome"}),
		AggregationConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_conflicts_total",
			Help:      "Optimistic write collisions retried by the aggregation engine.",
		}),
		AggregationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_errors_total",
			Help:      "Aggregations that failed with an error surfaced to the caller.",
		}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Time spent aggregating a single report, including lock wait.",
			Buckets:   prometheus.DefBuckets,
		}),
		IncidentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incident_transitions_total",
			Help:      "Incident status transitions applied.",
		}, []string{"from", "to"}),
	}

	reg.MustRegister(
		m.ReportsAggregated,
		m.AggregationConflict,
		m.AggregationErrors,
		m.AggregationDuration,
		m.IncidentTransitions,
	)
	return m
}
