// Package monitoring exposes Prometheus instrumentation for the prediction
// and training pipelines.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	PredictionsTotal  *prometheus.CounterVec
	PredictionSeconds prometheus.Histogram
	TrainingRunsTotal *prometheus.CounterVec
}

// New creates and registers the service collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "preptime",
			Name:      "predictions_total",
			Help:      "Predictions served, by estimation method.",
		}, []string{"method"}),
		PredictionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "preptime",
			Name:      "prediction_duration_seconds",
			Help:      "End-to-end prediction pipeline duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		TrainingRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "preptime",
			Name:      "training_runs_total",
			Help:      "Training runs, by outcome status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.PredictionsTotal, m.PredictionSeconds, m.TrainingRunsTotal)
	return m
}
