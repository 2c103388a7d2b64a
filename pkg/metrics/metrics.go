package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CardGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "card_generations_total",
			Help: "Count of card generation attempts",
		},
		[]string{"surface", "status"},
	)
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "card_generation_duration_seconds",
			Help:    "Time taken to generate a card",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 240},
		},
		[]string{"surface"},
	)
	EnhancementFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "description_enhancement_failures_total",
			Help: "Count of failed description enhancement calls",
		},
		[]string{"kind"},
	)
	ActiveDrafts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_active_drafts",
			Help: "Current number of card drafts being collected",
		},
	)
)

func Init() {
	prometheus.MustRegister(
		CardGenerations,
		GenerationDuration,
		EnhancementFailures,
		ActiveDrafts,
	)
}
