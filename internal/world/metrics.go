package world

import "github.com/prometheus/client_golang/prometheus"

var (
	chunksLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "world",
		Name:      "chunks_loaded",
		Help:      "Число чанков в хранилище.",
	})
	regenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "world",
		Name:      "regeneration_duration_seconds",
		Help:      "Длительность генерации региона.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
	generationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "world",
		Name:      "generation_failures_total",
		Help:      "Число прерванных пакетов генерации.",
	})
)

func init() {
	prometheus.MustRegister(chunksLoaded, regenerationDuration, generationFailures)
}
