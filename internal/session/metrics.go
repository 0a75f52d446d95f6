package session

import "github.com/prometheus/client_golang/prometheus"

var (
	rosterSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "players",
		Help:      "Число игроков в реестре.",
	})
	identityCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "identity_collisions_total",
		Help:      "Совпадения ID, выданных по контрольной сумме адреса.",
	})
)

func init() {
	prometheus.MustRegister(rosterSize, identityCollisions)
}
