package network

import "github.com/prometheus/client_golang/prometheus"

var (
	activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "network",
		Name:      "active_connections",
		Help:      "Число установленных соединений сервера.",
	})
	messagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "network",
		Name:      "messages_received_total",
		Help:      "Принятые кадры по опкоду.",
	}, []string{"role", "opcode"})
	messagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "network",
		Name:      "messages_sent_total",
		Help:      "Отправленные кадры по опкоду.",
	}, []string{"role", "opcode"})
	handshakeViolations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "network",
		Name:      "handshake_violations_total",
		Help:      "Соединения, закрытые из-за нарушения протокола.",
	}, []string{"role"})
	droppedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "network",
		Name:      "dropped_peer_events_total",
		Help:      "События пиров, не поместившиеся в буфер.",
	})
)

func init() {
	prometheus.MustRegister(activeConnections, messagesReceived, messagesSent, handshakeViolations, droppedEvents)
}
