package wsecho

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/framewire/websocket"
)

var (
	registerOnce sync.Once

	connections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsecho",
			Name:      "connections_total",
			Help:      "WebSocket connections by how they ended.",
		},
		[]string{"result"},
	)
	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsecho",
			Name:      "messages_total",
			Help:      "Messages echoed.",
		},
		[]string{"type"},
	)
	messageBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wsecho",
			Name:      "message_bytes_total",
			Help:      "Payload bytes echoed.",
		},
	)
)

// RegisterMetrics registers the echo server's collectors with the
// default Prometheus registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connections, messages, messageBytes)
	})
}

func recordMessage(typ websocket.MessageType, n int) {
	messages.WithLabelValues(typ.String()).Inc()
	messageBytes.Add(float64(n))
}

func recordConnection(err error) {
	result := "error"
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		result = "closed"
	}
	connections.WithLabelValues(result).Inc()
}
