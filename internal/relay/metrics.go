package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions_active",
		Help: "Currently connected chat sessions",
	})

	metricRoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_rooms_active",
		Help: "Rooms with at least one member",
	})

	metricJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_room_joins_total",
		Help: "Total successful room joins, rejoins included",
	})

	metricMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_total",
		Help: "Total messages broadcast to rooms",
	})

	metricDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_delivery_failures_total",
		Help: "Events dropped because a recipient outbox was full or gone",
	})

	metricClientErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_client_errors_total",
		Help: "Error events returned to requesters",
	}, []string{"reason"})
)
