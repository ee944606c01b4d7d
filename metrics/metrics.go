package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connected_clients",
			Help: "Currently connected websocket clients",
		},
	)

	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Total messages appended to room logs",
		},
	)

	MessageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_errors_total",
			Help: "Total rejected send requests",
		},
		[]string{"reason"},
	)

	RoomBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_room_broadcasts_total",
			Help: "Total events fanned out to room subscribers",
		},
	)
)
