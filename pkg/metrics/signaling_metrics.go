package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Signaling metrics for monitoring meeting lifecycle and presence churn
var (
	MeetingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_meetings_created_total",
		Help: "Total number of meetings created",
	})

	MeetingsEndedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_meetings_ended_total",
		Help: "Total number of meetings ended",
	})

	TokenValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_token_validations_total",
		Help: "Total number of token validations",
	}, []string{"result"}) // "valid", "malformed", "not_found", "expired"

	ParticipantJoinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_participant_joins_total",
		Help: "Total number of join attempts",
	}, []string{"status"})

	HeartbeatsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_heartbeats_total",
		Help: "Total number of heartbeat calls",
	}, []string{"status"})

	ActivePeersReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signaling_active_peers_returned",
		Help:    "Number of active peers returned per heartbeat",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	ChatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_chat_messages_total",
		Help: "Total number of chat messages sent",
	}, []string{"status"})
)
