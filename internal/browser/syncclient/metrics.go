package syncclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded per action.
const (
	outcomeSuccess         = "success"
	outcomeRejected        = "rejected"
	outcomeTransport       = "transport"
	outcomeUnauthenticated = "unauthenticated"
	outcomeInFlight        = "in_flight"
	outcomeInvalid         = "invalid"
)

var (
	syncActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_sync_actions_total",
			Help: "Cart and wishlist actions issued by the sync client, by outcome",
		},
		[]string{"action", "outcome"},
	)

	syncActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_sync_action_duration_seconds",
			Help:    "Round trip of sync client actions that reached the network",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"action"},
	)

	staleCountsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_sync_stale_counts_total",
			Help: "Badge counts dropped because a newer response was already applied",
		},
		[]string{"badge"},
	)
)
