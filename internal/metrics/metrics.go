package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatbot",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by origin.",
		},
		[]string{"origin"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "seatbot",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)

	ruleCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "seatbot",
			Name:      "recurring_rule_created_total",
			Help:      "Count of recurring rules created.",
		},
	)

	ruleDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "seatbot",
			Name:      "recurring_rule_deleted_total",
			Help:      "Count of recurring rules deleted.",
		},
	)

	adminAction = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatbot",
			Name:      "admin_action_total",
			Help:      "Count of admin panel actions by kind.",
		},
		[]string{"action"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, ruleCreated, ruleDeleted, adminAction)
	})
}

func IncBookingCreated(origin string) {
	bookingCreated.WithLabelValues(origin).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncRuleCreated() {
	ruleCreated.Inc()
}

func IncRuleDeleted() {
	ruleDeleted.Inc()
}

func IncAdminAction(action string) {
	adminAction.WithLabelValues(action).Inc()
}
