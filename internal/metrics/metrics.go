package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maxsmile",
			Name:      "reservations_total",
			Help:      "Successful public reservations by branch.",
		},
		[]string{"branch"},
	)

	capacityRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maxsmile",
			Name:      "capacity_rejections_total",
			Help:      "Bookings rejected because the branch-day was full.",
		},
		[]string{"branch"},
	)

	closedDayRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maxsmile",
			Name:      "closed_day_rejections_total",
			Help:      "Bookings rejected because the clinic is closed that day.",
		},
		[]string{"branch"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservations, capacityRejections, closedDayRejections)
	})
}

func IncReservation(branch string) {
	reservations.WithLabelValues(branch).Inc()
}

func IncCapacityRejection(branch string) {
	capacityRejections.WithLabelValues(branch).Inc()
}

func IncClosedDayRejection(branch string) {
	closedDayRejections.WithLabelValues(branch).Inc()
}
