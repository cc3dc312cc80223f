package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TicksTotal counts accepted ticks per symbol.
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of market ticks accepted"},
		[]string{"symbol"},
	)

	// StaleTicksTotal counts out-of-order ticks dropped per symbol.
	StaleTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stale_ticks_total", Help: "Out-of-order ticks dropped"},
		[]string{"symbol"},
	)

	// OrdersTotal counts filled paper orders.
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Paper orders filled"},
		[]string{"symbol", "side"},
	)

	// RejectedOrdersTotal counts order rejections by reason.
	RejectedOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rejected_orders_total", Help: "Orders rejected by reason"},
		[]string{"reason"},
	)

	// DroppedTicksTotal counts ticks evicted from full subscriber queues.
	DroppedTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dropped_ticks_total", Help: "Ticks evicted from slow subscriber queues"},
	)

	// SubscribersGauge tracks live hub subscribers.
	SubscribersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "subscribers", Help: "Live broadcast subscribers"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		StaleTicksTotal,
		OrdersTotal,
		RejectedOrdersTotal,
		DroppedTicksTotal,
		SubscribersGauge,
	)
}
