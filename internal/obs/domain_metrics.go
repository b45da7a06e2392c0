package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartTotalsCalculationsTotal counts completed cart totals passes.
	CartTotalsCalculationsTotal prometheus.Counter
	// OrderTransitionsTotal counts order status transition attempts.
	OrderTransitionsTotal *prometheus.CounterVec
	// ShippingRateCacheTotal counts package rate cache lookups by result.
	ShippingRateCacheTotal *prometheus.CounterVec
	// ShippingZoneMatchTotal counts zones selected for packages.
	ShippingZoneMatchTotal *prometheus.CounterVec
	// DBQueryDuration observes statement latency by SQL verb and outcome.
	DBQueryDuration *prometheus.HistogramVec
	// EventsEnqueuedTotal counts outbound domain events by topic and outcome.
	EventsEnqueuedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartTotalsCalculationsTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_totals_calculations_total",
			Help:      "Number of cart totals calculation passes.",
		}))
		OrderTransitionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Count of order status transitions by source status, trigger and outcome.",
		}, []string{"from", "trigger", "result"}))
		ShippingRateCacheTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_rate_cache_total",
			Help:      "Count of shipping rate cache lookups by result.",
		}, []string{"result"}))
		ShippingZoneMatchTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_zone_match_total",
			Help:      "Count of packages matched to each shipping zone.",
		}, []string{"zone"}))
		DBQueryDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Postgres statement latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation", "result"}))
		EventsEnqueuedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_enqueued_total",
			Help:      "Domain events handed to the background queue.",
		}, []string{"topic", "result"}))
	})
}
