package listing

import "github.com/prometheus/client_golang/prometheus"

var (
	staleResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_stale_responses_total",
			Help: "Listing responses discarded because a newer request for the same view started",
		},
		[]string{"resource"},
	)

	fanOutStoreFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_fanout_store_failures_total",
			Help: "Per-store requests that failed during a retailer listing merge",
		},
		[]string{"resource"},
	)

	fanOutStores = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listing_fanout_stores",
			Help:    "Number of stores merged per retailer listing request",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"resource"},
	)
)

func init() {
	prometheus.MustRegister(staleResponsesTotal, fanOutStoreFailuresTotal, fanOutStores)
}
