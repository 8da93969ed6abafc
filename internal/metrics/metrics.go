// Package metrics holds the Prometheus collectors of the service.
// Collectors are package globals; Register adds them to the default registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "menudex"

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			HTTPInFlight,
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			EmbeddingBreakerState,
			RetrievalsTotal,
			RetrievalDuration,
			RebuildsTotal,
			RebuildDuration,
			IndexItems,
		)
	})
}
