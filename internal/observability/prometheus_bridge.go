package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the default Prometheus registry (the one
// every promauto.New* metric in this package registers to) as a
// scrape endpoint. cmd/beacon mounts this on its diagnostics listener;
// it is the one piece of this package that talks HTTP, and it exists
// to be scraped, not to serve the rule-evaluation domain itself.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
