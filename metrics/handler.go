package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP handler the collector mounts at /metrics. The
// otel Prometheus exporter registers its collectors against the default
// Prometheus registry, so promhttp.Handler() exposes everything New wired.
func Handler() http.Handler {
	return promhttp.Handler()
}
