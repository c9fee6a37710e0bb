package handler

import (
	"fmt"
	"net/http"

	"github.com/eralens/eralens/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "# HELP eralens_identity_cache_hits_total Bearer token identities served from the cache.\n")
	writeMetric(w, "# TYPE eralens_identity_cache_hits_total counter\n")
	writeMetric(w, "eralens_identity_cache_hits_total %d\n", snap.IdentityCacheHits)
	writeMetric(w, "# HELP eralens_identity_cache_misses_total Bearer token identities resolved via the identity provider.\n")
	writeMetric(w, "# TYPE eralens_identity_cache_misses_total counter\n")
	writeMetric(w, "eralens_identity_cache_misses_total %d\n", snap.IdentityCacheMisses)
	writeMetric(w, "# HELP eralens_accounts_created_total Accounts provisioned on first sight.\n")
	writeMetric(w, "# TYPE eralens_accounts_created_total counter\n")
	writeMetric(w, "eralens_accounts_created_total %d\n", snap.AccountsCreated)

	writeMetric(w, "# HELP eralens_generations_total Generation requests by outcome.\n")
	writeMetric(w, "# TYPE eralens_generations_total counter\n")
	writeMetric(w, "eralens_generations_total{outcome=\"success\"} %d\n", snap.GenerationsSucceeded)
	writeMetric(w, "eralens_generations_total{outcome=\"upstream_error\"} %d\n", snap.GenerationsUpstreamFailed)
	writeMetric(w, "eralens_generations_total{outcome=\"out_of_credits\"} %d\n", snap.GenerationsOutOfCredits)
	writeMetric(w, "eralens_generations_total{outcome=\"invalid_request\"} %d\n", snap.GenerationsInvalid)
	writeMetric(w, "# HELP eralens_generation_duration_seconds End-to-end generation latency.\n")
	writeMetric(w, "# TYPE eralens_generation_duration_seconds summary\n")
	writeMetric(w, "eralens_generation_duration_seconds_count %d\n", snap.GenerationDurationCount)
	writeMetric(w, "eralens_generation_duration_seconds_sum %.6f\n", float64(snap.GenerationDurationTotalNs)/1e9)

	writeMetric(w, "# HELP eralens_credits_deducted_total Credits deducted for generations.\n")
	writeMetric(w, "# TYPE eralens_credits_deducted_total counter\n")
	writeMetric(w, "eralens_credits_deducted_total %d\n", snap.CreditsDeducted)
	writeMetric(w, "# HELP eralens_admin_adjustments_total Admin credit adjustments by kind.\n")
	writeMetric(w, "# TYPE eralens_admin_adjustments_total counter\n")
	writeMetric(w, "eralens_admin_adjustments_total{kind=\"set\"} %d\n", snap.AdminSets)
	writeMetric(w, "eralens_admin_adjustments_total{kind=\"add\"} %d\n", snap.AdminAdds)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
