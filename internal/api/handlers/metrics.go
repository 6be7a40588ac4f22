package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/orpheusvoice/internal/conversation"
	"github.com/nikhilbhutani/orpheusvoice/internal/metrics"
)

type MetricsHandler struct {
	perf *metrics.Performance
	conv *conversation.Manager
}

func NewMetricsHandler(perf *metrics.Performance, conv *conversation.Manager) *MetricsHandler {
	return &MetricsHandler{perf: perf, conv: conv}
}

func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"performance_metrics":    h.perf.Snapshot(),
		"active_streams":         h.perf.ActiveStreams(),
		"max_concurrent_streams": metrics.MaxConcurrentStreams,
		"conversation_stats":     h.conv.Stats(),
		"target_metrics": map[string]float64{
			"tokens_per_second":   metrics.TargetTokensPerSec,
			"max_generation_time": metrics.MaxGenerationTime,
			"stream_success_rate": metrics.StreamSuccessTarget,
		},
		"timestamp": unixNow(),
	})
}
