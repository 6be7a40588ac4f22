package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nikhilbhutani/orpheusvoice/internal/conversation"
	"github.com/nikhilbhutani/orpheusvoice/internal/metrics"
	"github.com/nikhilbhutani/orpheusvoice/internal/multimodal/tts"
	"github.com/nikhilbhutani/orpheusvoice/internal/voice"
)

// Pinger is a dependency whose reachability is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backends records which upstream credentials were configured at startup.
type Backends struct {
	OpenAIConfigured  bool
	OrpheusConfigured bool
}

type HealthHandler struct {
	catalog  *voice.Catalog
	perf     *metrics.Performance
	status   *tts.DeploymentStatus
	conv     *conversation.Manager
	cache    Pinger
	backends Backends
}

// NewHealthHandler creates the health handler. cache is nil when the audio
// cache is disabled.
func NewHealthHandler(catalog *voice.Catalog, perf *metrics.Performance, status *tts.DeploymentStatus, conv *conversation.Manager, cache Pinger, backends Backends) *HealthHandler {
	return &HealthHandler{
		catalog:  catalog,
		perf:     perf,
		status:   status,
		conv:     conv,
		cache:    cache,
		backends: backends,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			status = "degraded"
		} else {
			checks["redis"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"model_status": "loaded",
		"features": map[string]bool{
			"text_to_speech":           true,
			"speech_to_text":           true,
			"conversation":             true,
			"chatgpt_integration":      true,
			"emotional_intelligence":   true,
			"loop_prevention":          true,
			"orpheus_tts":              true,
			"orpheus_streaming":        false,
			"system_tts":               false,
			"persistent_connections":   false,
			"performance_optimization": true,
			"audio_cache":              h.cache != nil,
		},
		"performance":            h.perf.Snapshot(),
		"active_streams":         h.perf.ActiveStreams(),
		"max_concurrent_streams": metrics.MaxConcurrentStreams,
		"available_voices":       h.catalog.IDs(),
		"voice_count":            h.catalog.Len(),
		"api_status": map[string]any{
			"openai_configured":   h.backends.OpenAIConfigured,
			"orpheus_configured":  h.backends.OrpheusConfigured,
			"chat_available":      h.conv.ChatAvailable(),
			"total_conversations": h.conv.Stats().ActiveSessions,
			"deployment_status":   h.status.State(),
			"model_available":     h.status.ModelAvailable(),
			"cache_enabled":       h.cache != nil,
		},
		"checks":    checks,
		"timestamp": unixNow(),
		"message":   "Optimized voice server with ChatGPT + Orpheus TTS",
	})
}
