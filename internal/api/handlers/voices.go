package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/orpheusvoice/internal/metrics"
	"github.com/nikhilbhutani/orpheusvoice/internal/voice"
)

type voiceEntry struct {
	voice.Profile
	Type               string                   `json:"type"`
	PerformanceProfile voice.PerformanceProfile `json:"performance_profile"`
}

type VoicesHandler struct {
	catalog *voice.Catalog
}

func NewVoicesHandler(catalog *voice.Catalog) *VoicesHandler {
	return &VoicesHandler{catalog: catalog}
}

// List returns every catalog voice keyed by id.
func (h *VoicesHandler) List(w http.ResponseWriter, r *http.Request) {
	voices := make(map[string]voiceEntry, h.catalog.Len())
	for _, id := range h.catalog.IDs() {
		p, _ := h.catalog.Lookup(id)
		voices[id] = voiceEntry{Profile: p, Type: "orpheus", PerformanceProfile: p.PerformanceProfile()}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"voices":        voices,
		"count":         h.catalog.Len(),
		"default_voice": h.catalog.DefaultID(),
		"capabilities": map[string]bool{
			"real_time_generation":     true,
			"orpheus_ai_voices":        true,
			"streaming_audio":          false,
			"system_voices":            false,
			"emotion_support":          true,
			"performance_optimization": true,
			"chatgpt_conversations":    true,
			"multiple_languages":       false,
			"voice_cloning":            false,
		},
		"performance_info": map[string]int{
			"target_tokens_per_sec":  metrics.TargetTokensPerSec,
			"chunk_size":             metrics.ChunkSize,
			"max_concurrent_streams": metrics.MaxConcurrentStreams,
		},
	})
}
