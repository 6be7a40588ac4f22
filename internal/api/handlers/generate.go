package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/orpheusvoice/internal/multimodal/tts"
	"github.com/nikhilbhutani/orpheusvoice/internal/voice"
)

const voiceType = "orpheus"

type generateRequest struct {
	Text           string `json:"text"`
	Voice          string `json:"voice"`
	Context        string `json:"context"`
	EmotionMode    string `json:"emotion_mode"`
	AddEmotionTags *bool  `json:"add_emotion_tags"`
	ResponseFormat string `json:"response_format"`
}

type generateMetrics struct {
	GenerationTime  float64         `json:"generation_time"`
	AudioDuration   float64         `json:"audio_duration"`
	RTF             float64         `json:"rtf"`
	SampleRate      int             `json:"sample_rate"`
	WordCount       int             `json:"word_count"`
	Voice           string          `json:"voice"`
	VoiceType       string          `json:"voice_type"`
	Context         string          `json:"context"`
	Method          string          `json:"method"`
	StreamingUsed   bool            `json:"streaming_used"`
	EmotionMode     string          `json:"emotion_mode"`
	TemperatureUsed float64         `json:"temperature_used"`
	EmotionEnhanced bool            `json:"emotion_enhanced"`
	Precision       voice.Precision `json:"precision"`
	Backend         string          `json:"backend"`
	FallbackUsed    bool            `json:"fallback_used"`
	FallbackVoice   string          `json:"fallback_voice,omitempty"`
	Cached          bool            `json:"cached"`
	GenerationID    string          `json:"generation_id"`
}

type GenerateHandler struct {
	catalog *voice.Catalog
	synth   tts.Synthesizer
}

func NewGenerateHandler(catalog *voice.Catalog, synth tts.Synthesizer) *GenerateHandler {
	return &GenerateHandler{catalog: catalog, synth: synth}
}

// Generate synthesizes the supplied text. The audio is returned raw unless
// response_format is "json".
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		WriteError(w, http.StatusBadRequest, "Text is required")
		return
	}

	profile, voiceID := resolveVoice(h.catalog, strings.TrimSpace(req.Voice), h.catalog.DefaultID())
	if req.Context == "" {
		req.Context = "manual"
	}
	if req.EmotionMode == "" {
		req.EmotionMode = voice.ModeNatural
	}
	addTags := true
	if req.AddEmotionTags != nil {
		addTags = *req.AddEmotionTags
	}

	res, err := h.synth.Synthesize(context.WithoutCancel(r.Context()), text, profile, tts.Options{
		EmotionMode: req.EmotionMode,
		AddTags:     addTags,
	})
	if err != nil {
		slog.Error("generate failed", "voice", voiceID, "error", err)
		writeSynthesisError(w, "Audio generation failed: "+err.Error(), tts.FallbackUsed(err))
		return
	}

	if req.ResponseFormat != "json" {
		writeAudio(w, res)
		return
	}

	var rtf float64
	if res.Duration > 0 {
		rtf = res.Elapsed.Seconds() / res.Duration
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"audio_base64": base64.StdEncoding.EncodeToString(res.Audio),
		"metrics": generateMetrics{
			GenerationTime:  round(res.Elapsed.Seconds(), 2),
			AudioDuration:   round(res.Duration, 2),
			RTF:             round(rtf, 3),
			SampleRate:      tts.SampleRate,
			WordCount:       res.WordCount,
			Voice:           voiceID,
			VoiceType:       voiceType,
			Context:         req.Context,
			Method:          method(res),
			EmotionMode:     res.EmotionMode,
			TemperatureUsed: res.Temperature,
			EmotionEnhanced: addTags && !res.FallbackUsed,
			Precision:       res.Precision,
			Backend:         res.Backend,
			FallbackUsed:    res.FallbackUsed,
			FallbackVoice:   res.FallbackVoice,
			Cached:          res.Cached,
			GenerationID:    res.GenerationID,
		},
		"original_text": text,
	})
}

func writeAudio(w http.ResponseWriter, res *tts.Result) {
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio)))
	w.Header().Set("X-Generation-Time", fmt.Sprintf("%.2f", res.Elapsed.Seconds()))
	w.Header().Set("X-Voice-Type", voiceType)
	w.Header().Set("X-Audio-Duration", fmt.Sprintf("%.2f", res.Duration))
	w.Header().Set("X-Backend", res.Backend)
	w.Header().Set("X-Fallback-Used", strconv.FormatBool(res.FallbackUsed))
	w.Header().Set("X-Generation-Id", res.GenerationID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Audio); err != nil {
		slog.Warn("writing audio failed", "error", err)
	}
}

func method(res *tts.Result) string {
	if res.FallbackUsed {
		return res.Backend + "_tts_fallback"
	}
	return voiceType + "_tts_optimized"
}

// resolveVoice returns the profile for id and the id to report back. Unknown
// ids resolve to fallbackID, then to the catalog default.
func resolveVoice(c *voice.Catalog, id, fallbackID string) (voice.Profile, string) {
	if p, ok := c.ResolvePrecisionVariant(id); ok {
		return p, id
	}
	if p, ok := c.ResolvePrecisionVariant(fallbackID); ok {
		return p, fallbackID
	}
	return c.Default(), c.DefaultID()
}
