package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nikhilbhutani/orpheusvoice/internal/conversation"
	"github.com/nikhilbhutani/orpheusvoice/internal/multimodal/tts"
	"github.com/nikhilbhutani/orpheusvoice/internal/voice"
)

// Default voices per conversation mode.
const (
	FastVoice      = "orpheus_leah"
	EmotionalVoice = "orpheus_tara_fp16"
)

type conversationRequest struct {
	Text      string `json:"text"`
	Voice     string `json:"voice"`
	SessionID string `json:"session_id"`
}

type conversationMetrics struct {
	ChatGPTTime   float64         `json:"chatgpt_time"`
	AudioTime     float64         `json:"audio_time"`
	TotalTime     float64         `json:"total_time"`
	AudioDuration float64         `json:"audio_duration"`
	Words         int             `json:"words"`
	Voice         string          `json:"voice"`
	Precision     voice.Precision `json:"precision"`
	Backend       string          `json:"backend"`
	FallbackUsed  bool            `json:"fallback_used"`
	Cached        bool            `json:"cached"`
	CannedReply   bool            `json:"canned_reply"`
}

type emotionalAnalysis struct {
	DetectedEmotion      string  `json:"detected_emotion"`
	EmotionIntensity     float64 `json:"emotion_intensity"`
	Confidence           float64 `json:"confidence"`
	ResponseStyle        string  `json:"response_style"`
	VoiceTone            string  `json:"voice_tone"`
	ConversationApproach string  `json:"conversation_approach"`
}

type ConversationHandler struct {
	catalog *voice.Catalog
	synth   tts.Synthesizer
	conv    *conversation.Manager
}

func NewConversationHandler(catalog *voice.Catalog, synth tts.Synthesizer, conv *conversation.Manager) *ConversationHandler {
	return &ConversationHandler{catalog: catalog, synth: synth, conv: conv}
}

// Respond answers in fast mode and speaks the reply.
func (h *ConversationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, conversation.ModeFast)
}

// RespondEmotional answers in emotional mode. The reply is voiced with the
// tone chosen for the detected emotion.
func (h *ConversationHandler) RespondEmotional(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, conversation.ModeEmotional)
}

func (h *ConversationHandler) respond(w http.ResponseWriter, r *http.Request, mode conversation.Mode) {
	var req conversationRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		WriteError(w, http.StatusBadRequest, "No text provided")
		return
	}

	defaultVoice := FastVoice
	if mode == conversation.ModeEmotional {
		defaultVoice = EmotionalVoice
	}
	requested := strings.TrimSpace(req.Voice)
	if requested == "" {
		requested = defaultVoice
	}
	profile, voiceID := resolveVoice(h.catalog, requested, defaultVoice)

	ctx := context.WithoutCancel(r.Context())
	start := time.Now()
	reply := h.conv.Respond(ctx, req.SessionID, text, mode)

	opts := tts.Options{EmotionMode: voice.ModeNatural}
	if reply.Emotion != nil {
		opts = tts.Options{EmotionMode: reply.Emotion.VoiceTone, AddTags: true}
	}

	audioStart := time.Now()
	res, err := h.synth.Synthesize(ctx, reply.Text, profile, opts)
	audioTime := time.Since(audioStart)

	if err != nil {
		slog.Error("conversation audio failed", "mode", string(mode), "voice", voiceID, "error", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       false,
			"error":         fmt.Sprintf("Audio generation failed: %v", err),
			"ai_response":   reply.Text,
			"voice_used":    voiceID,
			"mode":          string(mode),
			"fallback_used": tts.FallbackUsed(err),
		})
		return
	}

	body := map[string]any{
		"success":        true,
		"ai_response":    reply.Text,
		"audio_base64":   base64.StdEncoding.EncodeToString(res.Audio),
		"voice_used":     voiceID,
		"precision_used": profile.Precision,
		"mode":           string(mode),
		"session_id":     sessionOrDefault(req.SessionID),
		"metrics": conversationMetrics{
			ChatGPTTime:   round(reply.Elapsed.Seconds(), 2),
			AudioTime:     round(audioTime.Seconds(), 2),
			TotalTime:     round(time.Since(start).Seconds(), 2),
			AudioDuration: round(res.Duration, 2),
			Words:         len(strings.Fields(reply.Text)),
			Voice:         voiceID,
			Precision:     profile.Precision,
			Backend:       res.Backend,
			FallbackUsed:  res.FallbackUsed,
			Cached:        res.Cached,
			CannedReply:   reply.Canned,
		},
	}
	if a := reply.Emotion; a != nil {
		body["emotional_analysis"] = emotionalAnalysis{
			DetectedEmotion:      string(a.DetectedEmotion),
			EmotionIntensity:     a.EmotionIntensity,
			Confidence:           a.Confidence,
			ResponseStyle:        a.ResponseStyle,
			VoiceTone:            a.VoiceTone,
			ConversationApproach: a.ConversationApproach,
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// History returns the stored exchanges of one session.
func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionOrDefault(r.URL.Query().Get("session_id"))
	history := h.conv.History(sessionID)

	writeJSON(w, http.StatusOK, map[string]any{
		"history":         history,
		"total_messages":  len(history),
		"session_id":      sessionID,
		"active_sessions": h.conv.SessionIDs(),
		"message":         "Conversation history for session " + sessionID,
	})
}

func (h *ConversationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := sessionOrDefault(req.SessionID)
	h.conv.Clear(sessionID)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Conversation history cleared for session " + sessionID,
		"session_id": sessionID,
		"timestamp":  unixNow(),
	})
}

func sessionOrDefault(id string) string {
	if id == "" {
		return conversation.DefaultSession
	}
	return id
}
