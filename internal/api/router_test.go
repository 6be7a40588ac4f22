package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/orpheusvoice/internal/api"
	"github.com/nikhilbhutani/orpheusvoice/internal/api/handlers"
	"github.com/nikhilbhutani/orpheusvoice/internal/config"
	"github.com/nikhilbhutani/orpheusvoice/internal/conversation"
	"github.com/nikhilbhutani/orpheusvoice/internal/llm"
	"github.com/nikhilbhutani/orpheusvoice/internal/memory"
	"github.com/nikhilbhutani/orpheusvoice/internal/multimodal/tts"
	"github.com/nikhilbhutani/orpheusvoice/internal/voice"
)

var wavBytes = []byte("RIFF....WAVEfmt fake-audio")

type synthCall struct {
	text    string
	profile voice.Profile
	opts    tts.Options
}

type fakeSynth struct {
	err   error
	panic bool

	mu    sync.Mutex
	calls []synthCall
}

func (f *fakeSynth) Synthesize(_ context.Context, text string, profile voice.Profile, opts tts.Options) (*tts.Result, error) {
	if f.panic {
		panic("synth exploded")
	}
	f.mu.Lock()
	f.calls = append(f.calls, synthCall{text: text, profile: profile, opts: opts})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &tts.Result{
		GenerationID: "gen-1",
		Audio:        wavBytes,
		ContentType:  "audio/wav",
		Duration:     1.5,
		Elapsed:      750 * time.Millisecond,
		Backend:      "orpheus",
		Temperature:  profile.Temperature(opts.EmotionMode),
		MaxTokens:    800,
		EmotionMode:  opts.EmotionMode,
		Precision:    profile.Precision,
		WordCount:    len(strings.Fields(text)),
	}, nil
}

func (f *fakeSynth) last(t *testing.T) synthCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type fakeChat struct {
	content string
}

func (f *fakeChat) Available() bool         { return f.content != "" }
func (f *fakeChat) DefaultProvider() string { return "fake" }
func (f *fakeChat) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Provider: "fake", Content: f.content}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	srv   *httptest.Server
	synth *fakeSynth
	conv  *conversation.Manager
}

func newTestServer(t *testing.T, synth *fakeSynth, chat *fakeChat, mutate func(*api.Deps)) *testServer {
	t.Helper()

	catalog, err := voice.Builtin()
	require.NoError(t, err)

	conv := conversation.NewManager(chat, memory.NewStore(memory.DefaultMaxExchanges), nil, nil, conversation.Config{})
	deps := api.Deps{
		Catalog:      catalog,
		Synthesizer:  synth,
		Conversation: conv,
		Backends:     handlers.Backends{OpenAIConfigured: true, OrpheusConfigured: true},
		Prometheus: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# prometheus\n"))
		}),
	}
	if mutate != nil {
		mutate(&deps)
	}

	router := api.NewRouter(deps)
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(func() {
		srv.Close()
		router.Close()
	})
	return &testServer{srv: srv, synth: synth, conv: conv}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &fakeSynth{}, &fakeChat{}, nil)

	for _, path := range []string{"/generate", "/anything/at/all"} {
		resp := ts.do(t, http.MethodOptions, path, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
		assert.Zero(t, resp.ContentLength)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeSynth{}, &fakeChat{}, nil)

	resp := ts.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.EqualValues(t, 404, body["status_code"])
	assert.Contains(t, body, "timestamp")

	resp = ts.do(t, http.MethodGet, "/generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	body = decode(t, resp)
	assert.EqualValues(t, 405, body["status_code"])
}

func TestGenerate_AudioResponse(t *testing.T) {
	synth := &fakeSynth{}
	ts := newTestServer(t, synth, &fakeChat{}, nil)

	resp := ts.do(t, http.MethodPost, "/generate", `{"text":"  Hello there  ","voice":"orpheus_leah_fp16"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Equal(t, "0.75", resp.Header.Get("X-Generation-Time"))
	assert.Equal(t, "1.50", resp.Header.Get("X-Audio-Duration"))
	assert.Equal(t, "orpheus", resp.Header.Get("X-Voice-Type"))
	assert.Equal(t, "orpheus", resp.Header.Get("X-Backend"))
	assert.Equal(t, "false", resp.Header.Get("X-Fallback-Used"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, wavBytes, buf.Bytes())

	call := synth.last(t)
	assert.Equal(t, "Hello there", call.text)
	assert.Equal(t, "orpheus_leah", call.profile.ID)
	assert.Equal(t, voice.PrecisionQuality, call.profile.Precision)
	assert.Equal(t, tts.Options{EmotionMode: voice.ModeNatural, AddTags: true}, call.opts)
}

func TestGenerate_JSONResponse(t *testing.T) {
	synth := &fakeSynth{}
	ts := newTestServer(t, synth, &fakeChat{}, nil)

	resp := ts.do(t, http.MethodPost, "/generate",
		`{"text":"one two three","voice":"archetype_cowboy_male","emotion_mode":"dramatic","add_emotion_tags":false,"response_format":"json","context":"test"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "one two three", body["original_text"])
	audio, err := base64.StdEncoding.DecodeString(body["audio_base64"].(string))
	require.NoError(t, err)
	assert.Equal(t, wavBytes, audio)

	m := body["metrics"].(map[string]any)
	assert.InDelta(t, 0.75, m["generation_time"], 1e-9)
	assert.InDelta(t, 1.5, m["audio_duration"], 1e-9)
	assert.InDelta(t, 0.5, m["rtf"], 1e-9)
	assert.EqualValues(t, 24000, m["sample_rate"])
	assert.EqualValues(t, 3, m["word_count"])
	assert.Equal(t, "archetype_cowboy_male", m["voice"])
	assert.Equal(t, "test", m["context"])
	assert.Equal(t, "orpheus_tts_optimized", m["method"])
	assert.Equal(t, "dramatic", m["emotion_mode"])
	assert.Equal(t, "fp8", m["precision"])
	assert.Equal(t, false, m["fallback_used"])
	assert.Equal(t, false, m["emotion_enhanced"])

	call := synth.last(t)
	assert.Equal(t, tts.Options{EmotionMode: "dramatic", AddTags: false}, call.opts)
	assert.Equal(t, voice.PrecisionSpeed, call.profile.Precision)
}

func TestGenerate_UnknownVoiceUsesDefault(t *testing.T) {
	synth := &fakeSynth{}
	ts := newTestServer(t, synth, &fakeChat{}, nil)

	resp := ts.do(t, http.MethodPost, "/generate", `{"text":"hi","voice":"no_such_voice"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, voice.DefaultVoice, synth.last(t).profile.ID)
}

func TestGenerate_BadRequests(t *testing.T) {
	ts := newTestServer(t, &fakeSynth{}, &fakeChat{}, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing text", `{"voice":"orpheus_leah"}`, "Text is required"},
		{"blank text", `{"text":"   "}`, "Text is required"},
		{"malformed", `{"text":`, "invalid request body"},
		{"empty body", ``, "invalid request body"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/generate", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode(t, resp)
			assert.Equal(t, tc.want, body["error"])
			assert.EqualValues(t, 400, body["status_code"])
		})
	}
}

func TestGenerate_SynthesisFailure(t *testing.T) {
	synth := &fakeSynth{err: &tts.SynthesisError{FallbackUsed: true, Err: errors.New("openai: status 500: boom")}}
	ts := newTestServer(t, synth, &fakeChat{}, nil)

	resp := ts.do(t, http.MethodPost, "/generate", `{"text":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.True(t, strings.HasPrefix(body["error"].(string), "Audio generation failed: "))
	assert.Equal(t, true, body["fallback_used"])
}

func TestPanicBecomesEnvelope(t *testing.T) {
	ts := newTestServer(t, &fakeSynth{panic: true}, &fakeChat{}, nil)

	resp := ts.do(t, http.MethodPost, "/generate", `{"text":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode(t, resp)
	assert.EqualValues(t, 500, body["status_code"])
}

func TestConversationRespond_FastFlow(t *testing.T) {
	synth := &fakeSynth{}
	ts := newTestServer(t, synth, &fakeChat{content: "Happy to help!"}, nil)

	resp := ts.do(t, http.MethodPost, "/conversation/respond", `{"text":"can you help me","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Happy to help!", body["ai_response"])
	assert.Equal(t, "orpheus_leah", body["voice_used"])
	assert.Equal(t, "fp8", body["precision_used"])
	assert.Equal(t, "fast", body["mode"])
	assert.NotContains(t, body, "emotional_analysis")
	m := body["metrics"].(map[string]any)
	assert.EqualValues(t, 3, m["words"])
	assert.Equal(t, "orpheus", m["backend"])

	call := synth.last(t)
	assert.Equal(t, "Happy to help!", call.text)
	assert.Equal(t, tts.Options{EmotionMode: voice.ModeNatural}, call.opts)

	resp = ts.do(t, http.MethodGet, "/conversation/history?session_id=s1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decode(t, resp)
	assert.EqualValues(t, 1, hist["total_messages"])
	assert.Equal(t, "s1", hist["session_id"])
	assert.Equal(t, []any{"s1"}, hist["active_sessions"])
	assert.Equal(t, "Conversation history for session s1", hist["message"])
	entry := hist["history"].([]any)[0].(map[string]any)
	assert.Equal(t, "can you help me", entry["user"])
	assert.Equal(t, "Happy to help!", entry["assistant"])
}

func TestConversationRespond_EmotionalFlow(t *testing.T) {
	synth := &fakeSynth{}
	ts := newTestServer(t, synth, &fakeChat{content: "That is wonderful news!"}, nil)

	resp := ts.do(t, http.MethodPost, "/conversation/respond_emotional", `{"text":"I am so happy today"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "emotional", body["mode"])
	assert.Equal(t, handlers.EmotionalVoice, body["voice_used"])
	assert.Equal(t, "fp16", body["precision_used"])

	ea := body["emotional_analysis"].(map[string]any)
	assert.Equal(t, "joyful", ea["detected_emotion"])
	assert.Equal(t, "warm", ea["voice_tone"])
	assert.InDelta(t, 0.3, ea["emotion_intensity"], 1e-9)
	assert.InDelta(t, 0.7, ea["confidence"], 1e-9)
	assert.NotEmpty(t, ea["response_style"])
	assert.NotEmpty(t, ea["conversation_approach"])

	call := synth.last(t)
	assert.Equal(t, tts.Options{EmotionMode: "warm", AddTags: true}, call.opts)
	assert.Equal(t, handlers.EmotionalVoice, call.profile.ID)
}

func TestConversationRespond_UnknownVoiceFallsBackToModeDefault(t *testing.T) {
	synth := &fakeSynth{}
	ts := newTestServer(t, synth, &fakeChat{content: "ok"}, nil)

	resp := ts.do(t, http.MethodPost, "/conversation/respond_emotional", `{"text":"hello","voice":"bogus"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, handlers.EmotionalVoice, decode(t, resp)["voice_used"])
}

func TestConversationRespond_CannedReplyWithoutChatBackend(t *testing.T) {
	synth := &fakeSynth{}
	ts := newTestServer(t, synth, &fakeChat{}, nil)

	resp := ts.do(t, http.MethodPost, "/conversation/respond", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, conversation.ReplyFastNoBackend, body["ai_response"])
	assert.Equal(t, true, body["metrics"].(map[string]any)["canned_reply"])
}

func TestConversationRespond_SynthesisFailureStillReturnsReply(t *testing.T) {
	synth := &fakeSynth{err: &tts.SynthesisError{Err: errors.New("orpheus: status 400: bad prompt")}}
	ts := newTestServer(t, synth, &fakeChat{content: "Here you go."}, nil)

	resp := ts.do(t, http.MethodPost, "/conversation/respond", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Here you go.", body["ai_response"])
	assert.Equal(t, "fast", body["mode"])
	assert.Equal(t, false, body["fallback_used"])
	assert.Contains(t, body["error"], "bad prompt")
}

func TestConversationRespond_NoText(t *testing.T) {
	ts := newTestServer(t, &fakeSynth{}, &fakeChat{content: "x"}, nil)

	for _, path := range []string{"/conversation/respond", "/conversation/respond_emotional"} {
		resp := ts.do(t, http.MethodPost, path, `{"text":""}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "No text provided", decode(t, resp)["error"])
	}
}

func TestConversationClear(t *testing.T) {
	ts := newTestServer(t, &fakeSynth{}, &fakeChat{content: "hi"}, nil)

	ts.do(t, http.MethodPost, "/conversation/respond", `{"text":"hello"}`)
	require.Len(t, ts.conv.History(conversation.DefaultSession), 1)

	resp := ts.do(t, http.MethodPost, "/conversation/clear", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "default", body["session_id"])
	assert.Equal(t, "Conversation history cleared for session default", body["message"])
	assert.Empty(t, ts.conv.History(conversation.DefaultSession))

	resp = ts.do(t, http.MethodPost, "/conversation/clear", `{"session_id":"never-seen"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "never-seen", decode(t, resp)["session_id"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeSynth{}, &fakeChat{content: "hi"}, nil)

	resp := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)

	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "loaded", body["model_status"])
	assert.EqualValues(t, 8, body["max_concurrent_streams"])
	assert.Contains(t, body["available_voices"], "orpheus_leah")
	assert.Equal(t, true, body["features"].(map[string]any)["performance_optimization"])

	status := body["api_status"].(map[string]any)
	assert.Equal(t, true, status["openai_configured"])
	assert.Equal(t, "ACTIVE", status["deployment_status"])
	assert.Equal(t, true, status["model_available"])
	assert.Equal(t, false, status["cache_enabled"])
	assert.EqualValues(t, 0, status["total_conversations"])
}

func TestHealth_ReportsUnreachableCache(t *testing.T) {
	ts := newTestServer(t, &fakeSynth{}, &fakeChat{}, func(d *api.Deps) {
		d.Cache = failingPinger{}
	})

	body := decode(t, ts.do(t, http.MethodGet, "/health", ""))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, true, body["api_status"].(map[string]any)["cache_enabled"])
	assert.Contains(t, body["checks"].(map[string]any)["redis"], "unhealthy")
}

func TestVoicesAndMetrics(t *testing.T) {
	ts := newTestServer(t, &fakeSynth{}, &fakeChat{}, nil)

	body := decode(t, ts.do(t, http.MethodGet, "/voices", ""))
	voices := body["voices"].(map[string]any)
	assert.Len(t, voices, int(body["count"].(float64)))
	leah := voices["orpheus_leah"].(map[string]any)
	assert.Equal(t, "1-3s", leah["performance_profile"].(map[string]any)["target_latency"])
	info := body["performance_info"].(map[string]any)
	assert.EqualValues(t, 83, info["target_tokens_per_sec"])
	assert.EqualValues(t, 4096, info["chunk_size"])

	body = decode(t, ts.do(t, http.MethodGet, "/metrics", ""))
	target := body["target_metrics"].(map[string]any)
	assert.InDelta(t, 3.0, target["max_generation_time"], 1e-9)
	assert.InDelta(t, 0.95, target["stream_success_rate"], 1e-9)
	stats := body["conversation_stats"].(map[string]any)
	assert.EqualValues(t, 0, stats["active_sessions"])

	resp := ts.do(t, http.MethodGet, "/metrics/prometheus", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, &fakeSynth{}, &fakeChat{}, func(d *api.Deps) {
		d.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 2}
	})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", "").StatusCode)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", "").StatusCode)

	resp := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.EqualValues(t, 429, decode(t, resp)["status_code"])

	// Preflight is never limited.
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodOptions, "/healthz", "").StatusCode)
}
