// Package conversation produces assistant replies for a chat session. Every
// failure of the chat backend degrades to a canned reply, so Respond never
// fails.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/orpheusvoice/internal/emotion"
	"github.com/nikhilbhutani/orpheusvoice/internal/llm"
	"github.com/nikhilbhutani/orpheusvoice/internal/memory"
	"github.com/nikhilbhutani/orpheusvoice/internal/metrics"
)

type Mode string

const (
	ModeFast      Mode = "fast"
	ModeEmotional Mode = "emotional"
)

// DefaultSession is used when a request names no session.
const DefaultSession = "default"

// contextExchanges is how many prior exchanges the fast mode sends.
const contextExchanges = 3

const fastSystemPrompt = "You are a helpful, friendly AI assistant. Keep responses concise and natural. Respond in 1-2 sentences when possible."

// Canned replies used when the chat backend cannot answer.
const (
	ReplyFastNoBackend  = "I'm here to help! What can I do for you?"
	ReplyFastTimeout    = "I'm thinking as fast as I can! Could you try again?"
	ReplyFastUpstream   = "I'm here to help! What would you like to know?"
	ReplyEmotionalNoKey = "I understand your feelings. I'm here to help you with whatever you need."
	replyEmotionalHTTP  = "I understand you're feeling %s. I'm here to help you with whatever you need."
)

// Chat is the subset of the llm gateway the manager needs.
type Chat interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
	Available() bool
	DefaultProvider() string
}

type Config struct {
	FastModel        string
	EmotionalModel   string
	FastTimeout      time.Duration
	EmotionalTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FastModel == "" {
		c.FastModel = "gpt-3.5-turbo"
	}
	if c.EmotionalModel == "" {
		c.EmotionalModel = "gpt-4"
	}
	if c.FastTimeout <= 0 {
		c.FastTimeout = 6 * time.Second
	}
	if c.EmotionalTimeout <= 0 {
		c.EmotionalTimeout = 15 * time.Second
	}
	return c
}

// Reply is the text produced for one user turn.
type Reply struct {
	Text    string
	Mode    Mode
	Canned  bool
	Elapsed time.Duration
	// Emotion is set in emotional mode.
	Emotion *emotion.Assessment
}

type Manager struct {
	chat    Chat
	store   *memory.Store
	tracker *emotion.Tracker
	inst    *metrics.Instruments
	cfg     Config
}

func NewManager(chat Chat, store *memory.Store, tracker *emotion.Tracker, inst *metrics.Instruments, cfg Config) *Manager {
	if store == nil {
		store = memory.NewStore(memory.DefaultMaxExchanges)
	}
	if tracker == nil {
		tracker = emotion.NewTracker()
	}
	if inst == nil {
		inst = metrics.Noop()
	}
	return &Manager{chat: chat, store: store, tracker: tracker, inst: inst, cfg: cfg.withDefaults()}
}

// Respond answers userText within sessionID. Backend calls are bounded by
// the mode's timeout and are not cut short when ctx is canceled.
func (m *Manager) Respond(ctx context.Context, sessionID, userText string, mode Mode) Reply {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	start := time.Now()

	var r Reply
	if mode == ModeEmotional {
		r = m.respondEmotional(ctx, sessionID, userText)
	} else {
		r = m.respondFast(ctx, sessionID, userText)
	}
	r.Elapsed = time.Since(start)
	return r
}

func (m *Manager) respondFast(ctx context.Context, sessionID, userText string) Reply {
	if m.chat == nil || !m.chat.Available() {
		return Reply{Text: ReplyFastNoBackend, Mode: ModeFast, Canned: true}
	}

	msgs := []llm.Message{{Role: "system", Content: fastSystemPrompt}}
	for _, ex := range m.store.Recent(sessionID, contextExchanges) {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: ex.User},
			llm.Message{Role: "assistant", Content: ex.Assistant},
		)
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userText})

	text, err := m.complete(ctx, ModeFast, m.cfg.FastTimeout, llm.ChatRequest{
		Model:       m.cfg.FastModel,
		Messages:    msgs,
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		canned := ReplyFastNoBackend
		switch {
		case llm.IsTimeout(err):
			canned = ReplyFastTimeout
		case llm.IsStatus(err):
			canned = ReplyFastUpstream
		}
		return Reply{Text: canned, Mode: ModeFast, Canned: true}
	}

	m.store.Append(sessionID, memory.Exchange{User: userText, Assistant: text})
	return Reply{Text: text, Mode: ModeFast}
}

func (m *Manager) respondEmotional(ctx context.Context, sessionID, userText string) Reply {
	assessment := m.tracker.Assess(sessionID, userText)
	reply := Reply{Mode: ModeEmotional, Emotion: &assessment}

	if m.chat == nil || !m.chat.Available() {
		reply.Text, reply.Canned = ReplyEmotionalNoKey, true
		return reply
	}

	text, err := m.complete(ctx, ModeEmotional, m.cfg.EmotionalTimeout, llm.ChatRequest{
		Model: m.cfg.EmotionalModel,
		Messages: []llm.Message{
			{Role: "system", Content: emotionalPrompt(assessment)},
			{Role: "user", Content: userText},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if err != nil {
		reply.Canned = true
		if llm.IsStatus(err) {
			reply.Text = fmt.Sprintf(replyEmotionalHTTP, assessment.DetectedEmotion)
		} else {
			reply.Text = ReplyEmotionalNoKey
		}
		return reply
	}

	m.store.Append(sessionID, memory.Exchange{
		User:      userText,
		Assistant: text,
		Emotion:   string(assessment.DetectedEmotion),
	})
	reply.Text = text
	return reply
}

func (m *Manager) complete(ctx context.Context, mode Mode, timeout time.Duration, req llm.ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	resp, err := m.chat.Chat(ctx, req)
	elapsed := time.Since(start)
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		m.inst.RecordChat(ctx, m.chat.DefaultProvider(), string(mode), "error", elapsed)
		slog.Warn("chat completion failed, using canned reply",
			"mode", string(mode),
			"model", req.Model,
			"timeout", llm.IsTimeout(err),
			"error", err,
		)
		return "", err
	}

	m.inst.RecordChat(ctx, resp.Provider, string(mode), "ok", elapsed)
	slog.Debug("chat completion",
		"mode", string(mode),
		"model", resp.Model,
		"tokens", resp.TotalTokens,
		"cost_usd", resp.CostUSD,
		"elapsed", elapsed,
	)
	return strings.TrimSpace(resp.Content), nil
}

func emotionalPrompt(a emotion.Assessment) string {
	return fmt.Sprintf(`You are an emotionally intelligent AI assistant. Based on analysis of the user's message:

DETECTED EMOTION: %s (intensity: %.2f)
EMOTIONAL CONTEXT: %s

RESPONSE GUIDELINES:
- Style: %s
- Approach: %s
- Voice should be: %s

Respond to the user's message with appropriate emotional intelligence. Match their emotional state appropriately - don't ignore their feelings, but help guide them toward a positive resolution if needed.

Keep your response conversational, empathetic, and under 150 words.`,
		a.DetectedEmotion, a.EmotionIntensity, a.EmotionalSubtext,
		a.ResponseStyle, a.ConversationApproach, a.VoiceTone)
}

func (m *Manager) History(sessionID string) []memory.Exchange {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	return m.store.History(sessionID)
}

// Clear drops a session's history. Clearing an unknown session is a no-op.
func (m *Manager) Clear(sessionID string) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	m.store.Clear(sessionID)
}

func (m *Manager) Stats() memory.Stats { return m.store.Stats() }

func (m *Manager) SessionIDs() []string { return m.store.SessionIDs() }

// ChatAvailable reports whether replies come from a model rather than the
// canned fallbacks.
func (m *Manager) ChatAvailable() bool { return m.chat != nil && m.chat.Available() }
