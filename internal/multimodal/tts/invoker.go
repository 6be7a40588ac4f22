package tts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/orpheusvoice/internal/enhance"
	"github.com/nikhilbhutani/orpheusvoice/internal/metrics"
	"github.com/nikhilbhutani/orpheusvoice/internal/voice"
)

const (
	repetitionPenalty   = 1.1
	fallbackTemperature = 0.7
	// Seconds of speech assumed per word for compressed fallback audio.
	fallbackSecondsPerWord = 0.6
)

// Options tune one synthesis call.
type Options struct {
	EmotionMode string
	AddTags     bool
}

// Result is the outcome of a successful synthesis.
type Result struct {
	GenerationID  string
	Audio         []byte
	ContentType   string
	Duration      float64 // seconds
	Elapsed       time.Duration
	Backend       string
	FallbackUsed  bool
	FallbackVoice string
	Temperature   float64
	MaxTokens     int
	EmotionMode   string
	Precision     voice.Precision
	WordCount     int
	Cached        bool
}

// Synthesizer is implemented by Invoker and its caching decorator.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, profile voice.Profile, opts Options) (*Result, error)
}

// Invoker runs the primary backend and falls back to the secondary on
// transport-level or deployment failures.
type Invoker struct {
	primary   Provider
	secondary Provider
	perf      *metrics.Performance
	inst      *metrics.Instruments
	status    DeploymentStatus
}

// NewInvoker creates an Invoker. secondary may be nil, in which case
// fallback-eligible failures are returned as errors.
func NewInvoker(primary, secondary Provider, perf *metrics.Performance, inst *metrics.Instruments) *Invoker {
	if perf == nil {
		perf = metrics.NewPerformance()
	}
	if inst == nil {
		inst = metrics.Noop()
	}
	return &Invoker{primary: primary, secondary: secondary, perf: perf, inst: inst}
}

func (i *Invoker) Status() *DeploymentStatus { return &i.status }

// SecondaryConfigured reports whether a fallback backend is wired.
func (i *Invoker) SecondaryConfigured() bool { return i.secondary != nil }

// TokenBudget returns the max_tokens requested for a text of words words.
func TokenBudget(words int, profile voice.Profile) int {
	perWord := 12
	if profile.Precision == voice.PrecisionQuality {
		perWord = 15
	}
	floor := 800
	if words > 30 {
		floor = 1200
	}
	return min(max(floor, words*perWord), profile.MaxTokens)
}

func (i *Invoker) Synthesize(ctx context.Context, text string, profile voice.Profile, opts Options) (*Result, error) {
	start := time.Now()
	end := i.perf.BeginStream()
	i.inst.ActiveStreams.Add(ctx, 1)
	defer func() {
		end()
		i.inst.ActiveStreams.Add(ctx, -1)
	}()

	mode := opts.EmotionMode
	if mode == "" {
		mode = voice.ModeNatural
	}
	words := len(strings.Fields(text))
	maxTokens := TokenBudget(words, profile)
	temperature := profile.Temperature(mode)

	res, err := i.primary.Synthesize(ctx, SynthesisRequest{
		Text:              enhance.Enhance(text, profile, mode, opts.AddTags),
		Voice:             profile.Voice,
		MaxTokens:         maxTokens,
		Temperature:       temperature,
		RepetitionPenalty: repetitionPenalty,
	})
	if err == nil {
		elapsed := time.Since(start)
		i.status.MarkActive()
		i.perf.RecordGeneration(elapsed, res.PCMBytes)
		i.inst.RecordTTS(ctx, i.primary.Name(), "ok", elapsed)

		slog.Info("speech generated",
			"voice", profile.ID,
			"backend", i.primary.Name(),
			"words", words,
			"elapsed", elapsed,
		)
		return &Result{
			GenerationID: uuid.NewString(),
			Audio:        res.Audio,
			ContentType:  res.ContentType,
			Duration:     PCMDuration(res.PCMBytes),
			Elapsed:      elapsed,
			Backend:      i.primary.Name(),
			Temperature:  temperature,
			MaxTokens:    maxTokens,
			EmotionMode:  mode,
			Precision:    profile.Precision,
			WordCount:    words,
		}, nil
	}

	i.inst.RecordTTS(ctx, i.primary.Name(), "error", time.Since(start))
	kind := KindOf(err)
	if !kind.Fallback() {
		slog.Error("primary tts failed", "voice", profile.ID, "error", err)
		return nil, &SynthesisError{Err: err}
	}
	if kind == KindInactive {
		i.status.MarkInactive()
	}

	slog.Warn("primary tts unavailable, falling back",
		"voice", profile.ID,
		"kind", string(kind),
		"error", err,
	)
	i.inst.RecordFallback(ctx, string(kind))
	return i.fallback(ctx, text, profile, mode, words, start)
}

func (i *Invoker) fallback(ctx context.Context, text string, profile voice.Profile, mode string, words int, start time.Time) (*Result, error) {
	if i.secondary == nil {
		return nil, &SynthesisError{FallbackUsed: true, Err: ErrSecondaryUnavailable}
	}

	fv := FallbackVoice(profile.Voice)
	res, err := i.secondary.Synthesize(ctx, SynthesisRequest{
		Text:  enhance.Normalize(text),
		Voice: fv,
	})
	if err != nil {
		i.inst.RecordTTS(ctx, i.secondary.Name(), "error", time.Since(start))
		slog.Error("fallback tts failed", "voice", profile.ID, "error", err)
		return nil, &SynthesisError{FallbackUsed: true, Err: err}
	}

	elapsed := time.Since(start)
	i.inst.RecordTTS(ctx, i.secondary.Name(), "ok", elapsed)
	return &Result{
		GenerationID:  uuid.NewString(),
		Audio:         res.Audio,
		ContentType:   res.ContentType,
		Duration:      float64(words) * fallbackSecondsPerWord,
		Elapsed:       elapsed,
		Backend:       i.secondary.Name(),
		FallbackUsed:  true,
		FallbackVoice: fv,
		Temperature:   fallbackTemperature,
		EmotionMode:   mode,
		Precision:     profile.Precision,
		WordCount:     words,
	}, nil
}

// FallbackUsed reports whether err came from a failed fallback attempt.
func FallbackUsed(err error) bool {
	var se *SynthesisError
	return errors.As(err, &se) && se.FallbackUsed
}
