package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nikhilbhutani/orpheusvoice/internal/enhance"
	"github.com/nikhilbhutani/orpheusvoice/internal/voice"
)

// AudioCache stores synthesized audio by key. A Get for a missing key
// returns an error.
type AudioCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type cachedAudio struct {
	Audio         []byte          `json:"audio"`
	ContentType   string          `json:"content_type"`
	Duration      float64         `json:"duration"`
	Backend       string          `json:"backend"`
	FallbackUsed  bool            `json:"fallback_used"`
	FallbackVoice string          `json:"fallback_voice,omitempty"`
	Temperature   float64         `json:"temperature"`
	MaxTokens     int             `json:"max_tokens"`
	EmotionMode   string          `json:"emotion_mode"`
	Precision     voice.Precision `json:"precision"`
	WordCount     int             `json:"word_count"`
}

// CachedInvoker serves repeated syntheses from an AudioCache and coalesces
// concurrent misses for the same key.
type CachedInvoker struct {
	next  Synthesizer
	cache AudioCache
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedInvoker(next Synthesizer, cache AudioCache, ttl time.Duration) *CachedInvoker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedInvoker{next: next, cache: cache, ttl: ttl}
}

// CacheKey identifies the audio produced for text under profile and opts.
func CacheKey(text string, profile voice.Profile, opts Options) string {
	mode := opts.EmotionMode
	if mode == "" {
		mode = voice.ModeNatural
	}
	h := sha256.Sum256([]byte(strings.Join([]string{
		profile.ID,
		profile.Voice,
		string(profile.Precision),
		mode,
		strconv.FormatBool(opts.AddTags),
		enhance.Normalize(text),
	}, "|")))
	return "tts:" + hex.EncodeToString(h[:])
}

func (c *CachedInvoker) Synthesize(ctx context.Context, text string, profile voice.Profile, opts Options) (*Result, error) {
	key := CacheKey(text, profile, opts)

	var hit cachedAudio
	if err := c.cache.Get(ctx, key, &hit); err == nil {
		return &Result{
			GenerationID:  uuid.NewString(),
			Audio:         hit.Audio,
			ContentType:   hit.ContentType,
			Duration:      hit.Duration,
			Backend:       hit.Backend,
			FallbackUsed:  hit.FallbackUsed,
			FallbackVoice: hit.FallbackVoice,
			Temperature:   hit.Temperature,
			MaxTokens:     hit.MaxTokens,
			EmotionMode:   hit.EmotionMode,
			Precision:     hit.Precision,
			WordCount:     hit.WordCount,
			Cached:        true,
		}, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := c.next.Synthesize(ctx, text, profile, opts)
		if err != nil {
			return nil, err
		}
		entry := cachedAudio{
			Audio:         res.Audio,
			ContentType:   res.ContentType,
			Duration:      res.Duration,
			Backend:       res.Backend,
			FallbackUsed:  res.FallbackUsed,
			FallbackVoice: res.FallbackVoice,
			Temperature:   res.Temperature,
			MaxTokens:     res.MaxTokens,
			EmotionMode:   res.EmotionMode,
			Precision:     res.Precision,
			WordCount:     res.WordCount,
		}
		if err := c.cache.Set(ctx, key, entry, c.ttl); err != nil {
			slog.Warn("audio cache write failed", "key", key, "error", err)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	r := *v.(*Result)
	return &r, nil
}
