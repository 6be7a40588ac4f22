// Package tts turns enhanced text into audio. The Orpheus deployment is the
// primary backend; OpenAI speech serves as the secondary when the primary is
// unreachable or not deployed.
package tts

import "context"

// SynthesisRequest holds the parameters sent to one backend.
type SynthesisRequest struct {
	Text              string
	Voice             string
	MaxTokens         int
	Temperature       float64
	RepetitionPenalty float64
}

// SynthesisResult holds the audio returned by one backend.
type SynthesisResult struct {
	Audio       []byte
	ContentType string // "audio/wav" (Orpheus) or "audio/mpeg" (OpenAI)
	// PCMBytes is the size of the raw sample data before container framing.
	// Zero for compressed formats.
	PCMBytes int
}

// Provider is the interface for text-to-speech backends.
type Provider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}
