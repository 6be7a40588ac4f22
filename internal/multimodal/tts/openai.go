package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISpeechConfig holds configuration for the OpenAI speech backend.
type OpenAISpeechConfig struct {
	APIKey  string
	BaseURL string        // default: the go-openai default
	Model   string        // default: "tts-1"
	Timeout time.Duration // default: 60s
}

// OpenAISpeech synthesizes MP3 speech with the OpenAI audio API.
type OpenAISpeech struct {
	client *openai.Client
	model  openai.SpeechModel
}

func NewOpenAISpeech(cfg OpenAISpeechConfig) *OpenAISpeech {
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAISpeech{
		client: openai.NewClientWithConfig(oc),
		model:  openai.SpeechModel(cfg.Model),
	}
}

func (o *OpenAISpeech) Name() string { return "openai" }

func (o *OpenAISpeech) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	voice := req.Voice
	if voice == "" {
		voice = string(openai.VoiceNova)
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, o.wrapError(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, transportError(o.Name(), fmt.Errorf("read audio: %w", err))
	}

	return &SynthesisResult{
		Audio:       audio,
		ContentType: "audio/mpeg",
	}, nil
}

func (o *OpenAISpeech) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &BackendError{Backend: o.Name(), Kind: KindHTTP, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &BackendError{Backend: o.Name(), Kind: KindHTTP, StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body), Err: err}
	}
	return transportError(o.Name(), err)
}

var fallbackVoices = map[string]string{
	"leah": "nova",
	"jess": "shimmer",
	"dan":  "onyx",
	"zac":  "fable",
	"zoe":  "nova",
	"tara": "alloy",
	"leo":  "echo",
	"mia":  "shimmer",
}

// FallbackVoice maps an Orpheus base voice to the closest OpenAI voice.
func FallbackVoice(orpheusVoice string) string {
	if v, ok := fallbackVoices[orpheusVoice]; ok {
		return v
	}
	return string(openai.VoiceNova)
}
