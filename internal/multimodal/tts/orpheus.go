package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultModelID is the Baseten model serving Orpheus.
const DefaultModelID = "yqv0epjw"

// EndpointForModel returns the production predict URL of a Baseten model.
func EndpointForModel(modelID string) string {
	if modelID == "" {
		modelID = DefaultModelID
	}
	return fmt.Sprintf("https://model-%s.api.baseten.co/environments/production/predict", modelID)
}

// OrpheusConfig holds configuration for the Orpheus deployment.
type OrpheusConfig struct {
	APIKey   string
	Endpoint string        // default: EndpointForModel(DefaultModelID)
	Timeout  time.Duration // default: 45s
}

// Orpheus synthesizes speech on a Baseten-hosted Orpheus model. The
// deployment returns raw 16-bit PCM, which is framed as WAV.
type Orpheus struct {
	cfg        OrpheusConfig
	httpClient *http.Client
}

func NewOrpheus(cfg OrpheusConfig) *Orpheus {
	if cfg.Endpoint == "" {
		cfg.Endpoint = EndpointForModel(DefaultModelID)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Orpheus{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (o *Orpheus) Name() string { return "orpheus" }

type orpheusRequest struct {
	Voice             string  `json:"voice"`
	Prompt            string  `json:"prompt"`
	MaxTokens         int     `json:"max_tokens"`
	Temperature       float64 `json:"temperature"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

func (o *Orpheus) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	data, err := json.Marshal(orpheusRequest{
		Voice:             req.Voice,
		Prompt:            req.Text,
		MaxTokens:         req.MaxTokens,
		Temperature:       req.Temperature,
		RepetitionPenalty: req.RepetitionPenalty,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Api-Key "+o.cfg.APIKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(o.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(o.Name(), fmt.Errorf("read audio: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(o.Name(), resp.StatusCode, body)
	}

	return &SynthesisResult{
		Audio:       WrapPCM(body),
		ContentType: "audio/wav",
		PCMBytes:    len(body),
	}, nil
}
