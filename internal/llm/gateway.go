package llm

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/orpheusvoice/internal/config"
)

// Gateway routes chat requests to a named provider. Calls are never
// retried; callers decide how to degrade.
type Gateway struct {
	providers       map[string]Provider
	defaultProvider string
}

// NewGateway registers every provider whose credentials are present.
func NewGateway(openaiCfg config.OpenAIConfig, chat config.ChatConfig) *Gateway {
	g := &Gateway{
		providers:       make(map[string]Provider),
		defaultProvider: chat.Provider,
	}

	if openaiCfg.APIKey != "" {
		g.Register(NewOpenAIProvider(openaiCfg.APIKey, openaiCfg.BaseURL))
	}
	if chat.AnthropicKey != "" {
		g.Register(NewAnthropicProvider(chat.AnthropicKey, chat.AnthropicBaseURL))
	}
	if chat.OllamaURL != "" {
		g.Register(NewOllamaProvider(chat.OllamaURL))
	}
	return g
}

// NewGatewayWithProviders builds a gateway over already constructed providers.
func NewGatewayWithProviders(defaultProvider string, providers ...Provider) *Gateway {
	g := &Gateway{providers: make(map[string]Provider), defaultProvider: defaultProvider}
	for _, p := range providers {
		g.Register(p)
	}
	return g
}

func (g *Gateway) Register(p Provider) {
	g.providers[p.Name()] = p
}

func (g *Gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotConfigured, name)
	}
	return p, nil
}

// DefaultProvider returns the name used when a request names none.
func (g *Gateway) DefaultProvider() string { return g.defaultProvider }

// Available reports whether the default provider is configured.
func (g *Gateway) Available() bool {
	_, ok := g.providers[g.defaultProvider]
	return ok
}

func (g *Gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	name := req.Provider
	if name == "" {
		name = g.defaultProvider
	}
	p, err := g.Provider(name)
	if err != nil {
		return nil, err
	}
	return p.ChatCompletion(ctx, req)
}
