// Package llm provides completion provider interfaces and implementations.
package llm

import (
	"context"
)

// StreamCallback is called for each token as it arrives. Returning an error
// cancels the stream; the provider call is abandoned and no further tokens
// are delivered.
type StreamCallback func(token string, index int) error

// ChatMessage is one turn as sent to the provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a completion request. System, when set, is prepended
// as the provider's system instruction.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// CompletionResponse is the accumulated result of a completion.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for completion providers.
type Client interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream streams a completion, invoking callback per token, and
	// returns the accumulated response once the stream finishes.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of completion provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a client for the named provider. baseURL is honored by
// OpenAI-compatible endpoints (Groq, local gateways) and ignored otherwise.
func NewClient(provider Provider, apiKey, baseURL string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	default:
		return NewOpenAIClient(apiKey, baseURL)
	}
}
