package llm

import (
	"context"
)

// FakeClient is a scripted provider for tests. Tokens are streamed in order;
// FailAfter, when >= 0, aborts the stream with Err after that many tokens.
type FakeClient struct {
	Tokens    []string
	Err       error
	FailAfter int

	// LastRequest records the most recent request for assertions.
	LastRequest *CompletionRequest
}

var _ Client = (*FakeClient)(nil)

// NewFakeClient returns a client that streams the given tokens successfully.
func NewFakeClient(tokens ...string) *FakeClient {
	return &FakeClient{Tokens: tokens, FailAfter: -1}
}

func (c *FakeClient) Name() string { return "fake" }

func (c *FakeClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return c.CompleteStream(ctx, req, func(string, int) error { return nil })
}

func (c *FakeClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	c.LastRequest = req

	if c.Err != nil && c.FailAfter < 0 && len(c.Tokens) == 0 {
		return nil, c.Err
	}

	var content string
	for i, token := range c.Tokens {
		if c.Err != nil && c.FailAfter >= 0 && i == c.FailAfter {
			return nil, c.Err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := callback(token, i); err != nil {
			return nil, err
		}
		content += token
	}
	if c.Err != nil && c.FailAfter >= len(c.Tokens) {
		return nil, c.Err
	}

	return &CompletionResponse{
		Content:    content,
		Model:      req.Model,
		TokensOut:  len(c.Tokens),
		StopReason: "stop",
	}, nil
}
