package llm

import (
	"context"
	"time"
)

// timeoutClient bounds every call on the wrapped client. A hung provider
// surfaces as a context deadline error instead of blocking the pipeline.
type timeoutClient struct {
	inner   LLMClient
	timeout time.Duration
}

// WithTimeout wraps a client so each call carries its own deadline.
// A non-positive timeout returns the client unchanged.
func WithTimeout(inner LLMClient, timeout time.Duration) LLMClient {
	if timeout <= 0 {
		return inner
	}
	return &timeoutClient{inner: inner, timeout: timeout}
}

var _ LLMClient = (*timeoutClient)(nil)

func (c *timeoutClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.inner.GenerateResponse(ctx, prompt, systemMessage, temperature)
}

func (c *timeoutClient) GenerateJSON(ctx context.Context, prompt string, contextJSON string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.inner.GenerateJSON(ctx, prompt, contextJSON)
}

func (c *timeoutClient) GetModel() string {
	return c.inner.GetModel()
}
