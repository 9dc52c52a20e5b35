package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/config"
)

// NewFromConfig creates the LLM client selected by configuration.
// The returned client is shared across roles and safe for concurrent use.
func NewFromConfig(cfg *config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	clientCfg := &Config{
		Endpoint:    cfg.Endpoint,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: cfg.Temperature,
	}

	var (
		client LLMClient
		err    error
	)
	switch cfg.Provider {
	case "anthropic":
		client, err = NewAnthropicClient(clientCfg, logger)
	case "openai":
		client, err = NewClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(client, cfg.Timeout()), nil
}
