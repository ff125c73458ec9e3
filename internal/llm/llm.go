// Package llm connects the question-answering engine to hosted and local
// language models.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Providers understood by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderDMR       = "dmr" // Docker Model Runner over a unix socket
)

// Client is a language model that completes a single prompt.
// Complete returns an empty string with a nil error when the model answered
// without any text content.
type Client interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string        // optional endpoint override
	SocketPath string        // dmr only
	Timeout    time.Duration // per request, 0 keeps the transport default
}

// New creates the client for config.Provider.
func New(config Config) (Client, error) {
	switch config.Provider {
	case ProviderAnthropic, "":
		return NewAnthropic(config)
	case ProviderOpenAI:
		return NewOpenAI(config)
	case ProviderDMR:
		return NewDMR(config)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}
}
