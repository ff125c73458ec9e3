// Package qa answers questions about a document through a language model and
// grounds the answers in located citations.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mfenderov/citedoc/internal/citation"
	"github.com/mfenderov/citedoc/pkg/models"
)

const (
	// DefaultMaxTokens caps the length of a model response.
	DefaultMaxTokens = 4096

	// FallbackAnswer replaces a model response that carries no text.
	FallbackAnswer = "Unable to generate response"

	// FallbackSummary replaces a summary response that carries no text.
	FallbackSummary = "Unable to generate summary"
)

// Oracle is a language model: one prompt in, free text out.
// An empty string with a nil error means the model returned no text content.
type Oracle interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Config holds engine limits.
type Config struct {
	MaxDocumentChars int // document characters placed in a prompt
	MaxTokens        int // response token budget per call
}

// Result is a grounded answer.
type Result struct {
	Answer    string            `json:"answer"`
	Citations []models.Citation `json:"citations,omitempty"`
	Truncated bool              `json:"truncated"` // document was cut to fit the prompt
	Fallback  bool              `json:"fallback"`  // model returned no text
}

// HasCitations distinguishes an answer with located references from one
// without any.
func (r *Result) HasCitations() bool {
	return len(r.Citations) > 0
}

// Summary is a generated executive summary.
type Summary struct {
	Text      string `json:"summary"`
	Truncated bool   `json:"truncated"`
	Fallback  bool   `json:"fallback"`
}

// Engine builds prompts, calls the oracle once per request, and parses the
// response. It keeps no state between calls.
type Engine struct {
	oracle    Oracle
	maxChars  int
	maxTokens int
}

// New creates an engine. Zero limits fall back to the defaults.
func New(oracle Oracle, config Config) *Engine {
	if config.MaxDocumentChars == 0 {
		config.MaxDocumentChars = DefaultMaxDocumentChars
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	return &Engine{
		oracle:    oracle,
		maxChars:  config.MaxDocumentChars,
		maxTokens: config.MaxTokens,
	}
}

// Answer asks the oracle a question about documentText and extracts the
// citations from its response. A response without text yields
// FallbackAnswer and no citations rather than an error.
func (e *Engine) Answer(ctx context.Context, question, documentText string) (*Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required: %w", models.ErrInvalidInput)
	}
	if documentText == "" {
		return nil, fmt.Errorf("document text is required: %w", models.ErrInvalidInput)
	}

	prompt, truncated := QuestionPrompt(question, documentText, e.maxChars)
	if truncated {
		slog.Debug("document truncated for prompt", "chars", e.maxChars)
	}

	start := time.Now()
	text, err := e.oracle.Complete(ctx, prompt, e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrOracle, err)
	}
	slog.Debug("answer generated", "duration", time.Since(start), "chars", len(text))

	if text == "" {
		return &Result{Answer: FallbackAnswer, Truncated: truncated, Fallback: true}, nil
	}

	return &Result{
		Answer:    text,
		Citations: citation.Extract(text),
		Truncated: truncated,
	}, nil
}

// Summarize generates an executive summary of documentText.
func (e *Engine) Summarize(ctx context.Context, documentText string) (*Summary, error) {
	if documentText == "" {
		return nil, fmt.Errorf("document text is required: %w", models.ErrInvalidInput)
	}

	prompt, truncated := SummaryPrompt(documentText, e.maxChars)

	text, err := e.oracle.Complete(ctx, prompt, e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrOracle, err)
	}

	if text == "" {
		return &Summary{Text: FallbackSummary, Truncated: truncated, Fallback: true}, nil
	}
	return &Summary{Text: text, Truncated: truncated}, nil
}
