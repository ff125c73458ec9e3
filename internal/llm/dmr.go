package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

const (
	dmrChatURL       = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1/chat/completions"
	dmrEmbeddingsURL = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1/embeddings"
)

// MaxEmbeddingChars limits embedding input to the model context window.
const MaxEmbeddingChars = 20000

// DMR wraps the Docker Model Runner chat completions and embeddings APIs.
type DMR struct {
	httpClient *http.Client
	model      string
}

// NewDMR creates a Docker Model Runner client.
func NewDMR(config Config) (*DMR, error) {
	if config.SocketPath == "" {
		return nil, fmt.Errorf("socket path is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	socketPath := config.SocketPath
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}

	return &DMR{
		httpClient: &http.Client{Transport: transport, Timeout: config.Timeout},
		model:      config.Model,
	}, nil
}

// Name returns the provider and model.
func (c *DMR) Name() string {
	return ProviderDMR + "/" + c.model
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

// Complete sends a prompt with a token limit on the response.
// If maxTokens is 0, no limit is applied.
func (c *DMR) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	}

	var chatResp chatResponse
	if err := c.post(ctx, dmrChatURL, req, &chatResp); err != nil {
		return "", err
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// Embed generates an embedding vector for text.
// Text exceeding MaxEmbeddingChars is truncated from the end.
func (c *DMR) Embed(ctx context.Context, text string) ([]float32, error) {
	originalLen := len(text)
	if len(text) > MaxEmbeddingChars {
		text = text[:MaxEmbeddingChars]
	}
	slog.Debug("generating embedding", "original_len", originalLen, "truncated_len", len(text))

	var embResp embeddingResponse
	if err := c.post(ctx, dmrEmbeddingsURL, embeddingRequest{Model: c.model, Input: text}, &embResp); err != nil {
		return nil, err
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return embResp.Data[0].Embedding, nil
}

func (c *DMR) post(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// EmbeddingDimensions returns the expected embedding dimensions for common models.
func EmbeddingDimensions(model string) int {
	switch model {
	case "ai/embeddinggemma":
		return 768
	case "ai/snowflake-arctic-embed":
		return 1024
	case "ai/qwen3-embedding":
		return 2560
	default:
		return 768
	}
}
