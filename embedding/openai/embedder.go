// Package openai embeds queries through an OpenAI-compatible embeddings
// endpoint. Any service speaking the same wire format works by pointing
// BaseURL at it.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/passageway/passageway/embedding"
)

const DefaultBaseURL = "https://api.openai.com/v1"

var (
	ErrAPIKeyRequired = errors.New("api key is required")
	ErrModelRequired  = errors.New("model is required")
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

type Embedder struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}

	if cfg.Model == "" {
		return nil, ErrModelRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Embedder{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Embed sends the whole batch in one request and reorders the returned
// embeddings by their index field, which the API may permute.
func (e *Embedder) Embed(ctx context.Context, queries []string) ([][]float32, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(embeddingRequest{
		Input: queries,
		Model: e.model,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response (body: %s): %v", embedding.ErrAPI, preview(body), err)
	}

	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s", embedding.ErrAPI, parsed.Error.Message)
	}

	if len(parsed.Data) != len(queries) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", embedding.ErrAPI, len(queries), len(parsed.Data))
	}

	embeddings := make([][]float32, len(queries))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", embedding.ErrAPI, item.Index)
		}

		embeddings[item.Index] = item.Embedding
	}

	return embeddings, nil
}

func (e *Embedder) Model() string {
	return e.model
}

func (e *Embedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func statusError(status int, body []byte) error {
	var kind error
	switch status {
	case http.StatusTooManyRequests:
		kind = embedding.ErrRateLimited

	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		kind = embedding.ErrUnavailable

	default:
		kind = embedding.ErrAPI
	}

	return fmt.Errorf("%w: status %d: %s", kind, status, preview(body))
}

func preview(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}

	return string(body)
}

var _ embedding.Embedder = (*Embedder)(nil)
