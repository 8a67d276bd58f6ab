// Package ollama embeds queries with a model served by a local Ollama
// runtime. The constructor verifies the runtime is reachable and the
// model is present, so misconfiguration surfaces at startup rather than
// on the first query.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/passageway/passageway/embedding"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "nomic-embed-text"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

type Config struct {
	Model   string
	BaseURL string
}

type Embedder struct {
	baseURL string
	model   string
	client  *http.Client
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type showRequest struct {
	Model string `json:"model"`
}

func NewEmbedder(ctx context.Context, cfg Config) (*Embedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	e := &Embedder{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}

	if err := e.checkRuntime(ctx); err != nil {
		return nil, err
	}

	if err := e.checkModel(ctx); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Embedder) checkRuntime(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", embedding.ErrRuntimeUnavailable, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", embedding.ErrRuntimeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: runtime returned status %d", embedding.ErrRuntimeUnavailable, resp.StatusCode)
	}

	return nil
}

func (e *Embedder) checkModel(ctx context.Context) error {
	data, err := json.Marshal(showRequest{Model: e.model})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/show", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", embedding.ErrRuntimeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", embedding.ErrModelNotFound, e.model)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: runtime returned status %d: %s", embedding.ErrRuntimeUnavailable, resp.StatusCode, body)
	}

	return nil
}

// Embed requests one embedding per query. The runtime's batch endpoint
// returns a single matrix per call, so queries go out one at a time.
func (e *Embedder) Embed(ctx context.Context, queries []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(queries))
	for _, query := range queries {
		vec, err := e.embed(ctx, query)
		if err != nil {
			return nil, err
		}

		embeddings = append(embeddings, vec)
	}

	return embeddings, nil
}

func (e *Embedder) embed(ctx context.Context, query string) ([]float32, error) {
	data, err := json.Marshal(embedRequest{
		Model: e.model,
		Input: query,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrRuntimeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: runtime returned status %d: %s", embedding.ErrAPI, resp.StatusCode, body)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embedding.ErrAPI, err)
	}

	if len(parsed.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", embedding.ErrAPI)
	}

	return parsed.Embeddings[0], nil
}

func (e *Embedder) Model() string {
	return e.model
}

func (e *Embedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

var _ embedding.Embedder = (*Embedder)(nil)
