package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/passageway/passageway/embedding"
)

func TestNewEmbedder(t *testing.T) {
	assert := assert.New(t)

	_, err := NewEmbedder(Config{Model: "text-embedding-3-small"})
	assert.ErrorIs(err, ErrAPIKeyRequired)

	_, err = NewEmbedder(Config{APIKey: "sk-test"})
	assert.ErrorIs(err, ErrModelRequired)

	e, err := NewEmbedder(Config{APIKey: "sk-test", Model: "text-embedding-3-small"})
	assert.NoError(err)
	assert.Equal(DefaultBaseURL, e.baseURL)
	assert.Equal("text-embedding-3-small", e.Model())
}

func TestEmbed(t *testing.T) {
	assert := assert.New(t)

	var (
		gotAuth  string
		gotModel string
		gotInput []string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req embeddingRequest
		assert.NoError(json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		gotInput = req.Input

		// Out-of-order data entries exercise index reassembly.
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{
				{Index: 1, Embedding: []float32{0.4, 0.5}},
				{Index: 0, Embedding: []float32{0.1, 0.2}},
			},
		})
	}))
	defer server.Close()

	e, err := NewEmbedder(Config{
		APIKey:  "sk-test",
		Model:   "text-embedding-3-small",
		BaseURL: server.URL,
	})
	assert.NoError(err)

	embeddings, err := e.Embed(context.Background(), []string{"first", "second"})
	assert.NoError(err)

	assert.Equal("Bearer sk-test", gotAuth)
	assert.Equal("text-embedding-3-small", gotModel)
	assert.Equal([]string{"first", "second"}, gotInput)

	assert.Equal([][]float32{
		{0.1, 0.2},
		{0.4, 0.5},
	}, embeddings)
}

func TestEmbedErrors(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, embedding.ErrRateLimited},
		{"unavailable", http.StatusServiceUnavailable, embedding.ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, embedding.ErrUnavailable},
		{"bad request", http.StatusBadRequest, embedding.ErrAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			e, err := NewEmbedder(Config{
				APIKey:  "sk-test",
				Model:   "text-embedding-3-small",
				BaseURL: server.URL,
			})
			assert.NoError(err)

			_, err = e.Embed(context.Background(), []string{"query"})
			assert.ErrorIs(err, tt.want)
		})
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{
				{Index: 0, Embedding: []float32{0.1}},
			},
		})
	}))
	defer server.Close()

	e, err := NewEmbedder(Config{
		APIKey:  "sk-test",
		Model:   "text-embedding-3-small",
		BaseURL: server.URL,
	})
	assert.NoError(err)

	_, err = e.Embed(context.Background(), []string{"first", "second"})
	assert.ErrorIs(err, embedding.ErrAPI)
}

func TestEmbedAPIErrorBody(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{
			Error: &apiError{Message: "model is overloaded", Type: "server_error"},
		})
	}))
	defer server.Close()

	e, err := NewEmbedder(Config{
		APIKey:  "sk-test",
		Model:   "text-embedding-3-small",
		BaseURL: server.URL,
	})
	assert.NoError(err)

	_, err = e.Embed(context.Background(), []string{"query"})
	assert.ErrorIs(err, embedding.ErrAPI)
	assert.Contains(err.Error(), "model is overloaded")
}

func TestEmbedEmptyBatch(t *testing.T) {
	assert := assert.New(t)

	e, err := NewEmbedder(Config{APIKey: "sk-test", Model: "text-embedding-3-small"})
	assert.NoError(err)

	embeddings, err := e.Embed(context.Background(), nil)
	assert.NoError(err)
	assert.Nil(embeddings)
}
