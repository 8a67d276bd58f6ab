// Package embedding defines the query embedding contract shared by the
// remote and local providers, plus a caching decorator.
package embedding

import (
	"context"
	"errors"

	"github.com/passageway/passageway/cache"
)

var (
	ErrNoSource           = errors.New("no embedding source configured")
	ErrRateLimited        = errors.New("embedding request rate limited")
	ErrUnavailable        = errors.New("embedding service unavailable")
	ErrAPI                = errors.New("embedding request failed")
	ErrRuntimeUnavailable = errors.New("local model runtime unavailable")
	ErrModelNotFound      = errors.New("local model not found")
)

// Embedder turns a batch of queries into one embedding per query, in
// input order.
type Embedder interface {
	Embed(ctx context.Context, queries []string) ([][]float32, error)
	Model() string
	Close() error
}

type Config struct {
	APIKey     string       `yaml:"apiKey"`
	Model      string       `yaml:"model"`
	BaseURL    string       `yaml:"baseURL"`
	LocalModel string       `yaml:"localModel"`
	RuntimeURL string       `yaml:"runtimeURL"`
	Cache      cache.Config `yaml:"cache"`
}
