package passageway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/passageway/passageway/cache"
	"github.com/passageway/passageway/embedding"
	"github.com/passageway/passageway/embedding/ollama"
	"github.com/passageway/passageway/embedding/openai"
	"github.com/passageway/passageway/persistence/chromem"
	"github.com/passageway/passageway/persistence/myscale"
	"github.com/passageway/passageway/retriever"
)

var (
	ErrQueryRequired          = errors.New("query is required")
	ErrEmbedderRequired       = errors.New("embedder is required")
	ErrBackendRequired        = errors.New("backend is required")
	ErrUnsupportedBackendType = errors.New("unsupported backend type")
)

type Config struct {
	Retriever retriever.Config `yaml:"retriever"`
	Embedding embedding.Config `yaml:"embedding"`
}

func (cfg *Config) SetDefaults() {
	cfg.Retriever.SetDefaults()
}

// Passage is one retrieved row rendered as text.
type Passage struct {
	LongText string `json:"long_text"`
}

// Prediction is the retrieval result, passages ordered by ascending
// distance.
type Prediction struct {
	Passages []Passage `json:"passages"`
}

func NewPrediction(results []retriever.Result, columns []string) *Prediction {
	passages := make([]Passage, len(results))
	for i, result := range results {
		passages[i] = Passage{
			LongText: formatPassage(result.Values, columns),
		}
	}

	return &Prediction{
		Passages: passages,
	}
}

// formatPassage renders one row. A single metadata column passes its
// value through untouched; multiple columns become "column: value"
// lines in configured order.
func formatPassage(values map[string]any, columns []string) string {
	if len(columns) == 1 {
		return stringify(values[columns[0]])
	}

	lines := make([]string, len(columns))
	for i, column := range columns {
		lines[i] = column + ": " + stringify(values[column])
	}

	return strings.Join(lines, "\n")
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	default:
		return fmt.Sprint(value)
	}
}

// DocumentID derives a stable ID for documents seeded without one.
func DocumentID(content string) string {
	hash := sha256.Sum256([]byte(content))
	return "doc_" + hex.EncodeToString(hash[:12])
}

// NewEmbedder selects the embedding source once, at startup. A remote
// API key plus model wins over a local model when both are configured.
func NewEmbedder(ctx context.Context, cfg embedding.Config) (embedding.Embedder, error) {
	var (
		embedder embedding.Embedder
		err      error
	)

	switch {
	case cfg.APIKey != "" && cfg.Model != "":
		embedder, err = openai.NewEmbedder(openai.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})

	case cfg.LocalModel != "":
		embedder, err = ollama.NewEmbedder(ctx, ollama.Config{
			Model:   cfg.LocalModel,
			BaseURL: cfg.RuntimeURL,
		})

	default:
		return nil, embedding.ErrNoSource
	}

	if err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		store, err := cache.New(cfg.Cache)
		if err != nil {
			embedder.Close()
			return nil, err
		}

		embedder = embedding.Cached(embedder, store)
	}

	return embedder, nil
}

// NewBackend builds the vector store named by the configuration.
func NewBackend(ctx context.Context, cfg retriever.Config) (retriever.Backend, error) {
	switch cfg.Backend {
	case retriever.BackendTypeMyScale:
		return myscale.Open(ctx, cfg)

	case retriever.BackendTypeChromem:
		return chromem.NewVectorStore(cfg)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackendType, cfg.Backend)
	}
}
