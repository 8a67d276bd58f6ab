// Package retriever defines the backend-neutral types for top-k passage
// retrieval: configuration, search results, and the interfaces a vector
// store adapter implements.
package retriever

import (
	"context"
	"errors"
)

var (
	ErrTableRequired           = errors.New("table is required")
	ErrMetadataColumnsRequired = errors.New("metadata columns are required")
	ErrInvalidDocument         = errors.New("invalid document")
)

type BackendType string

const (
	BackendTypeMyScale BackendType = "myscale"
	BackendTypeChromem BackendType = "chromem"
)

const (
	DefaultDatabase     = "default"
	DefaultVectorColumn = "vector"
	DefaultK            = 3
)

type Config struct {
	Backend         BackendType   `yaml:"backend"`
	Database        string        `yaml:"database"`
	Table           string        `yaml:"table"`
	MetadataColumns []string      `yaml:"metadataColumns"`
	VectorColumn    string        `yaml:"vectorColumn"`
	K               int           `yaml:"k"`
	MyScale         MyScaleConfig `yaml:"myscale"`
	Chromem         ChromemConfig `yaml:"chromem"`
}

type MyScaleConfig struct {
	Addresses        []string `yaml:"addresses"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	Secure           bool     `yaml:"secure"`
	MaxExecutionTime int      `yaml:"maxExecutionTime"`
}

type ChromemConfig struct {
	Persistent    bool   `yaml:"persistent"`
	Path          string `yaml:"path"`
	ContentColumn string `yaml:"contentColumn"`
}

func (cfg *Config) SetDefaults() {
	if cfg.Backend == "" {
		cfg.Backend = BackendTypeMyScale
	}

	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}

	if cfg.VectorColumn == "" {
		cfg.VectorColumn = DefaultVectorColumn
	}

	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
}

func (cfg Config) Validate() error {
	if cfg.Table == "" {
		return ErrTableRequired
	}

	if len(cfg.MetadataColumns) == 0 {
		return ErrMetadataColumnsRequired
	}

	return nil
}

// Backend answers nearest-neighbour searches over an indexed table of
// passages. Results arrive in ascending-distance order and are never
// reordered downstream.
type Backend interface {
	Search(ctx context.Context, embedding []float32, k int) ([]Result, error)
	Close() error
}

// Indexer is implemented by backends that support local ingest. The
// MyScale backend does not: its table is owned by the database.
type Indexer interface {
	Index(ctx context.Context, docs []Document) error
}

type Result struct {
	Values   map[string]any `json:"values"`
	Distance float32        `json:"distance"`
}

type Document struct {
	ID        string            `json:"id"`
	Values    map[string]string `json:"values"`
	Embedding []float32         `json:"embedding,omitempty"`
}
