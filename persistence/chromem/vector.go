// Package chromem provides an embedded vector store backend. It serves
// development and small corpora where running MyScale is overkill; the
// seed command fills it from local documents.
package chromem

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"

	"github.com/passageway/passageway/retriever"
)

// DefaultContentColumn is the column the document content is exposed as
// when the configuration does not name one.
const DefaultContentColumn = "text"

func NewVectorStore(cfg retriever.Config) (*VectorStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var db *chromem.DB
	if !cfg.Chromem.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Chromem.Path, false)
		if err != nil {
			return nil, err
		}

		db = d
	}

	// Queries always carry a precomputed embedding, so the collection
	// must never fall back to an embedding func of its own.
	c, err := db.GetOrCreateCollection(cfg.Table, nil, noEmbedding)
	if err != nil {
		return nil, err
	}

	contentColumn := cfg.Chromem.ContentColumn
	if contentColumn == "" {
		contentColumn = DefaultContentColumn
	}

	return &VectorStore{
		collection:    c,
		columns:       cfg.MetadataColumns,
		contentColumn: contentColumn,
	}, nil
}

func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("no embedding function configured")
}

type VectorStore struct {
	collection    *chromem.Collection
	columns       []string
	contentColumn string
}

func (s *VectorStore) Search(ctx context.Context, embedding []float32, k int) ([]retriever.Result, error) {
	if k > s.collection.Count() {
		k = s.collection.Count()
	}

	if k <= 0 {
		return []retriever.Result{}, nil
	}

	hits, err := s.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, err
	}

	results := make([]retriever.Result, len(hits))
	for i, hit := range hits {
		values := make(map[string]any, len(s.columns))
		for _, column := range s.columns {
			if column == s.contentColumn {
				values[column] = hit.Content
				continue
			}

			values[column] = hit.Metadata[column]
		}

		results[i] = retriever.Result{
			Values: values,
			// chromem reports cosine similarity; retrieval orders by
			// distance.
			Distance: 1 - hit.Similarity,
		}
	}

	return results, nil
}

func (s *VectorStore) Index(ctx context.Context, docs []retriever.Document) error {
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("%w: missing ID", retriever.ErrInvalidDocument)
		}

		if len(doc.Embedding) == 0 {
			return fmt.Errorf("%w: %s has no embedding", retriever.ErrInvalidDocument, doc.ID)
		}

		content := doc.Values[s.contentColumn]

		metadata := make(map[string]string, len(doc.Values))
		for column, value := range doc.Values {
			if column == s.contentColumn {
				continue
			}

			metadata[column] = value
		}

		document := chromem.Document{
			ID:        doc.ID,
			Metadata:  metadata,
			Embedding: doc.Embedding,
			Content:   content,
		}

		if err := s.collection.AddDocument(ctx, document); err != nil {
			return err
		}
	}

	return nil
}

func (s *VectorStore) Close() error {
	return nil
}

var (
	_ retriever.Backend = (*VectorStore)(nil)
	_ retriever.Indexer = (*VectorStore)(nil)
)
