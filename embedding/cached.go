package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/passageway/passageway/cache"
)

// Cached wraps an embedder with a cache keyed by model and query batch.
// Cache failures degrade to a miss so retrieval keeps working.
func Cached(next Embedder, store cache.Cache) Embedder {
	log := zap.L().With(
		zap.String("embedder", "cached"),
		zap.String("model", next.Model()),
	)

	return &cachedEmbedder{
		next:  next,
		store: store,
		log:   log,
	}
}

type cachedEmbedder struct {
	next  Embedder
	store cache.Cache
	log   *zap.Logger
}

func (e *cachedEmbedder) Embed(ctx context.Context, queries []string) ([][]float32, error) {
	key := cache.Key(e.next.Model(), queries)

	embeddings, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.log.Warn(err.Error())
	} else if ok {
		return embeddings, nil
	}

	embeddings, err = e.next.Embed(ctx, queries)
	if err != nil {
		return nil, err
	}

	if err := e.store.Put(ctx, key, embeddings); err != nil {
		e.log.Warn(err.Error())
	}

	return embeddings, nil
}

func (e *cachedEmbedder) Model() string {
	return e.next.Model()
}

func (e *cachedEmbedder) Close() error {
	if err := e.store.Close(); err != nil {
		e.log.Error(err.Error())
	}

	return e.next.Close()
}

var _ Embedder = (*cachedEmbedder)(nil)
