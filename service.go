package passageway

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/passageway/passageway/embedding"
	"github.com/passageway/passageway/retriever"
)

// Service defines the core logic of Passageway.
type Service interface {

	// Retrieve embeds the query and returns the k closest passages,
	// ordered by ascending distance. Without an explicit k the
	// configured default applies.
	Retrieve(ctx context.Context, query string, k ...int) (*Prediction, error)

	// Close gracefully shuts down the embedder and the backend.
	Close() error
}

type ServiceMiddleware func(Service) Service

func NewService(cfg Config, embedder embedding.Embedder, backend retriever.Backend) (Service, error) {
	if err := cfg.Retriever.Validate(); err != nil {
		return nil, err
	}

	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	if backend == nil {
		return nil, ErrBackendRequired
	}

	log := zap.L().With(
		zap.String("service", "passageway"),
	)

	return &service{
		cfg:      cfg,
		embedder: embedder,
		backend:  backend,
		log:      log,
	}, nil
}

type service struct {
	cfg      Config
	embedder embedding.Embedder
	backend  retriever.Backend
	log      *zap.Logger
}

func (svc *service) Retrieve(ctx context.Context, query string, k ...int) (*Prediction, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrQueryRequired
	}

	n := svc.cfg.Retriever.K
	if n <= 0 {
		n = retriever.DefaultK
	}

	if len(k) > 0 && k[0] > 0 {
		n = k[0]
	}

	embeddings, err := svc.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}

	results, err := svc.backend.Search(ctx, embeddings[0], n)
	if err != nil {
		return nil, err
	}

	return NewPrediction(results, svc.cfg.Retriever.MetadataColumns), nil
}

func (svc *service) Close() error {
	log := svc.log.With(
		zap.String("action", "close"),
	)

	if err := svc.embedder.Close(); err != nil {
		log.Error(err.Error())
	}

	if err := svc.backend.Close(); err != nil {
		log.Error(err.Error())
	}

	return nil
}
