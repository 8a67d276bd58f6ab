package passageway

import (
	"context"
	"errors"
)

// ProxyMiddleware substitutes remote endpoints for the local service, so
// clients call Retrieve the same way regardless of where it runs.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Retrieve(ctx context.Context, query string, k ...int) (*Prediction, error) {
	n := 0
	if len(k) > 0 {
		n = k[0]
	}

	req := RetrieveRequest{
		Query: query,
		K:     n,
	}

	resp, err := mw.endpoints.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	prediction, ok := resp.(*Prediction)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return prediction, nil
}

func (mw *proxyMiddleware) Close() error {
	return errors.New("method not implemented")
}
