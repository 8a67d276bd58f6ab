package nats

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/passageway/passageway"
)

// MakeEndpoints builds client endpoints that call a remote instance over
// NATS. Pair them with ProxyMiddleware to get a Service.
func MakeEndpoints(nc *nats.Conn, prefix string) *passageway.EndpointSet {
	return &passageway.EndpointSet{
		Retrieve: RetrieveEndpoint(nc, prefix+".retrieve"),
	}
}

func RetrieveEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(passageway.RetrieveRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		resp, err := nc.Request(topic, data, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		if err := Error(resp); err != nil {
			return nil, err
		}

		var prediction passageway.Prediction
		if err := json.Unmarshal(resp.Data, &prediction); err != nil {
			return nil, err
		}

		return &prediction, nil
	}
}

// Error converts a micro service error reply into a Go error.
func Error(msg *nats.Msg) error {
	if msg == nil {
		return errors.New("nil message")
	}

	code := msg.Header.Get(micro.ErrorCodeHeader)
	if code == "" {
		return nil
	}

	description := msg.Header.Get(micro.ErrorHeader)
	if description == "" {
		description = "unknown error"
	}

	return errors.New(code + ":" + description)
}
