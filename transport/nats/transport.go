package nats

import (
	"context"
	"encoding/json"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"

	"github.com/passageway/passageway"
)

func RetrieveHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req passageway.RetrieveRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		if req.Query == "" {
			r.Error("400", passageway.ErrQueryRequired.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error("417", err.Error(), nil)
			return
		}

		prediction, ok := resp.(*passageway.Prediction)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(prediction)
	}
}
