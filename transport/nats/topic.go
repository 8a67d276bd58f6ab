package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/passageway/passageway"
)

func AddEndpoints(group micro.Group, endpoints passageway.EndpointSet) {
	group.AddEndpoint("retrieve", RetrieveHandler(endpoints.Retrieve))
}
