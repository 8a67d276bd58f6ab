package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	"github.com/passageway/passageway"
)

func TestUnmarshalInitializeRequest(t *testing.T) {
	assert := assert.New(t)

	input := []byte(`{
	  "jsonrpc": "2.0",
	  "id": 1,
	  "method": "initialize",
	  "params": {
	    "protocolVersion": "2024-11-05",
	    "capabilities": {
	      "roots": {
	        "listChanged": true
	      },
	      "sampling": {},
	      "elicitation": {}
	    },
	    "clientInfo": {
	      "name": "ExampleClient",
	      "title": "Example Client Display Name",
	      "version": "1.0.0"
	    }
	  }
	}`)

	var req JSONRPCRequest
	if err := json.Unmarshal(input, &req); err != nil {
		assert.Fail(err.Error())
		return
	}

	var params mcp.InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(mcp.JSONRPC_VERSION, req.JSONRPC)
	assert.Equal(mcp.NewRequestId(int64(1)), req.ID)
	assert.Equal(mcp.MethodInitialize, req.Method)
	assert.Equal("2024-11-05", params.ProtocolVersion)
}

func TestUnmarshalCallToolRequest(t *testing.T) {
	assert := assert.New(t)

	input := []byte(`{
	  "jsonrpc": "2.0",
	  "id": 2,
	  "method": "tools/call",
	  "params": {
	    "name": "retrieve_passages",
	    "arguments": {
	      "query": "who discovered penicillin",
	      "k": 2
	    }
	  }
	}`)

	var req JSONRPCRequest
	if err := json.Unmarshal(input, &req); err != nil {
		assert.Fail(err.Error())
		return
	}

	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(mcp.JSONRPC_VERSION, req.JSONRPC)
	assert.Equal(mcp.NewRequestId(int64(2)), req.ID)
	assert.Equal(mcp.MethodToolsCall, req.Method)
	assert.Equal("retrieve_passages", params.Name)
	assert.Contains(params.Arguments, "query")

	var callToolReq mcp.CallToolRequest
	if err := json.Unmarshal(input, &callToolReq); err != nil {
		assert.Fail(err.Error())
		return
	}
}

type stubService struct {
	query string
	k     int
}

func (s *stubService) Retrieve(ctx context.Context, query string, k ...int) (*passageway.Prediction, error) {
	s.query = query
	if len(k) > 0 {
		s.k = k[0]
	}

	return &passageway.Prediction{
		Passages: []passageway.Passage{
			{LongText: "Fleming discovered penicillin in 1928."},
		},
	}, nil
}

func (s *stubService) Close() error {
	return nil
}

func TestListToolsEndpoint(t *testing.T) {
	assert := assert.New(t)

	endpoint := ListToolsEndpoint(&stubService{})

	req := JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(int64(1)),
		Method:  mcp.MethodToolsList,
	}

	msg := endpoint(context.Background(), req)

	resp, ok := msg.(mcp.JSONRPCResponse)
	if !ok {
		assert.Fail("expected a response message")
		return
	}

	result, ok := resp.Result.(*mcp.ListToolsResult)
	if !ok {
		assert.Fail("expected a list tools result")
		return
	}

	assert.Len(result.Tools, 1)
	assert.Equal("retrieve_passages", result.Tools[0].Name)
}

func TestCallToolEndpoint(t *testing.T) {
	assert := assert.New(t)

	svc := &stubService{}
	endpoint := CallToolEndpoint(svc)

	params, _ := json.Marshal(mcp.CallToolParams{
		Name: "retrieve_passages",
		Arguments: map[string]any{
			"query": "who discovered penicillin",
			"k":     2,
		},
	})

	req := JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(int64(2)),
		Method:  mcp.MethodToolsCall,
		Params:  params,
	}

	msg := endpoint(context.Background(), req)

	resp, ok := msg.(mcp.JSONRPCResponse)
	if !ok {
		assert.Fail("expected a response message")
		return
	}

	assert.Equal("who discovered penicillin", svc.query)
	assert.Equal(2, svc.k)

	result, ok := resp.Result.(*mcp.CallToolResult)
	if !ok {
		assert.Fail("expected a call tool result")
		return
	}

	content, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		assert.Fail("expected text content")
		return
	}

	var prediction passageway.Prediction
	assert.NoError(json.Unmarshal([]byte(content.Text), &prediction))
	assert.Len(prediction.Passages, 1)
	assert.Equal("Fleming discovered penicillin in 1928.", prediction.Passages[0].LongText)
}

func TestCallToolEndpointUnknownTool(t *testing.T) {
	assert := assert.New(t)

	endpoint := CallToolEndpoint(&stubService{})

	params, _ := json.Marshal(mcp.CallToolParams{
		Name: "get_weather",
	})

	req := JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(int64(3)),
		Method:  mcp.MethodToolsCall,
		Params:  params,
	}

	msg := endpoint(context.Background(), req)

	errResp, ok := msg.(mcp.JSONRPCError)
	if !ok {
		assert.Fail("expected an error message")
		return
	}

	assert.Equal(mcp.INVALID_PARAMS, errResp.Error.Code)
}

func TestCallToolEndpointMissingQuery(t *testing.T) {
	assert := assert.New(t)

	endpoint := CallToolEndpoint(&stubService{})

	params, _ := json.Marshal(mcp.CallToolParams{
		Name:      "retrieve_passages",
		Arguments: map[string]any{},
	})

	req := JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(int64(4)),
		Method:  mcp.MethodToolsCall,
		Params:  params,
	}

	msg := endpoint(context.Background(), req)

	errResp, ok := msg.(mcp.JSONRPCError)
	if !ok {
		assert.Fail("expected an error message")
		return
	}

	assert.Equal(mcp.INVALID_PARAMS, errResp.Error.Code)
	assert.Equal(passageway.ErrQueryRequired.Error(), errResp.Error.Message)
}
