package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/passageway/passageway"

	mcpE "github.com/passageway/passageway/mcp"
)

func AddRouters(r *gin.Engine, endpoints passageway.EndpointSet) {
	// RESTful API routes
	api := r.Group("/api")
	{
		api.GET("/passages", RetrieveHandler(endpoints.Retrieve))
	}
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) {
	mcp := r.Group("/mcp")
	{
		mcp.POST("/", MCPStreamableHandler(endpoints))
	}
}
