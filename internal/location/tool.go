package location

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const ToolName = "is_nearby"

// NewTool exposes IsNearby as a tool. The same definition is served over MCP
// and handed to the AI client during prioritization.
func NewTool(svc *Service) server.ServerTool {
	tool := mcp.NewTool(ToolName,
		mcp.WithDescription("Checks if the user is near a location or business type"),
		mcp.WithString("pointOfInterest",
			mcp.Description("Type of location or business (e.g., coffee shop, Target, grocery store)"),
			mcp.Required(),
		),
		mcp.WithNumber("thresholdMeters",
			mcp.Description("Distance threshold in meters (default: 100)"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		poi := mcp.ParseString(request, "pointOfInterest", "")
		threshold := mcp.ParseFloat64(request, "thresholdMeters", DefaultThresholdMeters)
		return mcp.NewToolResultText(svc.IsNearby(ctx, poi, threshold)), nil
	}

	return server.ServerTool{Tool: tool, Handler: handler}
}
