package agent

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/tools"
)

// mcpToolAdapter exposes a langchaingo tool taking a single string argument
// as an MCP tool.
type mcpToolAdapter struct {
	tool     tools.Tool
	argument string
}

func (m *mcpToolAdapter) Definition() mcp.Tool {
	return mcp.NewTool(m.tool.Name(),
		mcp.WithDescription(m.tool.Description()),
		mcp.WithString(m.argument,
			mcp.Required(),
			mcp.Description("Statement to diagnose"),
		),
	)
}

// Handle reports tool failures as error results so the calling agent can
// show them; the returned error is reserved for protocol problems.
func (m *mcpToolAdapter) Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := request.RequireString(m.argument)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	output, err := m.tool.Call(ctx, input)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(output), nil
}
