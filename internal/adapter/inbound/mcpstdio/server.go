package mcpstdio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpGoServer "github.com/mark3labs/mcp-go/server"

	"github.com/i2y/mcp-odoo/internal/domain"
	"github.com/i2y/mcp-odoo/internal/usecase"
)

// Server exposes the tool registry over stdin/stdout using the mcp-go stdio
// transport. It routes calls through the same CallTool use case as the HTTP
// transport, so timeouts and instrumentation behave identically.
type Server struct {
	mcpSrv *mcpGoServer.MCPServer
	logger *slog.Logger
}

// New builds the stdio server and registers every tool from the registry.
func New(registry usecase.ToolRegistry, callTool *usecase.CallToolUseCase, name, version string, logger *slog.Logger) (*Server, error) {
	log := logger.With("component", "mcpstdio")

	srv := mcpGoServer.NewMCPServer(name, version)
	for _, tool := range registry.List() {
		converted, err := convertTool(tool)
		if err != nil {
			return nil, fmt.Errorf("convert tool '%s': %w", tool.Name, err)
		}
		srv.AddTool(converted, toolHandler(callTool, tool.Name))
	}
	log.Info("Registered tools with stdio server.", slog.Int("count", registry.Len()))

	return &Server{mcpSrv: srv, logger: log}, nil
}

// convertTool maps a domain tool onto the mcp-go wire type. The JSON schema
// passes through verbatim.
func convertTool(tool domain.Tool) (mcp.Tool, error) {
	schema, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return mcp.Tool{}, err
	}
	return mcp.Tool{
		Name:           tool.Name,
		Description:    tool.Description,
		RawInputSchema: schema,
	}, nil
}

// toolHandler adapts the CallTool use case to mcp-go's handler signature.
// Tool failures become error results rather than protocol errors, so the
// client sees the message inline.
func toolHandler(callTool *usecase.CallToolUseCase, name string) mcpGoServer.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := callTool.Execute(ctx, name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode result for tool '%s': %w", name, err)
		}
		return mcp.NewToolResultText(string(text)), nil
	}
}

// Serve runs the stdio loop until ctx is canceled or the input closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Serving MCP over stdio.")
	return mcpGoServer.NewStdioServer(s.mcpSrv).Listen(ctx, in, out)
}
