// Package mcp exposes the tool registry over the Model Context Protocol so
// AI clients can drive the same nine tools through stdio. Calls run through
// the same executor as chat turns, so scoping and validation are identical.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/plugin/ai"
	"github.com/todoflow/todoflow/plugin/ai/agent/tools"
)

const serverName = "todoflow"

// Server bridges the tool registry to an MCP stdio transport. The bridge is
// single-user: every call acts for the user configured in the profile.
type Server struct {
	mcpServer *server.MCPServer
	executor  *tools.Executor
	userID    int32
}

func NewServer(registry *tools.Registry, p *profile.Profile) (*Server, error) {
	if p.MCPUserID <= 0 {
		return nil, errors.InvalidArguments("mcp user id is not configured")
	}

	s := &Server{
		mcpServer: server.NewMCPServer(
			serverName,
			p.Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		executor: tools.NewExecutor(registry),
		userID:   p.MCPUserID,
	}

	for _, name := range registry.Names() {
		tool, _ := registry.Get(name)
		schema, err := json.Marshal(tool.Parameters)
		if err != nil {
			return nil, errors.InvalidArguments("invalid schema for tool %s: %v", name, err)
		}
		s.mcpServer.AddTool(
			mcp.NewToolWithRawSchema(tool.Name, tool.Description, schema),
			s.handlerFor(tool.Name),
		)
	}
	return s, nil
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handlerFor(toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result := s.executor.Execute(ctx, s.userID, ai.ToolCall{
			ID:   uuid.New().String(),
			Type: "function",
			Function: ai.FunctionCall{
				Name:      toolName,
				Arguments: string(args),
			},
		})
		if result.Status != tools.CallStatusSuccess {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", result.ErrorCode, result.Error)), nil
		}
		return mcp.NewToolResultText(string(result.Result)), nil
	}
}
