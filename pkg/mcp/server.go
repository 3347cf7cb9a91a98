// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the advising tool registry over the Model Context
// Protocol so external clients can call the same tools the agents use.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/campusworks/advisor/pkg/tools"
)

// Server wraps the mcp-go server around the tool registry.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server publishing every tool in the registry.
// Tool calls pass through the same argument validation the agents use.
func NewServer(name, version string, registry *tools.Registry) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version),
	}
	for _, def := range registry.Definitions() {
		toolName := def.Function.Name
		tool := mcp.NewTool(toolName, mcp.WithDescription(def.Function.Description))
		s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})
			out, err := registry.Execute(ctx, toolName, args)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(out), nil
		})
	}
	return s
}

// ServeStdio blocks serving the registry over stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
