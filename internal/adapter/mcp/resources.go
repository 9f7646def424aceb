package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const platformsURI = "deploypilot://platforms"

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			platformsURI,
			"Deployment Platforms",
			mcplib.WithResourceDescription("Candidate deployment platforms with base scores and default reasons"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePlatformsResource,
	)
}

func (s *Server) handlePlatformsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Analyzer == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"analyzer not configured"}`,
			},
		}, nil
	}
	data, err := json.Marshal(s.deps.Analyzer.Platforms())
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
