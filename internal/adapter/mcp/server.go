// Package mcp exposes repository analysis as Model Context Protocol tools so
// AI agents can ask where a repository should be deployed.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/deploypilot/deploypilot/internal/domain/analysis"
	"github.com/deploypilot/deploypilot/internal/domain/platform"
	"github.com/deploypilot/deploypilot/internal/domain/stack"
	"github.com/deploypilot/deploypilot/internal/service"
)

// Analyzer is the subset of *service.AnalysisService the tools call.
type Analyzer interface {
	Analyze(ctx context.Context, owner, repo, branch string, opts service.AnalyzeOptions) (*analysis.RepositoryAnalysis, error)
	Score(ctx context.Context, signals *stack.TechSignals) []platform.Suggestion
	Platforms() []platform.Candidate
}

// ServerConfig holds the MCP server identity and transport settings.
type ServerConfig struct {
	Name    string
	Version string
	// Path is the HTTP endpoint the streamable transport serves.
	Path string
	// APIKey, when set, is required on every request.
	APIKey string
}

// ServerDeps holds the services the MCP tools read from.
type ServerDeps struct {
	Analyzer Analyzer
}

// Server wraps an mcp-go server with the deploypilot tools and resources.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
}

// NewServer creates an MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	if cfg.Name == "" {
		cfg.Name = "deploypilot"
	}
	if cfg.Path == "" {
		cfg.Path = "/mcp"
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Path returns the endpoint the handler should be mounted at.
func (s *Server) Path() string {
	return s.cfg.Path
}

// Handler returns the stateless streamable HTTP transport, guarded by the
// API key when one is configured.
func (s *Server) Handler() http.Handler {
	h := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(s.cfg.Path),
		mcpserver.WithStateLess(true),
	)
	slog.Info("mcp endpoint enabled", "path", s.cfg.Path, "auth", s.cfg.APIKey != "")
	return AuthMiddleware(s.cfg.APIKey, h)
}
