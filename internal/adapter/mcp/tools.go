package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/deploypilot/deploypilot/internal/domain/stack"
	"github.com/deploypilot/deploypilot/internal/port/repository"
	"github.com/deploypilot/deploypilot/internal/service"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.analyzeRepositoryTool(),
		s.recommendPlatformTool(),
		s.listPlatformsTool(),
	)
}

func (s *Server) analyzeRepositoryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("analyze_repository",
		mcplib.WithDescription("Detect a repository's technology stack and rank Vercel, Netlify, Cloudflare Pages and GitHub Pages for it"),
		mcplib.WithString("owner",
			mcplib.Description("Repository owner or organization"),
		),
		mcplib.WithString("repo",
			mcplib.Description("Repository name"),
		),
		mcplib.WithString("repository",
			mcplib.Description("Alternative to owner and repo: owner/repo, optionally suffixed with @branch"),
		),
		mcplib.WithString("branch",
			mcplib.Description("Branch to analyze; overrides any @branch suffix. Defaults to the repository's default branch"),
		),
		mcplib.WithBoolean("refresh",
			mcplib.Description("Bypass the result cache"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleAnalyzeRepository,
	}
}

func (s *Server) recommendPlatformTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("recommend_platform",
		mcplib.WithDescription("Rank the deployment platforms for already known stack signals"),
		mcplib.WithObject("signals",
			mcplib.Required(),
			mcplib.Description(`Stack signals, e.g. {"projectType":"Frontend","framework":"Next.js","hasServerSideRendering":true}`),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleRecommendPlatform,
	}
}

func (s *Server) listPlatformsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_platforms",
		mcplib.WithDescription("List the candidate deployment platforms with their base scores"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListPlatforms,
	}
}

func (s *Server) handleAnalyzeRepository(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Analyzer == nil {
		return mcplib.NewToolResultError("analyzer not configured"), nil
	}
	ref := repository.Ref{Owner: req.GetString("owner", ""), Repo: req.GetString("repo", "")}
	if slug := req.GetString("repository", ""); slug != "" {
		var err error
		if ref, err = repository.ParseRef(slug); err != nil {
			return mcplib.NewToolResultErrorFromErr("invalid repository", err), nil
		}
	}
	if ref.Owner == "" || ref.Repo == "" {
		return mcplib.NewToolResultError("owner and repo (or repository) are required"), nil
	}
	if branch := req.GetString("branch", ""); branch != "" {
		ref.Branch = branch
	}

	a, err := s.deps.Analyzer.Analyze(ctx, ref.Owner, ref.Repo, ref.Branch, service.AnalyzeOptions{
		Refresh: req.GetBool("refresh", false),
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to analyze %s", ref), toolError(err),
		), nil
	}
	return toolResultJSON(a)
}

func (s *Server) handleRecommendPlatform(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Analyzer == nil {
		return mcplib.NewToolResultError("analyzer not configured"), nil
	}
	raw, ok := req.GetArguments()["signals"]
	if !ok || raw == nil {
		return mcplib.NewToolResultError("signals is required"), nil
	}
	signals, err := decodeSignals(raw)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid signals", err), nil
	}
	return toolResultJSON(s.deps.Analyzer.Score(ctx, signals))
}

func (s *Server) handleListPlatforms(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Analyzer == nil {
		return mcplib.NewToolResultError("analyzer not configured"), nil
	}
	return toolResultJSON(s.deps.Analyzer.Platforms())
}

// decodeSignals converts a tool argument object into TechSignals by a JSON
// round trip so the wire field names apply.
func decodeSignals(raw any) (*stack.TechSignals, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	signals := stack.NewTechSignals()
	if err := json.Unmarshal(data, signals); err != nil {
		return nil, err
	}
	if !signals.ProjectType.Valid() {
		return nil, fmt.Errorf("unknown projectType %q", signals.ProjectType)
	}
	return signals, nil
}

// toolError keeps the failure kind and drops transport details the agent
// cannot act on.
func toolError(err error) error {
	var ae *stack.AnalysisError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case stack.KindNotFound:
			return errors.New("repository or branch not found")
		case stack.KindRateLimited:
			return errors.New("repository host rate limit exceeded, retry later")
		default:
			return errors.New("repository host unreachable")
		}
	}
	return err
}

func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
