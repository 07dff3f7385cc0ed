package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/folio/internal/storage"
)

// NewMCPServer creates an MCP server exposing persona inspection tools and
// resources. Only Store and Classifier are used from deps.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"folio",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("folio classifies portfolio visitors into personas. Use these tools to inspect and reclassify sessions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("classify_session",
			mcp.WithDescription("Classify a visitor session and return its persona, mood, confidence and how the result was reached."),
			mcp.WithString("session_id", mcp.Description("Session ID"), mcp.Required()),
			mcp.WithBoolean("fresh", mcp.Description("Ignore the cached classification and recompute (default false)")),
		),
		mcpClassifySession(deps),
	)

	s.AddTool(
		mcp.NewTool("explain_session",
			mcp.WithDescription("Show a session's aggregated behavior, its 12-dimension vector and the similarity to every persona centroid. Does not change the stored classification."),
			mcp.WithString("session_id", mcp.Description("Session ID"), mcp.Required()),
		),
		mcpExplainSession(deps),
	)

	s.AddTool(
		mcp.NewTool("invalidate_persona",
			mcp.WithDescription("Clear a session's cached classification so the next request recomputes it."),
			mcp.WithString("session_id", mcp.Description("Session ID"), mcp.Required()),
		),
		mcpInvalidatePersona(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"persona://centroids",
			"Persona Centroids",
			mcp.WithResourceDescription("Dimension names and the reference vector of every persona"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCentroids,
	)

	s.AddResource(
		mcp.NewResource(
			"persona://stats",
			"Classification Stats",
			mcp.WithResourceDescription("Session totals, persona distribution and job queue counts"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpClassifySession(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		if req.GetBool("fresh", false) {
			return mcpJSON(deps.Classifier.Reclassify(ctx, id))
		}
		return mcpJSON(deps.Classifier.Classify(ctx, id))
	}
}

func mcpExplainSession(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		ex, err := explainSession(deps.Store, id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("session %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("explain failed: %v", err)), nil
		}
		return mcpJSON(ex)
	}
}

func mcpInvalidatePersona(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		if err := deps.Store.ClearSessionPersona(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return mcpError(fmt.Sprintf("session %s not found", id)), nil
			}
			return mcpError(fmt.Sprintf("failed to clear persona: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Cleared persona for session %s", id)), nil
	}
}

func mcpResourceCentroids(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, centroids())
}

func mcpResourceStats(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		st, err := collectStats(deps.Store)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, st)
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
