package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// forumgate://keys — the issued API keys
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"forumgate://keys",
			"Issued API Keys",
			mcp.WithResourceDescription(
				"Every API key issued by the gateway, with its allowlist "+
					"and permission flags. Key values are included; treat "+
					"this resource as sensitive.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleKeysResource,
	)

	// -------------------------------------------------------------------
	// forumgate://audit — the newest audit log entries
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"forumgate://audit",
			"Audit Log",
			mcp.WithResourceDescription(
				"The newest administrative audit entries: key creations, "+
					"key deletions, and admin logins.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleAuditResource,
	)
}

// handleKeysResource returns a JSON list of all issued keys.
func (s *MCPServer) handleKeysResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	keys, err := s.keys.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	items := make([]keyInfo, len(keys))
	for i, k := range keys {
		items[i] = keyInfoFrom(k)
	}

	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keys: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "forumgate://keys",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// handleAuditResource returns the newest audit entries.
func (s *MCPServer) handleAuditResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	entries, err := s.store.ListAudit(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit entries: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "forumgate://audit",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
