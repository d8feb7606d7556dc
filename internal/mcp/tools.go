package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forumgate/forumgate/internal/model"
	"github.com/forumgate/forumgate/internal/service"
)

// mcpActor labels audit entries written through MCP tools.
const mcpActor = "mcp"

// registerTools registers all gateway MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Key administration -----

	srv.AddTool(
		mcp.NewTool("forumgate_list_keys",
			mcp.WithDescription(
				"List every API key issued by the gateway, including the key value, "+
					"the IP allowlist, and which operations (register, login, manage) "+
					"the key is allowed to call. Use this first to see what access exists.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListKeys,
	)

	srv.AddTool(
		mcp.NewTool("forumgate_create_key",
			mcp.WithDescription(
				"Issue a new API key. The key value is generated server-side and "+
					"returned once in the result; consumers send it as a Bearer token. "+
					"An empty allowed_ips list means the key works from any address.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Human-readable label for the key (e.g. the consuming site)"),
			),
			mcp.WithString("allowed_ips",
				mcp.Description("Comma-separated IP addresses and CIDR ranges the key may be used from (e.g. \"10.0.0.0/24, 192.168.1.5\")"),
			),
			mcp.WithBoolean("perm_register",
				mcp.Description("Allow the key to call the registration endpoint"),
			),
			mcp.WithBoolean("perm_login",
				mcp.Description("Allow the key to call the login endpoint"),
			),
			mcp.WithBoolean("perm_manage",
				mcp.Description("Allow the key to manage other keys"),
			),
		),
		s.handleCreateKey,
	)

	srv.AddTool(
		mcp.NewTool("forumgate_delete_key",
			mcp.WithDescription(
				"Delete an API key by id. Requires confirm=true; without it the tool "+
					"returns the key's name so the caller can double-check before "+
					"revoking access. Deletions are recorded in the audit log.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithNumber("key_id",
				mcp.Required(),
				mcp.Description("Numeric id of the key to delete"),
			),
			mcp.WithBoolean("confirm",
				mcp.Description("Must be true to actually delete the key"),
			),
		),
		s.handleDeleteKey,
	)

	// ----- Diagnostics -----

	srv.AddTool(
		mcp.NewTool("forumgate_check_access",
			mcp.WithDescription(
				"Check what a bearer token can do from a given source address. "+
					"Resolves the token exactly like the gated endpoints do: an unknown "+
					"token or a blocked address yields no permissions. Use this to "+
					"diagnose why a consumer is seeing 404 responses.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("token",
				mcp.Required(),
				mcp.Description("The bearer token to check"),
			),
			mcp.WithString("client_ip",
				mcp.Description("Source IP address to evaluate the allowlist against (default 127.0.0.1)"),
			),
		),
		s.handleCheckAccess,
	)

	srv.AddTool(
		mcp.NewTool("forumgate_audit_log",
			mcp.WithDescription(
				"Read the newest entries of the administrative audit log: key "+
					"creations and deletions and admin logins, each with the actor "+
					"and source address.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of entries to return (default 50, max 1000)"),
			),
		),
		s.handleAuditLog,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

// keyInfo is the tool-facing shape of an API key.
type keyInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Value      string `json:"value"`
	AllowedIPs string `json:"allowed_ips,omitempty"`
	Register   bool   `json:"perm_register"`
	Login      bool   `json:"perm_login"`
	Manage     bool   `json:"perm_manage"`
}

func keyInfoFrom(k model.APIKey) keyInfo {
	return keyInfo{
		ID:         k.ID,
		Name:       k.Name,
		Value:      k.Value,
		AllowedIPs: k.AllowedIPs,
		Register:   k.PermRegister,
		Login:      k.PermLogin,
		Manage:     k.PermManage,
	}
}

func (s *MCPServer) handleListKeys(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	keys, err := s.keys.List(ctx)
	if err != nil {
		return toolError("Failed to list keys: %v", err)
	}

	items := make([]keyInfo, len(keys))
	for i, k := range keys {
		items[i] = keyInfoFrom(k)
	}

	return successJSON(items)
}

func (s *MCPServer) handleCreateKey(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	name, err := requireString(request, "name")
	if err != nil {
		return toolError("%v", err)
	}

	req := service.CreateKeyRequest{
		Name:         name,
		AllowedIPs:   optionalString(request, "allowed_ips"),
		PermRegister: optionalBool(request, "perm_register", false),
		PermLogin:    optionalBool(request, "perm_login", false),
		PermManage:   optionalBool(request, "perm_manage", false),
	}

	key, err := s.keys.Create(ctx, req, mcpActor, "")
	if err != nil {
		var verrs model.ValidationErrors
		if errors.As(err, &verrs) {
			return toolError("Invalid key: %v", verrs)
		}
		return toolError("Failed to create key: %v", err)
	}

	return successJSON(keyInfoFrom(key))
}

func (s *MCPServer) handleDeleteKey(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	keyID := optionalInt(request, "key_id", 0)
	if keyID <= 0 {
		return toolError("A positive key_id is required. Use forumgate_list_keys to find it.")
	}

	if !optionalBool(request, "confirm", false) {
		key, err := s.keys.Get(ctx, int64(keyID))
		if err != nil {
			return toolError("Key %d not found.", keyID)
		}
		return successJSON(map[string]interface{}{
			"confirm_required": true,
			"key":              map[string]interface{}{"id": key.ID, "name": key.Name},
			"message":          "Call again with confirm=true to delete this key. Consumers using it lose access immediately.",
		})
	}

	removed, err := s.keys.Delete(ctx, int64(keyID), mcpActor, "")
	if err != nil {
		return toolError("Failed to delete key %d: %v", keyID, err)
	}
	if !removed {
		return toolError("Key %d not found.", keyID)
	}

	return successJSON(map[string]interface{}{"deleted": true})
}

func (s *MCPServer) handleCheckAccess(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	token, err := requireString(request, "token")
	if err != nil {
		return toolError("%v", err)
	}
	clientIP := optionalString(request, "client_ip")
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}

	principal := s.auth.ResolveKey(ctx, token, clientIP)
	if principal.KeyID == 0 {
		return successJSON(map[string]interface{}{
			"matched": false,
			"message": "Token does not resolve from this address: it is unknown, or the key's allowlist blocks " + clientIP + ". The gated endpoints answer 404 to it.",
		})
	}

	return successJSON(map[string]interface{}{
		"matched":  true,
		"key_id":   principal.KeyID,
		"name":     principal.Name,
		"register": principal.Perms.Register,
		"login":    principal.Perms.Login,
		"manage":   principal.Perms.Manage,
	})
}

func (s *MCPServer) handleAuditLog(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	limit := clamp(optionalInt(request, "limit", 50), 1, 1000)

	entries, err := s.store.ListAudit(ctx, limit)
	if err != nil {
		return toolError("Failed to read audit log: %v", err)
	}

	return successJSON(entries)
}
