package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calview/internal/server"
)

// URIs of the registered resources
const (
	AccountsURI = "calview://accounts"
	SettingsURI = "calview://settings"
)

// accountEntry is one account in the accounts resource
type accountEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Current bool   `json:"current"`
}

// settings is the body of the settings resource
type settings struct {
	TimeZone        string  `json:"timeZone"`
	PixelsPerMinute float64 `json:"pixelsPerMinute"`
	MinHeight       float64 `json:"minHeight"`
	AllowWrite      bool    `json:"allowWrite"`
	Provider        string  `json:"provider"`
}

// RegisterResources registers the accounts and settings resources
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("resources need both an MCP server and a server context")
	}

	accountsResource := mcp.NewResource(
		AccountsURI,
		"Signed-in Accounts",
		mcp.WithResourceDescription("Accounts signed in to calview. The current account is used when a tool gets no account argument."),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(accountsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleAccounts(ctx, request, sc)
	})

	settingsResource := mcp.NewResource(
		SettingsURI,
		"Layout Settings",
		mcp.WithResourceDescription("Time zone and scale used to position events in calendar_layout"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(settingsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSettings(ctx, request, sc)
	})

	return nil
}

func handleAccounts(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	accounts, err := sc.Auth().Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	// No current account just means nobody is signed in yet.
	var currentID string
	if current, err := sc.Auth().CurrentAccount(ctx); err == nil {
		currentID = current.ID
	}

	entries := make([]accountEntry, 0, len(accounts))
	for _, a := range accounts {
		entries = append(entries, accountEntry{
			ID:      a.ID,
			Name:    a.Name,
			Email:   a.Email,
			Current: a.ID == currentID,
		})
	}
	return jsonContents(request.Params.URI, map[string]any{"accounts": entries})
}

func handleSettings(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	opts := sc.LayoutOptions()
	return jsonContents(request.Params.URI, settings{
		TimeZone:        sc.Location().String(),
		PixelsPerMinute: opts.PixelsPerMinute,
		MinHeight:       opts.MinHeight,
		AllowWrite:      sc.AllowWrite(),
		Provider:        string(sc.Auth().Provider()),
	})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
