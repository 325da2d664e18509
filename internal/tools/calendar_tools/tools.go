package calendar_tools

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calview/internal/server"
)

// RegisterCalendarTools registers all calendar tools with the MCP server
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	RegisterEventTools(s, sc)
	RegisterLayoutTools(s, sc)
	return nil
}
