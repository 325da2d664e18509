package calendar_tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/server"
	"github.com/teemow/calview/internal/tools/common"
	"github.com/teemow/calview/internal/view"
)

// OpLayout is the operation name recorded for the layout tool
const OpLayout = "layout"

// RegisterLayoutTools registers the calendar_layout tool
func RegisterLayoutTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	layoutTool := mcp.NewTool("calendar_layout",
		mcp.WithDescription("Lay out a calendar page. Returns JSON with one entry per day; "+
			"every event carries a slot {top, height, left, width} where top and height are display units "+
			"and left and width are fractions of the day column. Overlapping events share the column."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString(common.AccountArg,
			mcp.Description(accountDescription),
		),
		mcp.WithString("view",
			mcp.Description("Page to lay out"),
			mcp.Enum(string(view.KindDay), string(view.KindWeek), string(view.KindMonth)),
			mcp.DefaultString(string(view.KindWeek)),
		),
		mcp.WithString("date",
			mcp.Description("Any date on the page (e.g. '2025-03-05'). Defaults to today."),
		),
		mcp.WithString("query",
			mcp.Description("Only lay out events whose title, description or location contains this text"),
		),
	)
	s.AddTool(layoutTool, common.InstrumentedToolHandlerWithOperation(
		"calendar_layout", OpLayout, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleLayout(ctx, request, sc)
		}))
}

func handleLayout(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	kind, err := view.ParseKind(request.GetString("view", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var date time.Time
	if s := request.GetString("date", ""); s != "" {
		if date, err = event.ParseTime(s, sc.Location()); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid date: %v", err)), nil
		}
	}

	backend, _, err := common.BackendForArgs(ctx, sc, request.GetArguments())
	if err != nil {
		return common.ErrorResult(sc.Logger(), err), nil
	}

	ctrl := sc.NewController()
	ctrl.SetSource(backend)
	ctrl.Search(request.GetString("query", ""))
	move := view.Move{Kind: kind, Date: date}
	if date.IsZero() {
		move.Action = view.ActionToday
	}
	if err := ctrl.Move(ctx, move); err != nil {
		return common.ErrorResult(sc.Logger(), err), nil
	}

	result, err := mcp.NewToolResultJSON(ctrl.Snapshot(ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}
