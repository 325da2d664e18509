package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calview/internal/calendar"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/server"
	"github.com/teemow/calview/internal/tools/common"
)

const accountDescription = "Signed-in account (e-mail). Defaults to the current account."

// RegisterEventTools registers the event tools. The create tool is only
// registered when the server allows writes.
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List calendar events starting within a time range"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString(common.AccountArg,
			mcp.Description(accountDescription),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start of the range (RFC3339, e.g. '2025-03-05T00:00:00Z', or a date '2025-03-05' in the display time zone)"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End of the range, exclusive (same formats as start)"),
		),
		mcp.WithString("query",
			mcp.Description("Only return events whose title, description or location contains this text"),
		),
	)
	s.AddTool(listEventsTool, common.InstrumentedToolHandlerWithOperation(
		"calendar_list_events", calendar.OpList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	if !sc.AllowWrite() {
		return
	}

	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a meeting in the calendar"),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString(common.AccountArg,
			mcp.Description(accountDescription),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Meeting title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339, or '2025-03-05T14:00' in timeZone)"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time (same formats as start)"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone, e.g. 'Europe/Berlin'. Defaults to the display time zone."),
		),
		mcp.WithString("location",
			mcp.Description("Meeting location"),
		),
		mcp.WithString("description",
			mcp.Description("Meeting description"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated list of attendee e-mail addresses"),
		),
		mcp.WithBoolean("online",
			mcp.Description("Create an online meeting with a join link"),
		),
	)
	s.AddTool(createEventTool, common.InstrumentedToolHandlerWithOperation(
		"calendar_create_event", calendar.OpCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	rng, err := rangeFromArgs(request, sc.Location())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	backend, _, err := common.BackendForArgs(ctx, sc, request.GetArguments())
	if err != nil {
		return common.ErrorResult(sc.Logger(), err), nil
	}
	events, err := backend.ListEvents(ctx, rng)
	if err != nil {
		return common.ErrorResult(sc.Logger(), err), nil
	}
	events = event.Filter(events, request.GetString("query", ""))

	return mcp.NewToolResultText(formatEvents(events, sc.Location())), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title is required"), nil
	}

	loc := sc.Location()
	tz := request.GetString("timeZone", "")
	if tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown time zone %q", tz)), nil
		}
	}
	start, err := event.ParseTime(request.GetString("start", ""), loc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid start: %v", err)), nil
	}
	end, err := event.ParseTime(request.GetString("end", ""), loc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid end: %v", err)), nil
	}

	draft := event.Draft{
		Title:           title,
		Start:           start,
		End:             end,
		TimeZone:        tz,
		Location:        request.GetString("location", ""),
		Description:     request.GetString("description", ""),
		Attendees:       event.ParseAttendees(request.GetString("attendees", "")),
		IsOnlineMeeting: request.GetBool("online", false),
	}
	if err := draft.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	backend, _, err := common.BackendForArgs(ctx, sc, request.GetArguments())
	if err != nil {
		return common.ErrorResult(sc.Logger(), err), nil
	}
	created, err := backend.CreateEvent(ctx, draft)
	if err != nil {
		return common.ErrorResult(sc.Logger(), err), nil
	}

	return mcp.NewToolResultText("Created event:\n\n" + formatEvent(created, sc.Location())), nil
}

// rangeFromArgs reads the required start and end arguments
func rangeFromArgs(request mcp.CallToolRequest, loc *time.Location) (event.Range, error) {
	startStr, err := request.RequireString("start")
	if err != nil {
		return event.Range{}, fmt.Errorf("start is required")
	}
	endStr, err := request.RequireString("end")
	if err != nil {
		return event.Range{}, fmt.Errorf("end is required")
	}
	start, err := event.ParseTime(startStr, loc)
	if err != nil {
		return event.Range{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := event.ParseTime(endStr, loc)
	if err != nil {
		return event.Range{}, fmt.Errorf("invalid end: %w", err)
	}
	if !end.After(start) {
		return event.Range{}, fmt.Errorf("end must be after start")
	}
	return event.Range{Start: start, End: end}, nil
}

func formatEvents(events []event.Event, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d events:\n\n", len(events))
	for i, e := range events {
		fmt.Fprintf(&b, "%d. %s", i+1, formatEvent(e, loc))
		b.WriteString("\n")
	}
	return b.String()
}

func formatEvent(e event.Event, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", e.Title)
	fmt.Fprintf(&b, "   ID: %s\n", e.ID)
	fmt.Fprintf(&b, "   Start: %s\n", e.Start.In(loc).Format(time.RFC3339))
	fmt.Fprintf(&b, "   End: %s\n", e.End.In(loc).Format(time.RFC3339))
	if e.Location != "" {
		fmt.Fprintf(&b, "   Location: %s\n", e.Location)
	}
	if e.IsOnlineMeeting {
		if e.MeetingURL != "" {
			fmt.Fprintf(&b, "   Online: %s\n", e.MeetingURL)
		} else {
			b.WriteString("   Online: yes\n")
		}
	}
	if e.Organizer != "" {
		fmt.Fprintf(&b, "   Organizer: %s\n", e.Organizer)
	}
	if len(e.Attendees) > 0 {
		fmt.Fprintf(&b, "   Attendees: %s\n", strings.Join(e.Attendees, ", "))
	}
	return b.String()
}
