package calendar_tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/calendar"
	"github.com/teemow/calview/internal/clock"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/layout"
	"github.com/teemow/calview/internal/server"
)

var testNow = time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu      sync.Mutex
	events  []event.Event
	listErr error
	drafts  []event.Draft
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) ListEvents(_ context.Context, r event.Range) ([]event.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []event.Event
	for _, e := range b.events {
		if r.Contains(e.Start) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *fakeBackend) CreateEvent(_ context.Context, d event.Draft) (event.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drafts = append(b.drafts, d)
	return event.Event{ID: "new-1", Title: d.Title, Start: d.Start, End: d.End,
		IsOnlineMeeting: d.IsOnlineMeeting, MeetingURL: "https://meet.example.com/new-1", Attendees: d.Attendees}, nil
}

func newTestServer(t *testing.T, allowWrite bool, signedIn bool) (*mcpserver.MCPServer, *fakeBackend) {
	t.Helper()
	ctx := context.Background()

	store := auth.NewMemoryStore()
	if signedIn {
		require.NoError(t, store.Save(ctx, auth.Record{
			Account: auth.Account{ID: "user@example.com", Email: "user@example.com"},
			Token:   &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)},
		}))
	}
	authSvc := auth.New(auth.ProviderConfig{
		Kind:        auth.ProviderGoogle,
		ClientID:    "client",
		RedirectURL: "http://localhost/auth/callback",
	}, store)
	require.NoError(t, authSvc.Init(ctx))

	backend := &fakeBackend{events: []event.Event{
		{ID: "a", Title: "Planning", Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour), Location: "Room 1"},
		{ID: "b", Title: "Review", Start: testNow.Add(90 * time.Minute), End: testNow.Add(150 * time.Minute)},
		{ID: "c", Title: "Retro", Start: testNow.Add(48 * time.Hour), End: testNow.Add(49 * time.Hour)},
	}}
	factory := func(context.Context, auth.Account, oauth2.TokenSource) (calendar.Backend, error) {
		return backend, nil
	}

	opts := layout.DefaultOptions()
	opts.Location = time.UTC
	sc, err := server.NewServerContext(ctx, authSvc, factory,
		server.WithClock(clock.Fixed(testNow)),
		server.WithLayoutOptions(opts),
		server.WithAllowWrite(allowWrite))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := mcpserver.NewMCPServer("calview-test", "0.0.0", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterCalendarTools(s, sc))
	return s, backend
}

func callTool(t *testing.T, s *mcpserver.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "tool %s is not registered", name)

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestRegisterCalendarTools(t *testing.T) {
	readOnly, _ := newTestServer(t, false, true)
	assert.NotNil(t, readOnly.GetTool("calendar_list_events"))
	assert.NotNil(t, readOnly.GetTool("calendar_layout"))
	assert.Nil(t, readOnly.GetTool("calendar_create_event"))

	writable, _ := newTestServer(t, true, true)
	assert.NotNil(t, writable.GetTool("calendar_create_event"))

	assert.Error(t, RegisterCalendarTools(nil, nil))
}

func TestListEvents(t *testing.T) {
	s, _ := newTestServer(t, false, true)

	result := callTool(t, s, "calendar_list_events", map[string]any{
		"start": "2025-03-05",
		"end":   "2025-03-06",
	})
	assert.False(t, result.IsError)
	text := textOf(t, result)
	assert.Contains(t, text, "Found 2 events")
	assert.Contains(t, text, "Planning")
	assert.Contains(t, text, "Location: Room 1")
	assert.NotContains(t, text, "Retro")

	result = callTool(t, s, "calendar_list_events", map[string]any{
		"start": "2025-03-01T00:00:00Z",
		"end":   "2025-03-10T00:00:00Z",
		"query": "retro",
	})
	assert.Contains(t, textOf(t, result), "Found 1 events")
}

func TestListEvents_InvalidArguments(t *testing.T) {
	s, _ := newTestServer(t, false, true)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing start", map[string]any{"end": "2025-03-06"}, "start is required"},
		{"missing end", map[string]any{"start": "2025-03-05"}, "end is required"},
		{"bad start", map[string]any{"start": "soon", "end": "2025-03-06"}, "invalid start"},
		{"empty range", map[string]any{"start": "2025-03-06", "end": "2025-03-05"}, "end must be after start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s, "calendar_list_events", tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, textOf(t, result), tt.want)
		})
	}
}

func TestListEvents_NotSignedIn(t *testing.T) {
	s, _ := newTestServer(t, false, false)

	result := callTool(t, s, "calendar_list_events", map[string]any{"start": "2025-03-05", "end": "2025-03-06"})
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "calview login")

	s, _ = newTestServer(t, false, true)
	result = callTool(t, s, "calendar_list_events", map[string]any{
		"account": "someone@example.com", "start": "2025-03-05", "end": "2025-03-06",
	})
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "calview login")
}

func TestListEvents_UpstreamError(t *testing.T) {
	s, backend := newTestServer(t, false, true)
	backend.listErr = errors.New("googleapi: Error 503: secret details")

	result := callTool(t, s, "calendar_list_events", map[string]any{"start": "2025-03-05", "end": "2025-03-06"})
	assert.True(t, result.IsError)
	text := textOf(t, result)
	assert.Contains(t, text, "retry")
	assert.NotContains(t, text, "secret details")
}

func TestCreateEvent(t *testing.T) {
	s, backend := newTestServer(t, true, true)

	result := callTool(t, s, "calendar_create_event", map[string]any{
		"account":   "User@Example.com",
		"title":     "Sync",
		"start":     "2025-03-06T10:00",
		"end":       "2025-03-06T10:30",
		"timeZone":  "Europe/Berlin",
		"attendees": "a@example.com, b@example.com",
		"online":    true,
	})
	require.False(t, result.IsError, textOf(t, result))
	text := textOf(t, result)
	assert.Contains(t, text, "Created event")
	assert.Contains(t, text, "https://meet.example.com/new-1")

	require.Len(t, backend.drafts, 1)
	d := backend.drafts[0]
	assert.Equal(t, "Sync", d.Title)
	assert.Equal(t, "Europe/Berlin", d.TimeZone)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, d.Attendees)
	assert.True(t, d.IsOnlineMeeting)
	assert.True(t, d.Start.Equal(time.Date(2025, 3, 6, 9, 0, 0, 0, time.UTC)))
}

func TestCreateEvent_Invalid(t *testing.T) {
	s, backend := newTestServer(t, true, true)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing title", map[string]any{"start": "2025-03-06T10:00", "end": "2025-03-06T11:00"}, "title is required"},
		{"unknown zone", map[string]any{"title": "x", "start": "2025-03-06T10:00", "end": "2025-03-06T11:00", "timeZone": "Mars/Base"}, "unknown time zone"},
		{"end before start", map[string]any{"title": "x", "start": "2025-03-06T11:00", "end": "2025-03-06T10:00"}, "end must be after start"},
		{"bad end", map[string]any{"title": "x", "start": "2025-03-06T11:00", "end": "later"}, "invalid end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s, "calendar_create_event", tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, textOf(t, result), tt.want)
		})
	}
	assert.Empty(t, backend.drafts)
}

type layoutResult struct {
	View string `json:"view"`
	Days []struct {
		IsToday bool `json:"isToday"`
		Events  []struct {
			Event event.Event  `json:"event"`
			Slot  layout.Slot `json:"slot"`
		} `json:"events"`
	} `json:"days"`
}

func TestLayout(t *testing.T) {
	s, _ := newTestServer(t, false, true)

	result := callTool(t, s, "calendar_layout", map[string]any{"view": "day"})
	require.False(t, result.IsError, textOf(t, result))

	var page layoutResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &page))
	assert.Equal(t, "day", page.View)
	require.Len(t, page.Days, 1)
	assert.True(t, page.Days[0].IsToday)
	require.Len(t, page.Days[0].Events, 2)

	// Planning 09:00-10:00 and Review 09:30-10:30 overlap.
	slots := map[string]layout.Slot{}
	for _, p := range page.Days[0].Events {
		slots[p.Event.ID] = p.Slot
	}
	assert.InDelta(t, 0.475, slots["a"].Width, 1e-9)
	assert.InDelta(t, 0.025, slots["a"].Left, 1e-9)
	assert.InDelta(t, 0.5, slots["b"].Left, 1e-9)
	assert.InDelta(t, 9*layout.DefaultPixelsPerHour, slots["a"].Top, 1e-9)
	assert.InDelta(t, layout.DefaultPixelsPerHour, slots["a"].Height, 1e-9)
}

func TestLayout_WeekAndQuery(t *testing.T) {
	s, _ := newTestServer(t, false, true)

	result := callTool(t, s, "calendar_layout", map[string]any{"date": "2025-03-07", "query": "retro"})
	require.False(t, result.IsError, textOf(t, result))

	var page layoutResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &page))
	assert.Equal(t, "week", page.View)
	require.Len(t, page.Days, 7)

	var ids []string
	for _, d := range page.Days {
		for _, p := range d.Events {
			ids = append(ids, p.Event.ID)
		}
	}
	assert.Equal(t, []string{"c"}, ids)
	// The only event is alone in its group.
	assert.InDelta(t, 0.95, page.Days[5].Events[0].Slot.Width, 1e-9)
}

func TestLayout_InvalidArguments(t *testing.T) {
	s, _ := newTestServer(t, false, true)

	result := callTool(t, s, "calendar_layout", map[string]any{"view": "year"})
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "unknown view kind")

	result = callTool(t, s, "calendar_layout", map[string]any{"date": "someday"})
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "invalid date")
}
