package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/calview/internal/event"
)

const (
	// Name is the backend name used in logs and metrics
	Name = "google"

	// DefaultCalendarID selects the primary calendar of the account
	DefaultCalendarID = "primary"

	// DefaultPageSize caps the number of events per list request
	DefaultPageSize = 250
)

// Config selects the calendar and transport of a Backend
type Config struct {
	CalendarID string
	PageSize   int64

	// Location is used for all-day events, which carry no zone. Defaults to UTC.
	Location *time.Location

	// Endpoint and HTTPClient override the API base URL and transport
	Endpoint   string
	HTTPClient *http.Client
}

// Backend reads and writes events of one Google calendar
type Backend struct {
	svc        *gcal.Service
	calendarID string
	pageSize   int64
	loc        *time.Location
}

// New creates a backend authenticated with ts
func New(ctx context.Context, ts oauth2.TokenSource, cfg Config) (*Backend, error) {
	client := cfg.HTTPClient
	if client == nil {
		if ts == nil {
			return nil, fmt.Errorf("token source cannot be nil")
		}
		client = oauth2.NewClient(ctx, ts)

		// Force HTTP/1.1 by disabling HTTP/2
		if transport, ok := client.Transport.(*oauth2.Transport); ok {
			transport.Base = &http.Transport{
				ForceAttemptHTTP2: false,
			}
		}
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	b := &Backend{
		svc:        svc,
		calendarID: cfg.CalendarID,
		pageSize:   cfg.PageSize,
		loc:        cfg.Location,
	}
	if b.calendarID == "" {
		b.calendarID = DefaultCalendarID
	}
	if b.pageSize <= 0 {
		b.pageSize = DefaultPageSize
	}
	if b.loc == nil {
		b.loc = time.UTC
	}
	return b, nil
}

// Name returns "google"
func (b *Backend) Name() string {
	return Name
}

// ListEvents lists the events starting inside r
func (b *Backend) ListEvents(ctx context.Context, r event.Range) ([]event.Event, error) {
	call := b.svc.Events.List(b.calendarID).
		TimeMin(r.Start.Format(time.RFC3339)).
		TimeMax(r.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(b.pageSize)

	events := make([]event.Event, 0)
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if e, ok := toEvent(item, b.loc); ok {
				events = append(events, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}

// CreateEvent creates a new event from d
func (b *Backend) CreateEvent(ctx context.Context, d event.Draft) (event.Event, error) {
	if err := d.Validate(); err != nil {
		return event.Event{}, err
	}

	call := b.svc.Events.Insert(b.calendarID, fromDraft(d)).Context(ctx)
	if d.IsOnlineMeeting {
		call = call.ConferenceDataVersion(1)
	}

	created, err := call.Do()
	if err != nil {
		return event.Event{}, fmt.Errorf("failed to create event: %w", err)
	}

	e, ok := toEvent(created, b.loc)
	if !ok {
		return event.Event{}, fmt.Errorf("created event %s has unparseable times", created.Id)
	}
	return e, nil
}

// fromDraft builds the API request body for d
func fromDraft(d event.Draft) *gcal.Event {
	tz := d.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	ge := &gcal.Event{
		Summary:     d.Title,
		Description: d.Description,
		Location:    d.Location,
		Start: &gcal.EventDateTime{
			DateTime: d.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &gcal.EventDateTime{
			DateTime: d.End.Format(time.RFC3339),
			TimeZone: tz,
		},
	}

	for _, email := range d.Attendees {
		ge.Attendees = append(ge.Attendees, &gcal.EventAttendee{Email: email})
	}

	// Add conference data (Google Meet)
	if d.IsOnlineMeeting {
		ge.ConferenceData = &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId: uuid.NewString(),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		}
	}
	return ge
}
