package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/teemow/calview/internal/calendar"
	"github.com/teemow/calview/internal/event"
)

// Name is the backend name used in logs and metrics
const Name = "caldav"

// Config holds the server and calendar to use
type Config struct {
	Endpoint     string `yaml:"endpoint"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CalendarName string `yaml:"calendar"`
	UserAgent    string `yaml:"-"`
}

// basicAuthTransport adds Basic Auth and a user agent to every request
type basicAuthTransport struct {
	username  string
	password  string
	userAgent string
	next      http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.next.RoundTrip(req)
}

// Backend reads and writes events of one CalDAV calendar
type Backend struct {
	client       *caldav.Client
	calendarPath string
	logger       *slog.Logger
}

// New connects to the server and locates the configured calendar
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("caldav endpoint is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "calview/1.0"
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &basicAuthTransport{
			username:  cfg.Username,
			password:  cfg.Password,
			userAgent: userAgent,
			next:      http.DefaultTransport,
		},
	}

	client, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	b := &Backend{client: client, logger: logger}

	logger.Info("finding CalDAV calendar", slog.String("calendar", cfg.CalendarName))
	calendarPath, err := b.findCalendar(ctx, cfg.CalendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar %q: %w", cfg.CalendarName, err)
	}
	b.calendarPath = calendarPath
	logger.Info("found CalDAV calendar", slog.String("path", calendarPath))

	return b, nil
}

// findCalendar discovers the user's calendars and returns the path of the one
// with the matching name. An empty name selects the first calendar.
func (b *Backend) findCalendar(ctx context.Context, name string) (string, error) {
	principal, err := b.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSet, err := b.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := b.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if name == "" || cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", calendar.ErrNotFound
}

// Name returns "caldav"
func (b *Backend) Name() string {
	return Name
}

// ListEvents lists the events overlapping r, ordered by start
func (b *Backend) ListEvents(ctx context.Context, r event.Range) ([]event.Event, error) {
	objects, err := b.client.QueryCalendar(ctx, b.calendarPath, rangeQuery(r))
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	events := make([]event.Event, 0, len(objects))
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		expanded, skipped := expand(obj.Data, r)
		if skipped > 0 {
			b.logger.Debug("skipping events with unparseable times",
				slog.String("path", obj.Path), slog.Int("count", skipped))
		}
		events = append(events, expanded...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

// CreateEvent stores d as a new calendar object.
// CalDAV has no conference provisioning, so IsOnlineMeeting is only kept
// when the draft carries a meeting link in its location.
func (b *Backend) CreateEvent(ctx context.Context, d event.Draft) (event.Event, error) {
	if err := d.Validate(); err != nil {
		return event.Event{}, err
	}

	uid := uuid.NewString()
	cal := toCalendar(uid, d, time.Now().UTC())
	objectPath := path.Join(b.calendarPath, uid+".ics")

	if _, err := b.client.PutCalendarObject(ctx, objectPath, cal); err != nil {
		return event.Event{}, fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}

	created := event.Event{
		ID:          uid,
		Title:       d.Title,
		Start:       d.Start,
		End:         d.End,
		Location:    d.Location,
		Description: d.Description,
		Attendees:   d.Attendees,
	}
	if strings.HasPrefix(d.Location, "https://") {
		created.MeetingURL = d.Location
		created.IsOnlineMeeting = d.IsOnlineMeeting
	}
	return created, nil
}

// rangeQuery requests the calendar objects with a VEVENT overlapping r.
// Recurring series come back as their master and overrides; ListEvents
// expands them.
func rangeQuery(r event.Range) *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Props: []string{ical.PropVersion},
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: r.Start.UTC(),
				End:   r.End.UTC(),
			}},
		},
	}
}
