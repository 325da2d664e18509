package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/calendar"
	"github.com/teemow/calview/internal/clock"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/layout"
)

var testNow = time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)

// fakeBackend serves canned events and records created drafts
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
	e := event.Event{
		ID:              "created-1",
		Title:           d.Title,
		Start:           d.Start,
		End:             d.End,
		IsOnlineMeeting: d.IsOnlineMeeting,
		Location:        d.Location,
		Description:     d.Description,
		Attendees:       d.Attendees,
	}
	b.events = append(b.events, e)
	return e, nil
}

func (b *fakeBackend) setListErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listErr = err
}

func (b *fakeBackend) createdDrafts() []event.Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]event.Draft(nil), b.drafts...)
}

func sampleEvents() []event.Event {
	return []event.Event{
		{ID: "a", Title: "Planning", Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour)},
		{ID: "b", Title: "Review", Start: testNow.Add(90 * time.Minute), End: testNow.Add(150 * time.Minute)},
		{ID: "c", Title: "Lunch", Start: testNow.Add(4 * time.Hour), End: testNow.Add(5 * time.Hour), Location: "Canteen"},
		{ID: "d", Title: "Next week", Start: testNow.Add(7 * 24 * time.Hour), End: testNow.Add(7*24*time.Hour + time.Hour)},
	}
}

// newOAuthProvider serves a token endpoint that accepts "good-code" and
// returns an id_token for user@example.com
func newOAuthProvider(t *testing.T) *httptest.Server {
	t.Helper()
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "42",
		"name":  "Test User",
		"email": "User@Example.com",
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" || r.Form.Get("code_verifier") == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"id_token":      idToken,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	sc       *ServerContext
	auth     *auth.Service
	store    *auth.MemoryStore
	backend  *fakeBackend
	sessions *SessionManager
	server   *HTTPServer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	provider := newOAuthProvider(t)

	store := auth.NewMemoryStore()
	authSvc := auth.New(auth.ProviderConfig{
		Kind:        auth.ProviderGoogle,
		ClientID:    "client",
		RedirectURL: "http://localhost/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  provider.URL + "/authorize",
			TokenURL: provider.URL + "/token",
		},
	}, store, auth.WithHTTPClient(provider.Client()))
	require.NoError(t, authSvc.Init(ctx))
	t.Cleanup(func() { _ = authSvc.Close() })

	backend := &fakeBackend{events: sampleEvents()}
	factory := func(context.Context, auth.Account, oauth2.TokenSource) (calendar.Backend, error) {
		return backend, nil
	}

	opts := layout.DefaultOptions()
	opts.Location = time.UTC
	sc, err := NewServerContext(ctx, authSvc, factory,
		WithClock(clock.Fixed(testNow)),
		WithLayoutOptions(opts))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	sessions := NewSessionManager(
		WithSessionClock(clock.Fixed(testNow)),
		WithControllerFactory(sc.NewController))
	t.Cleanup(sessions.Stop)

	return &testEnv{
		sc:       sc,
		auth:     authSvc,
		store:    store,
		backend:  backend,
		sessions: sessions,
		server:   NewHTTPServer(sc, sessions),
	}
}

// signIn saves a token for user@example.com and returns a session cookie
// signed in as that account
func (e *testEnv) signIn(t *testing.T) *http.Cookie {
	t.Helper()
	ctx := context.Background()
	account := auth.Account{ID: "user@example.com", Email: "user@example.com", Name: "Test User"}
	require.NoError(t, e.store.Save(ctx, auth.Record{
		Account: account,
		Token:   &oauth2.Token{AccessToken: "access-1", Expiry: time.Now().Add(time.Hour)},
	}))

	rec := httptest.NewRecorder()
	sess := e.sessions.Resolve(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	backend, err := e.sc.BackendForAccount(ctx, account.ID)
	require.NoError(t, err)
	sess.SetAccount(account, backend)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}
