package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/event"
)

type viewBody struct {
	View  string `json:"view"`
	Query string `json:"query"`
	Range struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"range"`
	Days []struct {
		IsToday bool `json:"isToday"`
		Events  []struct {
			Event struct {
				ID string `json:"id"`
			} `json:"event"`
			Slot struct {
				Top   float64 `json:"top"`
				Left  float64 `json:"left"`
				Width float64 `json:"width"`
			} `json:"slot"`
		} `json:"events"`
	} `json:"days"`
	Error string `json:"error"`
}

func (v viewBody) eventIDs() []string {
	var ids []string
	for _, d := range v.Days {
		for _, p := range d.Events {
			ids = append(ids, p.Event.ID)
		}
	}
	return ids
}

func doRequest(t *testing.T, h http.Handler, method, target string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHTTPServer_RequiresSignIn(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/me"},
		{http.MethodGet, "/api/view"},
		{http.MethodGet, "/api/events?start=2025-03-05&end=2025-03-06"},
	} {
		rec := doRequest(t, h, tc.method, tc.target, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.target)
		body := decodeBody[ErrorResponse](t, rec)
		assert.Equal(t, "not_authenticated", body.Error)
	}
}

func TestHTTPServer_SecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(t, env.server.Handler(), http.MethodGet, "/healthz", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestHTTPServer_LoginFlow(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(ts.URL + "/auth/login")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	consent, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(consent.Path, "/authorize"))
	assert.Equal(t, "S256", consent.Query().Get("code_challenge_method"))
	state := consent.Query().Get("state")
	require.NotEmpty(t, state)

	// A forged state is rejected and consumes the pending login.
	resp, err = client.Get(ts.URL + "/auth/callback?code=good-code&state=forged")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/auth/login")
	require.NoError(t, err)
	resp.Body.Close()
	consent, err = url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state = consent.Query().Get("state")

	resp, err = client.Get(ts.URL + "/auth/callback?code=good-code&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/api/view", resp.Header.Get("Location"))

	resp, err = client.Get(ts.URL + "/api/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me meResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "user@example.com", me.Account.ID)
	assert.Equal(t, auth.ProviderGoogle, me.Provider)

	resp, err = client.Post(ts.URL+"/auth/logout", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/api/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	accounts, err := env.auth.Accounts(t.Context())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestHTTPServer_CallbackExchangeFailure(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()

	login := doRequest(t, h, http.MethodGet, "/auth/login", nil, nil)
	require.Equal(t, http.StatusFound, login.Code)
	cookie := login.Result().Cookies()[0]
	consent, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)

	rec := doRequest(t, h, http.MethodGet,
		"/auth/callback?code=bad-code&state="+url.QueryEscape(consent.Query().Get("state")), nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "interaction_required", decodeBody[ErrorResponse](t, rec).Error)
}

func TestHTTPServer_View(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()
	cookie := env.signIn(t)

	rec := doRequest(t, h, http.MethodGet, "/api/view", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[viewBody](t, rec)
	assert.Equal(t, "week", v.View)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, v.eventIDs())
	require.Len(t, v.Days, 7)
	assert.True(t, v.Days[3].IsToday)

	// a and b overlap and share the column.
	for _, p := range v.Days[3].Events {
		if p.Event.ID == "a" || p.Event.ID == "b" {
			assert.InDelta(t, 0.475, p.Slot.Width, 1e-9)
		}
	}

	rec = doRequest(t, h, http.MethodPost, "/api/view", map[string]string{"action": "next"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeBody[viewBody](t, rec)
	assert.Equal(t, []string{"d"}, v.eventIDs())

	rec = doRequest(t, h, http.MethodPost, "/api/view", map[string]string{"view": "day", "date": "2025-03-05"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeBody[viewBody](t, rec)
	assert.Equal(t, "day", v.View)
	assert.Len(t, v.Days, 1)

	rec = doRequest(t, h, http.MethodPost, "/api/view", map[string]string{"query": "canteen"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeBody[viewBody](t, rec)
	assert.Equal(t, []string{"c"}, v.eventIDs())
	assert.Equal(t, "canteen", v.Query)

	rec = doRequest(t, h, http.MethodPost, "/api/view", map[string]string{"action": "sideways"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/view", map[string]string{"view": "year"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPServer_UpstreamErrorIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()
	cookie := env.signIn(t)
	env.backend.setListErr(errors.New("googleapi: Error 500: backend exploded"))

	rec := doRequest(t, h, http.MethodGet, "/api/view", nil, cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.True(t, body.Retryable)
	assert.NotContains(t, body.Message, "exploded")

	rec = doRequest(t, h, http.MethodGet, "/api/events?start=2025-03-05&end=2025-03-06", nil, cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHTTPServer_ListEvents(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()
	cookie := env.signIn(t)

	rec := doRequest(t, h, http.MethodGet, "/api/events?start=2025-03-05&end=2025-03-06", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[eventsResponse](t, rec)
	assert.Len(t, body.Events, 3)
	assert.True(t, body.Range.Start.Equal(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)))

	rec = doRequest(t, h, http.MethodGet, "/api/events?start=2025-03-10T00:00:00Z&end=2025-03-11T00:00:00Z", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"events":[]`)

	for _, q := range []string{"", "?start=2025-03-05", "?start=2025-03-06&end=2025-03-05", "?start=soon&end=later"} {
		rec = doRequest(t, h, http.MethodGet, "/api/events"+q, nil, cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHTTPServer_CreateEvent(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()
	cookie := env.signIn(t)

	rec := doRequest(t, h, http.MethodPost, "/api/events", createEventRequest{
		Title:           "Sync",
		Start:           "2025-03-06T10:00",
		End:             "2025-03-06T10:30",
		TimeZone:        "Europe/Berlin",
		Attendees:       " a@example.com, ,b@example.com ",
		IsOnlineMeeting: true,
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[event.Event](t, rec)
	assert.Equal(t, "created-1", created.ID)

	drafts := env.backend.createdDrafts()
	require.Len(t, drafts, 1)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, drafts[0].Attendees)
	assert.True(t, drafts[0].IsOnlineMeeting)
	assert.True(t, drafts[0].Start.Equal(time.Date(2025, 3, 6, 9, 0, 0, 0, time.UTC)))

	// The view is refreshed and shows the new meeting.
	rec = doRequest(t, h, http.MethodGet, "/api/view", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody[viewBody](t, rec).eventIDs(), "created-1")
}

func TestHTTPServer_CreateEventInvalid(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()
	cookie := env.signIn(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing title", createEventRequest{Start: "2025-03-06T10:00", End: "2025-03-06T11:00"}},
		{"end before start", createEventRequest{Title: "x", Start: "2025-03-06T11:00", End: "2025-03-06T10:00"}},
		{"unknown zone", createEventRequest{Title: "x", Start: "2025-03-06T10:00", End: "2025-03-06T11:00", TimeZone: "Mars/Olympus"}},
		{"unknown field", map[string]string{"subject": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/events", tt.body, cookie)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", decodeBody[ErrorResponse](t, rec).Error)
		})
	}
	assert.Empty(t, env.backend.createdDrafts())
}

func TestParseTime(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	got, err := parseTime("2025-03-06T10:00:00+02:00", berlin)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 6, 8, 0, 0, 0, time.UTC)))

	got, err = parseTime("2025-03-06", berlin)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 6, 0, 0, 0, 0, berlin)))

	_, err = parseTime("06/03/2025", berlin)
	assert.ErrorIs(t, err, errBadRequest)
}
