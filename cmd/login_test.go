package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/calview/internal/auth"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "bare code", input: "  4/abc-def \n", want: "4/abc-def"},
		{name: "redirect URL", input: "http://localhost:8080/auth/callback?state=s1&code=xyz", want: "xyz"},
		{name: "path only", input: "/auth/callback?code=xyz&state=s1", want: "xyz"},
		{name: "empty", input: "   ", wantErr: "no authorization code"},
		{name: "state mismatch", input: "http://localhost/auth/callback?state=other&code=xyz", wantErr: "state mismatch"},
		{name: "provider error", input: "http://localhost/auth/callback?state=s1&error=access_denied", wantErr: "access_denied"},
		{name: "missing code", input: "http://localhost/auth/callback?state=s1", wantErr: "no authorization code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractCode(tt.input, "s1")
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// newTokenServer accepts "good-code" with a PKCE verifier and issues an
// id_token for ada@example.com
func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "7",
		"name":  "Ada Lovelace",
		"email": "Ada@Example.com",
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" || r.Form.Get("code_verifier") == "" {
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

func newTestAuth(t *testing.T, store auth.TokenStore) *auth.Service {
	t.Helper()
	provider := newTokenServer(t)
	svc := auth.New(auth.ProviderConfig{
		Kind:        auth.ProviderGoogle,
		ClientID:    "client",
		RedirectURL: "http://localhost/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  provider.URL + "/authorize",
			TokenURL: provider.URL + "/token",
		},
	}, store, auth.WithHTTPClient(provider.Client()))
	require.NoError(t, svc.Init(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestRunLogin(t *testing.T) {
	store := auth.NewMemoryStore()
	svc := newTestAuth(t, store)

	var out bytes.Buffer
	account, err := runLogin(context.Background(), svc, strings.NewReader("good-code\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", account.ID)
	assert.Contains(t, out.String(), "/authorize?")
	assert.Contains(t, out.String(), "code_challenge_method=S256")

	current, err := svc.CurrentAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", current.ID)
	assert.Equal(t, "Ada Lovelace <Ada@Example.com>", accountLabel(current))
}

func TestRunLogin_Failures(t *testing.T) {
	svc := newTestAuth(t, auth.NewMemoryStore())

	_, err := runLogin(context.Background(), svc, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, errNoCode)

	_, err = runLogin(context.Background(), svc, strings.NewReader("bad-code\n"), &bytes.Buffer{})
	assert.Error(t, err)
	assert.False(t, svc.IsAuthenticated())
}

func TestPrintAccounts(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryStore()
	svc := newTestAuth(t, store)

	var out bytes.Buffer
	require.NoError(t, printAccounts(ctx, svc, &out))
	assert.Contains(t, out.String(), "No accounts signed in")

	require.NoError(t, store.Save(ctx, auth.Record{
		Account: auth.Account{ID: "bob@example.com", Email: "bob@example.com"},
		Token:   &oauth2.Token{AccessToken: "b", Expiry: time.Now().Add(time.Hour)},
	}))
	_, err := runLogin(ctx, svc, strings.NewReader("good-code\n"), &bytes.Buffer{})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, printAccounts(ctx, svc, &out))
	assert.Equal(t, "* Ada Lovelace <Ada@Example.com>\n  bob@example.com\n", out.String())
}

func TestAccountLabel(t *testing.T) {
	assert.Equal(t, "x@example.com", accountLabel(auth.Account{ID: "x@example.com", Email: "x@example.com"}))
	assert.Equal(t, "42", accountLabel(auth.Account{ID: "42"}))
}
