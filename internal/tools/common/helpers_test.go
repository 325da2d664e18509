package common

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/oauth2"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/calendar"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/instrumentation"
	"github.com/teemow/calview/internal/server"
)

type stubBackend struct{ name string }

func (b stubBackend) Name() string { return b.name }

func (b stubBackend) ListEvents(context.Context, event.Range) ([]event.Event, error) {
	return nil, nil
}

func (b stubBackend) CreateEvent(_ context.Context, d event.Draft) (event.Event, error) {
	return event.Event{ID: "1", Title: d.Title, Start: d.Start, End: d.End}, nil
}

type testEnv struct {
	sc     *server.ServerContext
	audit  *bytes.Buffer
	reader *sdkmetric.ManualReader
}

// newTestEnv creates a server context with the given signed-in accounts.
// The account sorting first becomes the current one.
func newTestEnv(t *testing.T, accounts ...string) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := auth.NewMemoryStore()
	for _, id := range accounts {
		require.NoError(t, store.Save(ctx, auth.Record{
			Account: auth.Account{ID: id, Email: id},
			Token:   &oauth2.Token{AccessToken: "access-" + id, Expiry: time.Now().Add(time.Hour)},
		}))
	}
	authSvc := auth.New(auth.ProviderConfig{
		Kind:        auth.ProviderGoogle,
		ClientID:    "client",
		RedirectURL: "http://localhost/auth/callback",
	}, store)
	require.NoError(t, authSvc.Init(ctx))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := instrumentation.NewMetrics(mp.Meter("test"), true)
	require.NoError(t, err)

	var audit bytes.Buffer
	auditLogger := instrumentation.NewAuditLogger(
		slog.New(slog.NewJSONHandler(&audit, nil)),
		instrumentation.AuditLoggingConfig{Enabled: true, IncludePII: true})

	factory := func(_ context.Context, account auth.Account, _ oauth2.TokenSource) (calendar.Backend, error) {
		return stubBackend{name: "stub-" + account.ID}, nil
	}
	sc, err := server.NewServerContext(ctx, authSvc, factory,
		server.WithMetrics(metrics),
		server.WithAuditLogger(auditLogger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	return &testEnv{sc: sc, audit: &audit, reader: reader}
}
