package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/layout"
)

const sampleYAML = `
provider:
  kind: microsoft
  client_id: app-id
  tenant: contoso
backend:
  kind: caldav
  caldav:
    endpoint: https://dav.example.com
    username: jane
    calendar: Work
layout:
  pixels_per_hour: 120
  min_height: 20
  time_zone: Europe/Berlin
storage:
  token_store: bolt
  cache_path: /tmp/calview-cache.db
server:
  addr: ":9000"
  base_url: https://calview.example.com/
  session_ttl: 2h
allow_write: true
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Backend, cfg.Backend)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, TokenStoreFile, cfg.Storage.TokenStore)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, auth.ProviderMicrosoft, cfg.Provider.Kind)
	assert.Equal(t, "app-id", cfg.Provider.ClientID)
	assert.Equal(t, "contoso", cfg.Provider.Tenant)
	assert.Equal(t, BackendCalDAV, cfg.Backend.Kind)
	assert.Equal(t, "Work", cfg.Backend.CalDAV.CalendarName)
	assert.Equal(t, 120.0, cfg.Layout.PixelsPerHour)
	assert.Equal(t, TokenStoreBolt, cfg.Storage.TokenStore)
	assert.Equal(t, 2*time.Hour, cfg.Server.SessionTTL)
	assert.True(t, cfg.AllowWrite)

	// Unset sections keep their defaults
	assert.Equal(t, DefaultMetricsAddr, cfg.Metrics.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "error reading config file")

	_, err = Load(writeFile(t, "provider: [unclosed"))
	assert.ErrorContains(t, err, "error parsing config file")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CALVIEW_PROVIDER", "Microsoft")
	t.Setenv("CALVIEW_CLIENT_ID", "env-client")
	t.Setenv("CALVIEW_BACKEND", "caldav")
	t.Setenv("CALDAV_ENDPOINT", "https://dav.example.org")
	t.Setenv("CALDAV_PASSWORD", "secret")
	t.Setenv("CALVIEW_TIME_ZONE", "Asia/Tokyo")
	t.Setenv("GOOGLE_CLIENT_ID", "ignored-for-microsoft")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, auth.ProviderMicrosoft, cfg.Provider.Kind)
	assert.Equal(t, "env-client", cfg.Provider.ClientID)
	assert.Equal(t, BackendCalDAV, cfg.Backend.Kind)
	assert.Equal(t, "https://dav.example.org", cfg.Backend.CalDAV.Endpoint)
	assert.Equal(t, "secret", cfg.Backend.CalDAV.Password)
	assert.Equal(t, "Asia/Tokyo", cfg.Layout.TimeZone)
}

func TestApplyEnv_GoogleClientVariables(t *testing.T) {
	t.Setenv("CALVIEW_PROVIDER", "")
	t.Setenv("CALVIEW_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_ID", "google-client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "google-secret")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "google-client", cfg.Provider.ClientID)
	assert.Equal(t, "google-secret", cfg.Provider.ClientSecret)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:        "unknown backend",
			mutate:      func(c *Config) { c.Backend.Kind = "exchange" },
			errContains: "unknown backend",
		},
		{
			name:        "caldav without endpoint",
			mutate:      func(c *Config) { c.Backend.Kind = BackendCalDAV },
			errContains: "requires caldav.endpoint",
		},
		{
			name: "google backend with microsoft sign-in",
			mutate: func(c *Config) {
				c.Provider.Kind = auth.ProviderMicrosoft
			},
			errContains: "requires the google identity provider",
		},
		{
			name: "caldav with microsoft sign-in",
			mutate: func(c *Config) {
				c.Provider.Kind = auth.ProviderMicrosoft
				c.Backend.Kind = BackendCalDAV
				c.Backend.CalDAV.Endpoint = "https://dav.example.com"
			},
		},
		{
			name:        "unknown token store",
			mutate:      func(c *Config) { c.Storage.TokenStore = "redis" },
			errContains: "unknown token store",
		},
		{
			name:        "negative layout",
			mutate:      func(c *Config) { c.Layout.MinHeight = -1 },
			errContains: "must not be negative",
		},
		{
			name:        "unknown time zone",
			mutate:      func(c *Config) { c.Layout.TimeZone = "Mars/Olympus" },
			errContains: "unknown time zone",
		},
		{
			name:        "bad telemetry",
			mutate:      func(c *Config) { c.Telemetry.TraceSamplingRate = 2 },
			errContains: "sampling rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidate_DerivesRedirectURL(t *testing.T) {
	cfg, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://calview.example.com/auth/callback", cfg.Provider.RedirectURL)
}

func TestLayoutOptions(t *testing.T) {
	cfg, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	opts, err := cfg.LayoutOptions()
	require.NoError(t, err)
	assert.Equal(t, 2.0, opts.PixelsPerMinute)
	assert.Equal(t, 20.0, opts.MinHeight)
	assert.Equal(t, "Europe/Berlin", opts.Location.String())

	opts, err = Default().LayoutOptions()
	require.NoError(t, err)
	assert.Equal(t, layout.DefaultOptions().PixelsPerMinute, opts.PixelsPerMinute)
	assert.Equal(t, time.Local, opts.Location)
}

func TestStoragePaths(t *testing.T) {
	cfg := Default()
	cfg.Storage.TokenDir = "/var/lib/calview"

	dir, err := cfg.TokenDir()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/calview", dir)

	path, err := cfg.BoltPath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/calview/tokens.db", path)
}
