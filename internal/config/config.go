package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/calendar/caldav"
	"github.com/teemow/calview/internal/instrumentation"
	"github.com/teemow/calview/internal/layout"
)

// Backend kinds
const (
	BackendGoogle = "google"
	BackendCalDAV = "caldav"
	BackendMulti  = "multi"
)

// Token store kinds
const (
	TokenStoreFile   = "file"
	TokenStoreBolt   = "bolt"
	TokenStoreMemory = "memory"
)

// Defaults
const (
	DefaultHTTPAddr    = ":8080"
	DefaultMetricsAddr = ":9090"
	DefaultBaseURL     = "http://localhost:8080"
)

// ErrInvalid is wrapped by every Validate error
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete calview configuration
type Config struct {
	Provider   auth.ProviderConfig    `yaml:"provider"`
	Backend    BackendConfig          `yaml:"backend"`
	Layout     LayoutConfig           `yaml:"layout"`
	Storage    StorageConfig          `yaml:"storage"`
	Server     ServerConfig           `yaml:"server"`
	Metrics    MetricsConfig          `yaml:"metrics"`
	Telemetry  instrumentation.Config `yaml:"telemetry"`
	AllowWrite bool                   `yaml:"allow_write"`
}

// BackendConfig selects the calendar service(s)
type BackendConfig struct {
	// Kind is google, caldav or multi (google first, then caldav)
	Kind       string        `yaml:"kind"`
	CalendarID string        `yaml:"calendar_id"`
	CalDAV     caldav.Config `yaml:"caldav"`
}

// LayoutConfig holds the display constants of the layout engine
type LayoutConfig struct {
	PixelsPerHour float64 `yaml:"pixels_per_hour"`
	MinHeight     float64 `yaml:"min_height"`
	TimeZone      string  `yaml:"time_zone"`
}

// StorageConfig holds the token store and event cache locations
type StorageConfig struct {
	TokenStore string `yaml:"token_store"`
	TokenDir   string `yaml:"token_dir"`
	BoltPath   string `yaml:"bolt_path"`

	// CachePath is the sqlite event cache. Empty disables caching.
	CachePath string `yaml:"cache_path"`
}

// ServerConfig configures the HTTP transport
type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	BaseURL    string        `yaml:"base_url"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	TLSCert    string        `yaml:"tls_cert"`
	TLSKey     string        `yaml:"tls_key"`
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Provider: auth.ProviderConfig{
			Kind:   auth.ProviderGoogle,
			Tenant: auth.DefaultTenant,
		},
		Backend: BackendConfig{
			Kind: BackendGoogle,
		},
		Layout: LayoutConfig{
			PixelsPerHour: layout.DefaultPixelsPerHour,
			MinHeight:     layout.DefaultMinHeight,
		},
		Storage: StorageConfig{
			TokenStore: TokenStoreFile,
		},
		Server: ServerConfig{
			Addr:       DefaultHTTPAddr,
			BaseURL:    DefaultBaseURL,
			SessionTTL: 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    DefaultMetricsAddr,
		},
		Telemetry: instrumentation.DefaultConfig(),
	}
}

// Load reads the YAML file at path on top of Default. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from CALVIEW_* and provider environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.Provider.ClientID, "CALVIEW_CLIENT_ID")
	setString(&c.Provider.ClientSecret, "CALVIEW_CLIENT_SECRET")
	setString(&c.Provider.Tenant, "CALVIEW_TENANT")
	setString(&c.Provider.RedirectURL, "CALVIEW_REDIRECT_URL")
	if v := os.Getenv("CALVIEW_PROVIDER"); v != "" {
		c.Provider.Kind = auth.ProviderKind(strings.ToLower(v))
	}

	// Same variables as the Google client of the token helpers
	if c.Provider.Kind == auth.ProviderGoogle {
		setString(&c.Provider.ClientID, "GOOGLE_CLIENT_ID")
		setString(&c.Provider.ClientSecret, "GOOGLE_CLIENT_SECRET")
	}

	setString(&c.Backend.Kind, "CALVIEW_BACKEND")
	setString(&c.Backend.CalDAV.Endpoint, "CALDAV_ENDPOINT")
	setString(&c.Backend.CalDAV.Username, "CALDAV_USERNAME")
	setString(&c.Backend.CalDAV.Password, "CALDAV_PASSWORD")
	setString(&c.Backend.CalDAV.CalendarName, "CALDAV_CALENDAR")

	setString(&c.Layout.TimeZone, "CALVIEW_TIME_ZONE")
	setString(&c.Storage.TokenStore, "CALVIEW_TOKEN_STORE")
	setString(&c.Storage.CachePath, "CALVIEW_CACHE_PATH")
	setString(&c.Server.Addr, "CALVIEW_HTTP_ADDR")
	setString(&c.Server.BaseURL, "CALVIEW_BASE_URL")
	setString(&c.Metrics.Addr, "METRICS_ADDR")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the settings needed to start calview. The redirect URL
// defaults to BaseURL + "/auth/callback".
func (c *Config) Validate() error {
	if c.Provider.RedirectURL == "" && c.Server.BaseURL != "" {
		c.Provider.RedirectURL = strings.TrimRight(c.Server.BaseURL, "/") + "/auth/callback"
	}
	if c.Provider.Tenant == "" {
		c.Provider.Tenant = auth.DefaultTenant
	}

	switch c.Backend.Kind {
	case BackendGoogle:
	case BackendCalDAV, BackendMulti:
		if c.Backend.CalDAV.Endpoint == "" {
			return fmt.Errorf("%w: backend %q requires caldav.endpoint", ErrInvalid, c.Backend.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q, must be one of: google, caldav, multi", ErrInvalid, c.Backend.Kind)
	}
	if c.Backend.Kind != BackendCalDAV && c.Provider.Kind != auth.ProviderGoogle {
		return fmt.Errorf("%w: backend %q requires the google identity provider", ErrInvalid, c.Backend.Kind)
	}

	switch c.Storage.TokenStore {
	case TokenStoreFile, TokenStoreBolt, TokenStoreMemory:
	default:
		return fmt.Errorf("%w: unknown token store %q, must be one of: file, bolt, memory", ErrInvalid, c.Storage.TokenStore)
	}

	if c.Layout.PixelsPerHour < 0 || c.Layout.MinHeight < 0 {
		return fmt.Errorf("%w: layout sizes must not be negative", ErrInvalid)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Location returns the configured time zone, or time.Local when unset.
func (c Config) Location() (*time.Location, error) {
	if c.Layout.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Layout.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", c.Layout.TimeZone, err)
	}
	return loc, nil
}

// LayoutOptions converts the layout section into layout.Options
func (c Config) LayoutOptions() (layout.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return layout.Options{}, err
	}
	opts := layout.DefaultOptions()
	if c.Layout.PixelsPerHour > 0 {
		opts.PixelsPerMinute = c.Layout.PixelsPerHour / 60
	}
	if c.Layout.MinHeight > 0 {
		opts.MinHeight = c.Layout.MinHeight
	}
	opts.Location = loc
	return opts, nil
}

// TokenDir returns the token directory, defaulting to the user cache dir.
func (c Config) TokenDir() (string, error) {
	if c.Storage.TokenDir != "" {
		return c.Storage.TokenDir, nil
	}
	return auth.DefaultTokenDir()
}

// BoltPath returns the bbolt token database path, defaulting into TokenDir.
func (c Config) BoltPath() (string, error) {
	if c.Storage.BoltPath != "" {
		return c.Storage.BoltPath, nil
	}
	dir, err := c.TokenDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tokens.db"), nil
}
