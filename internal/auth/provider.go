package auth

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	gcal "google.golang.org/api/calendar/v3"
)

// ProviderKind names an identity provider
type ProviderKind string

const (
	ProviderGoogle    ProviderKind = "google"
	ProviderMicrosoft ProviderKind = "microsoft"
)

// DefaultTenant is the Azure AD tenant used when none is configured
const DefaultTenant = "common"

// DefaultGoogleScopes grant calendar access and the OpenID profile
var DefaultGoogleScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	gcal.CalendarScope,
}

// DefaultMicrosoftScopes grant calendar access through Microsoft Graph
var DefaultMicrosoftScopes = []string{
	"openid",
	"profile",
	"email",
	"offline_access",
	"User.Read",
	"Calendars.ReadWrite",
}

const (
	googleUserInfoURL    = "https://openidconnect.googleapis.com/v1/userinfo"
	microsoftUserInfoURL = "https://graph.microsoft.com/oidc/userinfo"
)

// ProviderConfig describes the OAuth2 client registration
type ProviderConfig struct {
	Kind         ProviderKind `yaml:"kind"`
	ClientID     string       `yaml:"client_id"`
	ClientSecret string       `yaml:"client_secret"`
	Tenant       string       `yaml:"tenant"`
	RedirectURL  string       `yaml:"redirect_url"`
	Scopes       []string     `yaml:"scopes"`

	// Endpoint and UserInfoURL override the provider defaults
	Endpoint    oauth2.Endpoint `yaml:"-"`
	UserInfoURL string          `yaml:"-"`
}

// Validate checks that the configuration can be used to build a client
func (c ProviderConfig) Validate() error {
	switch c.Kind {
	case ProviderGoogle, ProviderMicrosoft:
	case "":
		return fmt.Errorf("%w: provider kind is required", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unsupported provider %q", ErrInvalidConfig, c.Kind)
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.RedirectURL) == "" {
		return fmt.Errorf("%w: redirect url is required", ErrInvalidConfig)
	}
	return nil
}

// OAuth2Config builds the oauth2 client configuration with provider defaults
func (c ProviderConfig) OAuth2Config() *oauth2.Config {
	conf := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint:     c.Endpoint,
	}

	switch c.Kind {
	case ProviderMicrosoft:
		if conf.Endpoint.AuthURL == "" {
			tenant := c.Tenant
			if tenant == "" {
				tenant = DefaultTenant
			}
			conf.Endpoint = microsoft.AzureADEndpoint(tenant)
		}
		if len(conf.Scopes) == 0 {
			conf.Scopes = DefaultMicrosoftScopes
		}
	default:
		if conf.Endpoint.AuthURL == "" {
			conf.Endpoint = google.Endpoint
		}
		if len(conf.Scopes) == 0 {
			conf.Scopes = DefaultGoogleScopes
		}
	}
	return conf
}

func (c ProviderConfig) userInfoURL() string {
	if c.UserInfoURL != "" {
		return c.UserInfoURL
	}
	if c.Kind == ProviderMicrosoft {
		return microsoftUserInfoURL
	}
	return googleUserInfoURL
}
