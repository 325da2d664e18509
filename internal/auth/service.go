package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/calview/internal/logging"
)

// Results reported to Metrics
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultExpired = "expired"
)

// Metrics receives authentication measurements. instrumentation.Metrics implements it.
type Metrics interface {
	RecordOAuthAuth(ctx context.Context, result string)
	RecordOAuthTokenRefresh(ctx context.Context, result string)
}

// Service manages sign-in and token refresh for one identity provider
type Service struct {
	cfg        ProviderConfig
	store      TokenStore
	logger     *slog.Logger
	metrics    Metrics
	httpClient *http.Client

	mu          sync.RWMutex
	initialized bool
	oauth       *oauth2.Config
	current     string
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithHTTPClient sets the client used for token and userinfo requests
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.httpClient = c
	}
}

// New creates an uninitialized Service. Call Init before use.
func New(cfg ProviderConfig, store TokenStore, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init validates the provider configuration and restores the most recently
// known account from the token store.
func (s *Service) Init(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.store == nil {
		return fmt.Errorf("%w: token store is required", ErrInvalidConfig)
	}

	accounts, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored accounts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauth = s.cfg.OAuth2Config()
	s.initialized = true
	if len(accounts) > 0 {
		s.current = accounts[0].ID
	}

	s.logger.Info("auth service initialized",
		slog.String("provider", string(s.cfg.Kind)),
		logging.Count(len(accounts)))
	return nil
}

// Close releases the token store. The service cannot be used afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}
	s.initialized = false
	s.current = ""
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Provider returns the configured provider kind
func (s *Service) Provider() ProviderKind {
	return s.cfg.Kind
}

func (s *Service) config() (*oauth2.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.oauth, nil
}

func (s *Service) clientContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// NewState returns a random value for the OAuth state parameter
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthCodeURL returns the provider consent URL for state together with the
// PKCE verifier that must be passed to Exchange.
func (s *Service) AuthCodeURL(state string) (string, string, error) {
	conf, err := s.config()
	if err != nil {
		return "", "", err
	}

	verifier := oauth2.GenerateVerifier()
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if s.cfg.Kind == ProviderGoogle {
		// Google only issues refresh tokens for offline access.
		opts = append(opts, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	}
	return conf.AuthCodeURL(state, opts...), verifier, nil
}

// Exchange trades an authorization code for tokens, stores them and makes
// the signed-in account current.
func (s *Service) Exchange(ctx context.Context, code, verifier string) (Account, error) {
	conf, err := s.config()
	if err != nil {
		return Account{}, err
	}

	tok, err := conf.Exchange(s.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		s.recordAuth(ctx, ResultFailure)
		return Account{}, fmt.Errorf("failed to exchange auth code: %w", err)
	}

	acc, ok := accountFromIDToken(tok)
	if !ok {
		acc, err = fetchUserInfo(ctx, s.httpClient, s.cfg.userInfoURL(), tok)
		if err != nil {
			s.recordAuth(ctx, ResultFailure)
			return Account{}, err
		}
	}

	if err := s.store.Save(ctx, Record{Account: acc, Token: tok}); err != nil {
		s.recordAuth(ctx, ResultFailure)
		return Account{}, fmt.Errorf("failed to save token: %w", err)
	}

	s.mu.Lock()
	s.current = acc.ID
	s.mu.Unlock()

	s.recordAuth(ctx, ResultSuccess)
	s.logger.Info("user signed in",
		slog.String("provider", string(s.cfg.Kind)),
		logging.UserHash(acc.Email))
	return acc, nil
}

// Token returns a valid access token for accountID, refreshing it silently
// when it has expired. Refreshed tokens are written back to the store.
func (s *Service) Token(ctx context.Context, accountID string) (*oauth2.Token, error) {
	conf, err := s.config()
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Load(ctx, accountID)
	if errors.Is(err, ErrTokenNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if rec.Token == nil {
		return nil, ErrNotAuthenticated
	}
	if rec.Token.Valid() {
		return rec.Token, nil
	}

	if rec.Token.RefreshToken == "" {
		s.recordRefresh(ctx, ResultExpired)
		return nil, fmt.Errorf("%w: token expired and no refresh token is available", ErrInteractionRequired)
	}

	fresh, err := conf.TokenSource(s.clientContext(ctx), rec.Token).Token()
	if err != nil {
		s.recordRefresh(ctx, ResultFailure)
		s.logger.Warn("silent token refresh failed",
			logging.UserHash(rec.Account.Email),
			logging.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrInteractionRequired, err)
	}
	s.recordRefresh(ctx, ResultSuccess)

	if err := s.store.Save(ctx, Record{Account: rec.Account, Token: fresh}); err != nil {
		// The fresh token is still usable for this call.
		s.logger.Warn("failed to save refreshed token",
			logging.UserHash(rec.Account.Email),
			logging.Err(err))
	}
	return fresh, nil
}

// TokenSource returns an oauth2.TokenSource backed by Token for accountID.
// ctx bounds every refresh made through the source.
func (s *Service) TokenSource(ctx context.Context, accountID string) (oauth2.TokenSource, error) {
	if _, err := s.config(); err != nil {
		return nil, err
	}
	return oauth2.ReuseTokenSource(nil, &accountTokenSource{ctx: ctx, svc: s, account: accountID}), nil
}

type accountTokenSource struct {
	ctx     context.Context
	svc     *Service
	account string
}

func (ts *accountTokenSource) Token() (*oauth2.Token, error) {
	return ts.svc.Token(ts.ctx, ts.account)
}

// GetTokenForAccount returns a valid token for account
func (s *Service) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	return s.Token(ctx, account)
}

// HasTokenForAccount reports whether a token is stored for account
func (s *Service) HasTokenForAccount(account string) bool {
	if _, err := s.config(); err != nil {
		return false
	}
	_, err := s.store.Load(context.Background(), account)
	return err == nil
}

// Logout removes the stored token of accountID. When it was the current
// account, no account is current afterwards.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	if _, err := s.config(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	s.mu.Lock()
	if s.current == accountID {
		s.current = ""
	}
	s.mu.Unlock()

	s.logger.Info("user signed out", logging.UserHash(accountID))
	return nil
}

// IsAuthenticated reports whether a current account is set
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized && s.current != ""
}

// CurrentAccount returns the most recently signed-in account
func (s *Service) CurrentAccount(ctx context.Context) (Account, error) {
	s.mu.RLock()
	initialized, current := s.initialized, s.current
	s.mu.RUnlock()

	if !initialized {
		return Account{}, ErrNotInitialized
	}
	if current == "" {
		return Account{}, ErrNotAuthenticated
	}
	rec, err := s.store.Load(ctx, current)
	if errors.Is(err, ErrTokenNotFound) {
		return Account{}, ErrNotAuthenticated
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	return rec.Account, nil
}

// Accounts lists every account with a stored token
func (s *Service) Accounts(ctx context.Context) ([]Account, error) {
	if _, err := s.config(); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

func (s *Service) recordAuth(ctx context.Context, result string) {
	if s.metrics != nil {
		s.metrics.RecordOAuthAuth(ctx, result)
	}
}

func (s *Service) recordRefresh(ctx context.Context, result string) {
	if s.metrics != nil {
		s.metrics.RecordOAuthTokenRefresh(ctx, result)
	}
}
