package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/clock"
	"github.com/teemow/calview/internal/instrumentation"
	"github.com/teemow/calview/internal/logging"
	"github.com/teemow/calview/internal/view"
)

const (
	// SessionCookieName is the name of the browser session cookie
	SessionCookieName = "calview_session"

	// DefaultSessionTTL is how long an idle session is kept
	DefaultSessionTTL = 24 * time.Hour

	sessionCleanupInterval = 10 * time.Minute
)

// Session is the server side state of one browser session
type Session struct {
	mu sync.Mutex

	account    *auth.Account
	controller *view.Controller

	// pending PKCE login
	state    string
	verifier string

	lastAccess time.Time
}

// Account returns the signed-in account of the session
func (s *Session) Account() (auth.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return auth.Account{}, false
	}
	return *s.account, true
}

// Controller returns the calendar view of the session
func (s *Session) Controller() *view.Controller {
	return s.controller
}

// SetAccount signs the session in and points its view at source
func (s *Session) SetAccount(account auth.Account, source view.Source) {
	s.mu.Lock()
	s.account = &account
	s.mu.Unlock()
	s.controller.SetSource(source)
}

// ClearAccount signs the session out and drops the loaded events
func (s *Session) ClearAccount() {
	s.mu.Lock()
	s.account = nil
	s.mu.Unlock()
	s.controller.Clear()
}

// SetPending stores the state and PKCE verifier of a login in progress
func (s *Session) SetPending(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.verifier = verifier
}

// TakePending returns the verifier of the pending login if state matches.
// The pending login is consumed either way.
func (s *Session) TakePending(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expected, verifier := s.state, s.verifier
	s.state, s.verifier = "", ""
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		return "", false
	}
	return verifier, true
}

// SessionManager maps session cookies to sessions.
// Each browser gets its own account and view, so several users can share
// one server instance.
type SessionManager struct {
	sessions map[string]*Session // Maps hashed cookie value to session
	mu       sync.RWMutex

	ttl           time.Duration
	clock         clock.Clock
	newController func() *view.Controller
	secure        bool
	logger        logging.Logger
	metrics       *instrumentation.Metrics

	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	stopOnce      sync.Once
}

// SessionOption configures a SessionManager
type SessionOption func(*SessionManager)

// WithSessionTTL sets the idle timeout of sessions
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSessionClock sets the clock used for expiry
func WithSessionClock(c clock.Clock) SessionOption {
	return func(m *SessionManager) { m.clock = c }
}

// WithControllerFactory sets how the view of a new session is created
func WithControllerFactory(f func() *view.Controller) SessionOption {
	return func(m *SessionManager) { m.newController = f }
}

// WithSecureCookies marks session cookies Secure even on plain HTTP,
// for deployments behind a TLS terminating proxy
func WithSecureCookies(secure bool) SessionOption {
	return func(m *SessionManager) { m.secure = secure }
}

// WithSessionLogger sets the logger
func WithSessionLogger(l logging.Logger) SessionOption {
	return func(m *SessionManager) { m.logger = l }
}

// WithSessionMetrics reports the number of live sessions
func WithSessionMetrics(metrics *instrumentation.Metrics) SessionOption {
	return func(m *SessionManager) { m.metrics = metrics }
}

// NewSessionManager creates a session manager and starts its cleanup goroutine.
// Call Stop to release it.
func NewSessionManager(opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		sessions: make(map[string]*Session),
		ttl:      DefaultSessionTTL,
		clock:    clock.System{},
		newController: func() *view.Controller {
			return view.NewController(nil)
		},
		logger:      logging.NewSlogAdapter(nil),
		cleanupDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.cleanupTicker = time.NewTicker(sessionCleanupInterval)
	go m.cleanupLoop()

	return m
}

// sessionKey hashes the cookie value so raw session ids are never kept in memory
func sessionKey(cookieValue string) string {
	hash := sha256.Sum256([]byte(cookieValue))
	return hex.EncodeToString(hash[:])
}

// Lookup returns the live session of the request, if any
func (m *SessionManager) Lookup(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	key := sessionKey(cookie.Value)
	now := m.clock.Now()

	m.mu.RLock()
	sess, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if now.Sub(sess.lastAccess) > m.ttl {
		return nil, false
	}
	sess.lastAccess = now
	return sess, true
}

// Resolve returns the session of the request, creating one and setting the
// session cookie when the request has none.
func (m *SessionManager) Resolve(w http.ResponseWriter, r *http.Request) *Session {
	if sess, ok := m.Lookup(r); ok {
		return sess
	}

	id := uuid.NewString()
	sess := &Session{
		controller: m.newController(),
		lastAccess: m.clock.Now(),
	}

	m.mu.Lock()
	m.sessions[sessionKey(id)] = sess
	m.mu.Unlock()
	m.metrics.IncrementActiveSessions(r.Context())

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	m.logger.Debug("created session")
	return sess
}

// Remove deletes the session of the request and expires its cookie
func (m *SessionManager) Remove(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		key := sessionKey(cookie.Value)
		m.mu.Lock()
		_, ok := m.sessions[key]
		delete(m.sessions, key)
		m.mu.Unlock()
		if ok {
			m.metrics.DecrementActiveSessions(r.Context())
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RemoveExpired drops idle sessions and returns how many were removed
func (m *SessionManager) RemoveExpired(ctx context.Context) int {
	now := m.clock.Now()

	m.mu.Lock()
	var expired []*Session
	for key, sess := range m.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastAccess)
		sess.mu.Unlock()
		if idle > m.ttl {
			delete(m.sessions, key)
			expired = append(expired, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.controller.Clear()
		m.metrics.DecrementActiveSessions(ctx)
	}
	return len(expired)
}

func (m *SessionManager) cleanupLoop() {
	for {
		select {
		case <-m.cleanupTicker.C:
			if n := m.RemoveExpired(context.Background()); n > 0 {
				m.logger.Info("cleaned up expired sessions", "count", n)
			}
		case <-m.cleanupDone:
			return
		}
	}
}

// Stop stops the session cleanup goroutine
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() {
		m.cleanupTicker.Stop()
		close(m.cleanupDone)
	})
}
