// Package session owns the authenticated session: the bearer token, its
// expiry, the user record fetched at login, and the logout-on-expiry policy
// that gates every schedule operation.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/example/dutyroster/internal/duty"
	"github.com/example/dutyroster/internal/logging"
	"github.com/example/dutyroster/internal/metrics"
	"github.com/example/dutyroster/internal/remote"
)

// Session is the authenticated state issued by a successful login. The three
// fields live and die together: they are set on login and cleared as one on
// any logout path.
type Session struct {
	Token     string
	User      duty.User
	ExpiresAt time.Time
}

// Authenticator performs the remote login exchange. *remote.Client satisfies
// it.
type Authenticator interface {
	Login(ctx context.Context, params remote.LoginParams) (remote.LoginResult, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface. It lets
// wiring code break the construction cycle between the manager (which needs
// an authenticator) and the remote client (which needs the manager as its
// token source).
type AuthenticatorFunc func(ctx context.Context, params remote.LoginParams) (remote.LoginResult, error)

// Login implements Authenticator.
func (f AuthenticatorFunc) Login(ctx context.Context, params remote.LoginParams) (remote.LoginResult, error) {
	return f(ctx, params)
}

// Manager holds at most one active session and enforces its lifecycle. It is
// the only component that mutates the session; everything else observes it
// through Current and the remote.TokenSource methods.
type Manager struct {
	authenticator Authenticator
	now           func() time.Time
	defaultTTL    time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	current *Session
}

// NewManager constructs a Manager. A nil now falls back to time.Now and a
// non-positive defaultTTL falls back to one hour; the default TTL is used only
// when neither expires_in nor a token exp claim yields an expiry.
func NewManager(authenticator Authenticator, now func() time.Time, defaultTTL time.Duration, logger *slog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Manager{
		authenticator: authenticator,
		now:           now,
		defaultTTL:    defaultTTL,
		logger:        logger,
	}
}

// Login exchanges credentials for a session, replacing any session already
// active. It fails with ErrUnauthorized on rejected credentials or an
// unreachable remote.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	if m.authenticator == nil {
		return Session{}, fmt.Errorf("session: authenticator not configured")
	}

	username = strings.TrimSpace(username)
	logger := logging.Component(ctx, m.logger, "SessionManager", "Login", "username", username)

	result, err := m.authenticator.Login(ctx, remote.LoginParams{Username: username, Password: password})
	if err != nil {
		logger.WarnContext(ctx, "login failed", "error", err, "error_kind", duty.ErrorKind(err))
		return Session{}, err
	}

	now := m.now()
	session := Session{
		Token:     result.AccessToken,
		User:      result.User,
		ExpiresAt: m.resolveExpiry(now, result),
	}

	m.mu.Lock()
	m.current = &session
	m.mu.Unlock()

	logger.With("user", result.User.Username, "expires_at", session.ExpiresAt).
		InfoContext(ctx, "session established")
	return session, nil
}

// resolveExpiry picks the session deadline: the explicit expires_in window
// when the backend sent one, else the token's own exp claim, else the
// configured default TTL.
func (m *Manager) resolveExpiry(now time.Time, result remote.LoginResult) time.Time {
	if result.ExpiresIn > 0 {
		return now.Add(time.Duration(result.ExpiresIn) * time.Second)
	}
	if exp, ok := tokenExpiry(result.AccessToken); ok && exp.After(now) {
		return exp
	}
	return now.Add(m.defaultTTL)
}

// tokenExpiry reads the exp claim from a JWT access token without verifying
// the signature; the client has no signing secret and the backend remains the
// authority, this is only an expiry hint.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := new(jwt.Parser).ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}, false
	}
	exp, ok := claims["exp"].(float64)
	if !ok || exp <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0), true
}

// Current returns the active session, if any. A session past its deadline is
// torn down as a side effect and reported as absent.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	session := m.current
	stale := session != nil && !m.now().Before(session.ExpiresAt)
	if stale {
		m.current = nil
	}
	m.mu.Unlock()

	if session == nil {
		return Session{}, false
	}
	if stale {
		metrics.ForcedLogout()
		m.log().Info("session expired", "user", session.User.Username)
		return Session{}, false
	}
	return *session, true
}

// Logout clears the session unconditionally. It is idempotent.
func (m *Manager) Logout() {
	m.mu.Lock()
	had := m.current != nil
	m.current = nil
	m.mu.Unlock()

	if had {
		m.log().Info("session cleared")
	}
}

// Remaining returns the time left before the session deadline, floored at
// zero. An absent session reports zero.
func (m *Manager) Remaining() time.Duration {
	m.mu.Lock()
	session := m.current
	now := m.now()
	m.mu.Unlock()

	if session == nil {
		return 0
	}
	remaining := session.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Active reports whether a non-expired session is present. It shares Current's
// teardown side effect on stale sessions.
func (m *Manager) Active() bool {
	_, ok := m.Current()
	return ok
}

// Token implements remote.TokenSource.
func (m *Manager) Token() (string, bool) {
	session, ok := m.Current()
	if !ok {
		return "", false
	}
	return session.Token, true
}

// Invalidate implements remote.TokenSource. The remote client calls it when
// the backend answers 401, which is the authoritative expiry signal.
func (m *Manager) Invalidate(ctx context.Context) {
	m.mu.Lock()
	had := m.current != nil
	m.current = nil
	m.mu.Unlock()

	if had {
		metrics.ForcedLogout()
		logging.Component(ctx, m.logger, "SessionManager", "Invalidate").
			WarnContext(ctx, "session invalidated by remote")
	}
}

// Watch re-evaluates the session on a fixed interval until the context is
// cancelled, forcing logout the first time it observes expiry. It is a coarse
// safety net; per-call 401 detection remains the source of truth.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Current()
		}
	}
}

func (m *Manager) log() *slog.Logger {
	if m.logger != nil {
		return m.logger.With("component", "SessionManager")
	}
	return slog.Default().With("component", "SessionManager")
}
