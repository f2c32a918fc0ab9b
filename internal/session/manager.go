// Package session owns the client's authentication session: the single
// Session value, its persistence, and every transition that touches it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"truthguard/internal/authclient"
	"truthguard/internal/errs"
	"truthguard/internal/store"
	"truthguard/pkg/domain"
)

// IdentityClient is the remote identity service surface the manager needs.
type IdentityClient interface {
	Login(ctx context.Context, email, password string) (domain.User, string, error)
	Register(ctx context.Context, email, password, name string) (domain.User, string, error)
	Refresh(ctx context.Context, token string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// UsageResetter is the gate hook invoked exactly on successful
// authentication. The reset-on-auth invariant lives here, in one place.
type UsageResetter interface {
	Reset() error
}

// Manager keeps the in-memory Session and the StateStore synchronized.
// All mutations go through one mutex; token and user are always written
// together, so IsAuthenticated can never observe a half-set credential.
type Manager struct {
	mu    sync.Mutex
	store store.StateStore
	auth  IdentityClient
	gate  UsageResetter
	sess  domain.Session
}

// NewManager builds a manager over the given store and identity client.
// Bind the usage gate afterwards with BindUsageGate.
func NewManager(st store.StateStore, auth IdentityClient) *Manager {
	return &Manager{store: st, auth: auth}
}

// BindUsageGate registers the gate whose counter is reset on successful
// login or signup.
func (m *Manager) BindUsageGate(gate UsageResetter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

// Restore hydrates the session from the store. Called once at startup and
// performs no network I/O. Anything structurally invalid — a token without
// a user, a user without a token, an unreadable record — is discarded and
// the session starts empty; a parse failure never reaches the caller.
func (m *Manager) Restore() {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, hasToken, tokErr := m.store.Token()
	user, hasUser, userErr := m.store.User()
	if tokErr != nil || userErr != nil {
		slog.Warn("stored session unreadable, starting signed out", "token_err", tokErr, "user_err", userErr)
		m.sess = domain.Session{}
		return
	}
	if !hasToken || !hasUser || user.ID == "" {
		if hasToken || hasUser {
			// Half a credential pair is as good as none; drop the leftover.
			if err := m.store.ClearSession(); err != nil {
				slog.Warn("failed to clear partial session", "err", err)
			}
		}
		m.sess = domain.Session{}
		return
	}
	m.sess = domain.Session{Token: token, User: &user}
}

// Session returns a copy of the current session.
func (m *Manager) Session() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.sess
	if sess.User != nil {
		u := *sess.User
		sess.User = &u
	}
	return sess
}

// IsAuthenticated is derived from the session, never cached separately.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.IsAuthenticated()
}

// Token returns the current bearer token, if any.
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.Token, m.sess.Token != ""
}

// Login exchanges credentials for a session. On success the session is
// replaced wholesale, persisted, and the usage counter reset; on failure
// the prior session is left untouched.
func (m *Manager) Login(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, &errs.ValidationError{Reason: "email and password are required"}
	}
	user, token, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return domain.User{}, mapAuthFailure(err)
	}
	m.establish(token, user)
	return user, nil
}

// Signup registers a new identity. The password policy and email format are
// enforced locally, before any network call; the atomicity and counter-reset
// contract is the same as Login's.
func (m *Manager) Signup(ctx context.Context, email, password, name string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := ValidateEmail(email); err != nil {
		return domain.User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return domain.User{}, err
	}
	if strings.TrimSpace(name) == "" {
		return domain.User{}, &errs.ValidationError{Reason: "name is required"}
	}
	user, token, err := m.auth.Register(ctx, email, password, name)
	if err != nil {
		return domain.User{}, mapAuthFailure(err)
	}
	m.establish(token, user)
	return user, nil
}

// Logout clears the session and its persisted copy. It is synchronous and
// cannot fail; the usage counter is deliberately not reset, so a logout/login
// cycle cannot be used to refill the guest quota.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = domain.Session{}
	if err := m.store.ClearSession(); err != nil {
		slog.Warn("failed to clear persisted session", "err", err)
	}
}

// Refresh exchanges the current credential for a renewed token. A failed
// refresh means the session is no longer trustworthy: it applies Logout
// semantics rather than leaving a stale token behind.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	token := m.sess.Token
	m.mu.Unlock()
	if token == "" {
		return &errs.AuthError{Reason: errs.AuthMissingCredential, Message: "no session to refresh"}
	}

	newToken, err := m.auth.Refresh(ctx, token)
	if err != nil {
		m.Logout()
		return &errs.AuthError{Reason: errs.AuthExpiredCredential, Message: "session expired, please sign in again"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.User == nil {
		// Logged out while the refresh was in flight; drop the new token.
		return nil
	}
	m.sess.Token = newToken
	if err := m.store.SaveToken(newToken); err != nil {
		slog.Warn("failed to persist refreshed token", "err", err)
	}
	return nil
}

// RequestPasswordReset asks the identity service to mail a reset token.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := m.auth.RequestPasswordReset(ctx, email); err != nil {
		return mapAuthFailure(err)
	}
	return nil
}

// ResetPassword redeems a reset token. The new password goes through the
// same local policy as signup before the network call.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return &errs.ValidationError{Reason: "reset token is required"}
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if err := m.auth.ResetPassword(ctx, token, newPassword); err != nil {
		return mapAuthFailure(err)
	}
	return nil
}

// TokenExpiry reports when the current token expires, when that is knowable.
// The token is opaque by contract, but in practice it is often a JWT; the
// peek is unverified and purely best-effort, used only to schedule a
// proactive refresh. Tokens that do not parse report no expiry.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	m.mu.Lock()
	token := m.sess.Token
	m.mu.Unlock()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// establish installs a fresh credential pair: memory first, then store, then
// the usage counter reset, all under one lock so no reader can observe a
// contradictory IsAuthenticated.
func (m *Manager) establish(token string, user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := user
	m.sess = domain.Session{Token: token, User: &u}
	if err := m.store.SaveToken(token); err != nil {
		slog.Warn("failed to persist token", "err", err)
	}
	if err := m.store.SaveUser(user); err != nil {
		slog.Warn("failed to persist user", "err", err)
	}
	if m.gate != nil {
		if err := m.gate.Reset(); err != nil {
			slog.Warn("failed to reset usage counter", "err", err)
		}
	}
}

// mapAuthFailure translates an identity service failure into the error
// taxonomy. Causes stay distinguishable: invalid credentials, locked
// account, and network failure each map to their own reason.
func mapAuthFailure(err error) error {
	var apiErr *authclient.APIError
	if !errors.As(err, &apiErr) {
		return &errs.AuthError{Reason: errs.AuthNetwork, Message: "could not reach the sign-in service"}
	}
	switch {
	case apiErr.Status == 423 || strings.Contains(strings.ToLower(apiErr.Detail), "locked"):
		return &errs.AuthError{Reason: errs.AuthAccountLocked, Message: apiErr.Detail}
	case apiErr.Status >= 500:
		return &errs.ServerError{Detail: apiErr.Detail}
	default:
		return &errs.AuthError{Reason: errs.AuthInvalidCredentials, Message: apiErr.Detail}
	}
}
