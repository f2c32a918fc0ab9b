package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"truthguard/internal/authclient"
	"truthguard/internal/errs"
	"truthguard/internal/gate"
	"truthguard/internal/store"
	"truthguard/pkg/domain"
)

type fakeIdentity struct {
	mu           sync.Mutex
	loginUser    domain.User
	loginToken   string
	loginErr     error
	registerErr  error
	refreshToken string
	refreshErr   error
	loginCalls   int
}

func (f *fakeIdentity) Login(_ context.Context, _, _ string) (domain.User, string, error) {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	if f.loginErr != nil {
		return domain.User{}, "", f.loginErr
	}
	return f.loginUser, f.loginToken, nil
}

func (f *fakeIdentity) Register(_ context.Context, _, _, _ string) (domain.User, string, error) {
	if f.registerErr != nil {
		return domain.User{}, "", f.registerErr
	}
	return f.loginUser, f.loginToken, nil
}

func (f *fakeIdentity) Refresh(_ context.Context, _ string) (string, error) {
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.refreshToken, nil
}

func (f *fakeIdentity) RequestPasswordReset(_ context.Context, _ string) error { return nil }

func (f *fakeIdentity) ResetPassword(_ context.Context, _, _ string) error { return nil }

type countingResetter struct {
	st    *store.MemoryStore
	calls int
}

func (r *countingResetter) Reset() error {
	r.calls++
	return r.st.SaveUsageCount(0)
}

func testUser() domain.User {
	return domain.User{ID: "u1", Email: "a@example.com", Name: "A", Role: domain.RoleUser}
}

func TestRestorePopulatesSessionFromStore(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.SaveToken("tok"); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if err := st.SaveUser(testUser()); err != nil {
		t.Fatalf("save user: %v", err)
	}

	m := NewManager(st, &fakeIdentity{})
	m.Restore()
	if !m.IsAuthenticated() {
		t.Fatal("restored session should be authenticated")
	}
	sess := m.Session()
	if sess.Token != "tok" || sess.User == nil || sess.User.ID != "u1" {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestRestoreDiscardsPartialState(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.SaveToken("orphan-token"); err != nil {
		t.Fatalf("save token: %v", err)
	}

	m := NewManager(st, &fakeIdentity{})
	m.Restore()
	if m.IsAuthenticated() {
		t.Fatal("a token without a user must not authenticate")
	}
	if _, found, _ := st.Token(); found {
		t.Fatal("orphan token should be cleared from the store")
	}
}

func TestRestoreOnEmptyStoreYieldsGuestSession(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), &fakeIdentity{})
	m.Restore()
	if m.IsAuthenticated() {
		t.Fatal("empty store should restore a guest session")
	}
}

func TestLoginEstablishesSessionAndResetsUsage(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.SaveUsageCount(3); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	id := &fakeIdentity{loginUser: testUser(), loginToken: "tok-new"}
	m := NewManager(st, id)
	resetter := &countingResetter{st: st}
	m.BindUsageGate(resetter)

	user, err := m.Login(context.Background(), "A@Example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected user %+v", user)
	}
	if !m.IsAuthenticated() {
		t.Fatal("session should be authenticated after login")
	}
	tok, found, _ := st.Token()
	if !found || tok != "tok-new" {
		t.Fatalf("token not persisted: %q found=%v", tok, found)
	}
	if _, found, _ := st.User(); !found {
		t.Fatal("user not persisted")
	}
	n, _ := st.UsageCount()
	if n != 0 {
		t.Fatalf("usage counter should be 0 after login, got %d", n)
	}
	if resetter.calls != 1 {
		t.Fatalf("gate reset calls = %d, want 1", resetter.calls)
	}
}

func TestLoginFailureLeavesPriorSessionUntouched(t *testing.T) {
	st := store.NewMemoryStore()
	id := &fakeIdentity{loginUser: testUser(), loginToken: "tok-1"}
	m := NewManager(st, id)
	if _, err := m.Login(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("first login: %v", err)
	}

	id.loginErr = &authclient.APIError{Status: 401, Detail: "Invalid password"}
	_, err := m.Login(context.Background(), "a@example.com", "wrong")
	var authErr *errs.AuthError
	if !errors.As(err, &authErr) || authErr.Reason != errs.AuthInvalidCredentials {
		t.Fatalf("expected invalid-credentials AuthError, got %v", err)
	}
	if !m.IsAuthenticated() {
		t.Fatal("failed login must not clear the existing session")
	}
	if tok, _, _ := st.Token(); tok != "tok-1" {
		t.Fatalf("persisted token changed to %q", tok)
	}
}

func TestLoginErrorCausesAreDistinguishable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want errs.AuthReason
	}{
		{"invalid credentials", &authclient.APIError{Status: 401, Detail: "Invalid password"}, errs.AuthInvalidCredentials},
		{"user not found", &authclient.APIError{Status: 404, Detail: "User does not exist"}, errs.AuthInvalidCredentials},
		{"locked account", &authclient.APIError{Status: 423, Detail: "Account locked"}, errs.AuthAccountLocked},
		{"locked by detail", &authclient.APIError{Status: 403, Detail: "account temporarily locked"}, errs.AuthAccountLocked},
		{"network failure", errors.New("dial tcp: connection refused"), errs.AuthNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(store.NewMemoryStore(), &fakeIdentity{loginErr: tc.err})
			_, err := m.Login(context.Background(), "a@example.com", "pw")
			var authErr *errs.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthError, got %v", err)
			}
			if authErr.Reason != tc.want {
				t.Fatalf("reason = %q, want %q", authErr.Reason, tc.want)
			}
		})
	}
}

func TestSignupRejectsWeakPasswordLocally(t *testing.T) {
	cases := []struct {
		name     string
		password string
	}{
		{"too short", "Ab1shortpw"},
		{"eleven chars", "Abcdefghij1"},
		{"no lowercase", "ABCDEFGHIJK1"},
		{"no uppercase", "abcdefghijk1"},
		{"no digit", "Abcdefghijkl"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := &fakeIdentity{}
			m := NewManager(store.NewMemoryStore(), id)
			_, err := m.Signup(context.Background(), "a@example.com", tc.password, "A")
			if !errs.IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSignupTwelveCharPolicyPasswordIsAccepted(t *testing.T) {
	id := &fakeIdentity{loginUser: testUser(), loginToken: "tok"}
	m := NewManager(store.NewMemoryStore(), id)
	if _, err := m.Signup(context.Background(), "a@example.com", "Abcdefghijk1", "A"); err != nil {
		t.Fatalf("signup with policy-conforming password: %v", err)
	}
	if !m.IsAuthenticated() {
		t.Fatal("signup should authenticate")
	}
}

func TestSignupRejectsBadEmailLocally(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), &fakeIdentity{})
	_, err := m.Signup(context.Background(), "not-an-email", "Abcdefghijk1", "A")
	if !errs.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLogoutClearsSessionButNotUsageCounter(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.SaveUsageCount(2); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	id := &fakeIdentity{loginUser: testUser(), loginToken: "tok"}
	m := NewManager(st, id)
	if _, err := m.Login(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := st.SaveUsageCount(2); err != nil {
		t.Fatalf("re-seed counter: %v", err)
	}

	m.Logout()
	if m.IsAuthenticated() {
		t.Fatal("logout must clear the session")
	}
	if _, found, _ := st.Token(); found {
		t.Fatal("logout must clear the persisted token")
	}
	n, _ := st.UsageCount()
	if n != 2 {
		t.Fatalf("logout must not reset the usage counter, got %d", n)
	}
}

func TestRefreshFailureForcesLogout(t *testing.T) {
	st := store.NewMemoryStore()
	id := &fakeIdentity{loginUser: testUser(), loginToken: "tok"}
	m := NewManager(st, id)
	if _, err := m.Login(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	id.refreshErr = &authclient.APIError{Status: 401, Detail: "Token expired"}
	err := m.Refresh(context.Background())
	var authErr *errs.AuthError
	if !errors.As(err, &authErr) || authErr.Reason != errs.AuthExpiredCredential {
		t.Fatalf("expected expired-credential AuthError, got %v", err)
	}
	if m.IsAuthenticated() {
		t.Fatal("failed refresh must not leave a half-valid session")
	}
	if _, found, _ := st.Token(); found {
		t.Fatal("failed refresh must clear the persisted token")
	}
}

func TestRefreshReplacesTokenAndKeepsUser(t *testing.T) {
	st := store.NewMemoryStore()
	id := &fakeIdentity{loginUser: testUser(), loginToken: "tok-old", refreshToken: "tok-renewed"}
	m := NewManager(st, id)
	if _, err := m.Login(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	sess := m.Session()
	if sess.Token != "tok-renewed" {
		t.Fatalf("token after refresh = %q", sess.Token)
	}
	if sess.User == nil || sess.User.ID != "u1" {
		t.Fatalf("user should survive refresh, got %+v", sess.User)
	}
	if tok, _, _ := st.Token(); tok != "tok-renewed" {
		t.Fatalf("persisted token = %q", tok)
	}
}

func TestRefreshWithoutSessionFails(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), &fakeIdentity{})
	err := m.Refresh(context.Background())
	var authErr *errs.AuthError
	if !errors.As(err, &authErr) || authErr.Reason != errs.AuthMissingCredential {
		t.Fatalf("expected missing-credential AuthError, got %v", err)
	}
}

func TestConcurrentAuthAndGateChecksDoNotWedge(t *testing.T) {
	st := store.NewMemoryStore()
	id := &fakeIdentity{loginUser: testUser(), loginToken: "tok"}
	m := NewManager(st, id)
	g := gate.New(st, m.IsAuthenticated)
	m.BindUsageGate(g)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 200; j++ {
					if _, err := m.Login(context.Background(), "a@example.com", "pw"); err != nil {
						t.Errorf("login: %v", err)
						return
					}
					m.Logout()
				}
			}()
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 200; j++ {
					if _, err := g.ShouldBlock(); err != nil {
						t.Errorf("should block: %v", err)
						return
					}
					if err := g.RecordAttempt(); err != nil {
						t.Errorf("record attempt: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("login/logout and gate checks wedged each other")
	}
}

func TestTokenExpiryPeeksIntoJWT(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "a@example.com",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	st := store.NewMemoryStore()
	id := &fakeIdentity{loginUser: testUser(), loginToken: signed}
	m := NewManager(st, id)
	if _, err := m.Login(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	got, ok := m.TokenExpiry()
	if !ok {
		t.Fatal("expected expiry from JWT token")
	}
	if !got.Equal(exp) {
		t.Fatalf("expiry = %v, want %v", got, exp)
	}
}

func TestTokenExpiryOpaqueTokenReportsUnknown(t *testing.T) {
	st := store.NewMemoryStore()
	id := &fakeIdentity{loginUser: testUser(), loginToken: "opaque-session-token"}
	m := NewManager(st, id)
	if _, err := m.Login(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, ok := m.TokenExpiry(); ok {
		t.Fatal("opaque token must not report an expiry")
	}
}
