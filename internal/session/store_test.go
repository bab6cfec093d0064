package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/energynexus/nexus-cli/internal/api"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	result    *api.LoginResult
	loginErr  error
	logoutErr error
	logouts   []string
	registers int
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*api.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.result, nil
}

func (f *fakeAuth) Register(ctx context.Context, reg models.Registration) error {
	f.registers++
	return nil
}

func (f *fakeAuth) Logout(ctx context.Context, token string) error {
	f.logouts = append(f.logouts, token)
	return f.logoutErr
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin@nexus.com",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestLogin_UsesTokenExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	auth := &fakeAuth{result: &api.LoginResult{Token: signedToken(t, exp), Role: models.RoleAdmin, Username: "admin"}}
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(auth, Options{Path: path})

	sess, err := store.Login(context.Background(), "admin@nexus.com", "secret")
	require.NoError(t, err)
	assert.True(t, sess.Expiry.Equal(exp))
	assert.Equal(t, "admin@nexus.com", sess.Identity.Email)
	assert.Equal(t, StateAuthenticated, store.State())
	assert.Equal(t, sess.Token, store.Token())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLogin_FallbackTTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	auth := &fakeAuth{result: &api.LoginResult{Token: "opaque", Role: models.RoleUser}}
	store := NewStore(auth, Options{FallbackTTL: time.Hour, Now: func() time.Time { return now }})

	sess, err := store.Login(context.Background(), "u@nexus.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), sess.Expiry)
}

func TestLogin_FailureKeepsState(t *testing.T) {
	auth := &fakeAuth{loginErr: &api.Error{Kind: api.KindAuthentication, Code: api.CodeInvalidCredentials}}
	store := NewStore(auth, Options{})

	_, err := store.Login(context.Background(), "u@nexus.com", "wrong")
	assert.True(t, api.HasCode(err, api.CodeInvalidCredentials))
	assert.Nil(t, store.Current())
	assert.Equal(t, "", store.Token())
}

func TestInvalidate_TearsDownExactlyOnce(t *testing.T) {
	auth := &fakeAuth{result: &api.LoginResult{Token: "tok", Role: models.RoleUser}}
	store := NewStore(auth, Options{Path: filepath.Join(t.TempDir(), "session.json")})

	var calls atomic.Int32
	store.OnTeardown(func(reason error) { calls.Add(1) })

	_, err := store.Login(context.Background(), "u@nexus.com", "secret")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Invalidate("tok", errors.New("forbidden"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateUnauthenticated, store.State())
	assert.Equal(t, "", store.Token())
}

func TestInvalidate_StaleTokenIgnored(t *testing.T) {
	auth := &fakeAuth{result: &api.LoginResult{Token: "new", Role: models.RoleUser}}
	store := NewStore(auth, Options{})
	_, err := store.Login(context.Background(), "u@nexus.com", "secret")
	require.NoError(t, err)

	store.Invalidate("old", errors.New("late 403"))
	assert.Equal(t, "new", store.Token())
}

func TestLogout_ClearsLocalStateEvenWhenBackendFails(t *testing.T) {
	auth := &fakeAuth{
		result:    &api.LoginResult{Token: "tok", Role: models.RoleUser},
		logoutErr: errors.New("connection refused"),
	}
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(auth, Options{Path: path})
	_, err := store.Login(context.Background(), "u@nexus.com", "secret")
	require.NoError(t, err)

	var reason error
	store.OnTeardown(func(r error) { reason = r })

	require.NoError(t, store.Logout(context.Background()))
	assert.Equal(t, []string{"tok"}, auth.logouts)
	assert.ErrorIs(t, reason, ErrLoggedOut)
	assert.Nil(t, store.Current())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	auth := &fakeAuth{result: &api.LoginResult{Token: signedToken(t, time.Now().Add(time.Hour)), Role: models.RoleAdmin}}

	first := NewStore(auth, Options{Path: path})
	_, err := first.Login(context.Background(), "admin@nexus.com", "secret")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := NewStore(auth, Options{Path: path})
	sess := second.Restore()
	require.NotNil(t, sess)
	assert.Equal(t, models.RoleAdmin, sess.Identity.Role)
	assert.Equal(t, StateAuthenticated, second.State())
}

func TestRestore_BadDataReturnsNil(t *testing.T) {
	tests := map[string]string{
		"corrupt":   `{not json`,
		"wrong key": `{"other": {"token": "x"}}`,
		"expired":   `{"nexus-session": {"identity": {"role": "USER"}, "token": "x", "expiry": "2000-01-01T00:00:00Z"}}`,
		"no role":   `{"nexus-session": {"identity": {}, "token": "x", "expiry": "2999-01-01T00:00:00Z"}}`,
		"null":      `null`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			store := NewStore(&fakeAuth{}, Options{Path: path})
			assert.NotPanics(t, func() {
				assert.Nil(t, store.Restore())
			})
			assert.Equal(t, StateUnauthenticated, store.State())
		})
	}
}

func TestRestore_MissingFile(t *testing.T) {
	store := NewStore(&fakeAuth{}, Options{Path: filepath.Join(t.TempDir(), "none.json")})
	assert.Nil(t, store.Restore())
}

func TestToken_ExpiryTriggersTeardown(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	auth := &fakeAuth{result: &api.LoginResult{Token: "tok", Role: models.RoleUser}}
	store := NewStore(auth, Options{FallbackTTL: time.Minute, Now: func() time.Time { return clock() }})
	_, err := store.Login(context.Background(), "u@nexus.com", "secret")
	require.NoError(t, err)

	var reason error
	store.OnTeardown(func(r error) { reason = r })

	clock = func() time.Time { return now.Add(2 * time.Minute) }
	assert.Equal(t, "", store.Token())
	assert.ErrorIs(t, reason, ErrExpired)
}

func TestRegister_DoesNotTouchSession(t *testing.T) {
	auth := &fakeAuth{}
	store := NewStore(auth, Options{})
	require.NoError(t, store.Register(context.Background(), models.Registration{Username: "ops", Email: "ops@nexus.com", Password: "secret1"}))
	assert.Equal(t, 1, auth.registers)
	assert.Nil(t, store.Current())
}

func TestClose_DisposesStore(t *testing.T) {
	auth := &fakeAuth{result: &api.LoginResult{Token: "tok", Role: models.RoleUser}}
	store := NewStore(auth, Options{})
	_, err := store.Login(context.Background(), "u@nexus.com", "secret")
	require.NoError(t, err)

	var calls int
	store.OnTeardown(func(error) { calls++ })
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	assert.Equal(t, 1, calls)
	_, err = store.Login(context.Background(), "u@nexus.com", "secret")
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestRequireAdmin(t *testing.T) {
	auth := &fakeAuth{result: &api.LoginResult{Token: "tok", Role: models.RoleUser}}
	store := NewStore(auth, Options{})
	_, err := store.RequireAdmin()
	assert.ErrorIs(t, err, api.ErrNotAuthenticated)

	_, err = store.Login(context.Background(), "u@nexus.com", "secret")
	require.NoError(t, err)
	_, err = store.RequireAdmin()
	assert.Error(t, err)
}
