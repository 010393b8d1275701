package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securewatch/securewatch/internal/client"
	"github.com/securewatch/securewatch/internal/config"
	"github.com/securewatch/securewatch/internal/credential"
	"github.com/securewatch/securewatch/internal/dispatch"
	"github.com/securewatch/securewatch/internal/gate"
	"github.com/securewatch/securewatch/internal/rbac"
	"github.com/securewatch/securewatch/internal/server"
	"github.com/securewatch/securewatch/internal/session"
)

const (
	adminEmail  = "root@securewatch.test"
	adminPasswd = "supersecret"
)

func startStub(t *testing.T) *httptest.Server {
	t.Helper()

	srv, err := server.New(config.AuthStubConfig{
		Addr:               "127.0.0.1:0",
		DatabaseURL:        filepath.Join(t.TempDir(), "authstub.sqlite"),
		JWTSecret:          "test-secret",
		TokenTTL:           time.Hour,
		SuperAdminEmail:    adminEmail,
		SuperAdminPassword: adminPasswd,
	}, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// newEnv wires a fresh session core, the way one CLI invocation would
func newEnv(apiURL string, store *credential.Store) *Env {
	machine := session.New(client.New(apiURL, dispatch.New(store)), store, zerolog.Nop())
	return &Env{
		Config: &config.Config{
			API:        config.APIConfig{URL: apiURL},
			TokenStore: config.TokenStoreConfig{Backend: "memory"},
		},
		Store:   store,
		Session: machine,
		Gate:    gate.New(machine),
		Logger:  zerolog.Nop(),
	}
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func memoryStore() *credential.Store {
	return credential.New(credential.NewMemoryBackend(), zerolog.Nop())
}

func loginAsAdmin(t *testing.T, apiURL string, store *credential.Store) {
	t.Helper()

	out, err := run(t, NewLoginCmd(newEnv(apiURL, store)), "--email", adminEmail, "--password", adminPasswd)
	require.NoError(t, err)
	require.Contains(t, out, "✓ Login successful!")
}

func TestLogin(t *testing.T) {
	ts := startStub(t)
	store := memoryStore()

	out, err := run(t, NewLoginCmd(newEnv(ts.URL, store)), "--email", adminEmail, "--password", adminPasswd)
	require.NoError(t, err)

	assert.Contains(t, out, "Role: super_admin")
	assert.Contains(t, out, "Home: /super-admin/dashboard")

	token, ok := store.Get()
	assert.True(t, ok)
	assert.NotEmpty(t, token)
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := startStub(t)
	store := memoryStore()

	_, err := run(t, NewLoginCmd(newEnv(ts.URL, store)), "--email", adminEmail, "--password", "nope")
	require.Error(t, err)

	assert.True(t, strings.HasPrefix(err.Error(), "login failed"))
	assert.ErrorIs(t, err, &session.Error{Kind: session.InvalidCredentials})

	_, ok := store.Get()
	assert.False(t, ok)
}

func TestLogin_NetworkHint(t *testing.T) {
	ts := startStub(t)
	url := ts.URL
	ts.Close()

	_, err := run(t, NewLoginCmd(newEnv(url, memoryStore())), "--email", adminEmail, "--password", adminPasswd)
	require.Error(t, err)
	assert.ErrorIs(t, err, &session.Error{Kind: session.NetworkFailure})
	assert.Contains(t, err.Error(), "is the API at the configured URL running?")
}

func TestLogin_NonInteractiveNeedsPassword(t *testing.T) {
	t.Setenv("SECUREWATCH_PASSWORD", "")
	t.Setenv("SECUREWATCH_EMAIL", "")

	_, err := run(t, NewLoginCmd(newEnv("http://127.0.0.1:1", memoryStore())), "--email", adminEmail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-interactive")
}

func TestLogin_EnvCredentials(t *testing.T) {
	ts := startStub(t)
	t.Setenv("SECUREWATCH_EMAIL", adminEmail)
	t.Setenv("SECUREWATCH_PASSWORD", adminPasswd)

	out, err := run(t, NewLoginCmd(newEnv(ts.URL, memoryStore())))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Login successful!")
}

func TestLogin_LogoutWhileInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"late","user":{"id":"u-1","name":"Late","role":"viewer"}}`))
	}))
	t.Cleanup(ts.Close)

	store := memoryStore()
	env := newEnv(ts.URL, store)

	errCh := make(chan error, 1)
	go func() {
		_, err := run(t, NewLoginCmd(env), "--email", "late@example.test", "--password", "password1")
		errCh <- err
	}()

	<-started
	env.Session.Logout()
	close(release)

	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrSuperseded)

	_, ok := store.Get()
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	ts := startStub(t)
	store := memoryStore()

	out, err := run(t, NewRegisterCmd(newEnv(ts.URL, store)),
		"--name", "Jane Doe", "--email", "jane@example.com", "--password", "password1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Account created!")

	out, err = run(t, NewWhoamiCmd(newEnv(ts.URL, store)))
	require.NoError(t, err)
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "Role:  viewer")
}

func TestRegister_ValidationSkipsNetwork(t *testing.T) {
	_, err := run(t, NewRegisterCmd(newEnv("http://127.0.0.1:1", memoryStore())),
		"--name", "Jane", "--email", "not-an-email", "--password", "password1")
	require.Error(t, err)
	assert.ErrorIs(t, err, &session.Error{Kind: session.InvalidCredentials})
}

func TestWhoami_JSON(t *testing.T) {
	ts := startStub(t)
	store := memoryStore()
	loginAsAdmin(t, ts.URL, store)

	out, err := run(t, NewWhoamiCmd(newEnv(ts.URL, store)), "--json", "--refresh")
	require.NoError(t, err)

	var got struct {
		Email        string   `json:"email"`
		Role         string   `json:"role"`
		Home         string   `json:"home"`
		Capabilities []string `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, adminEmail, got.Email)
	assert.Equal(t, "super_admin", got.Role)
	assert.Equal(t, "/super-admin/dashboard", got.Home)
	assert.Contains(t, got.Capabilities, string(rbac.CapCreateAdminAccount))
}

func TestWhoami_NotLoggedIn(t *testing.T) {
	ts := startStub(t)

	_, err := run(t, NewWhoamiCmd(newEnv(ts.URL, memoryStore())))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestWhoami_StaleTokenIsForgotten(t *testing.T) {
	ts := startStub(t)
	store := memoryStore()
	store.Set("garbage")

	_, err := run(t, NewWhoamiCmd(newEnv(ts.URL, store)))
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, ok := store.Get()
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	ts := startStub(t)
	store := memoryStore()
	loginAsAdmin(t, ts.URL, store)

	out, err := run(t, NewLogoutCmd(newEnv(ts.URL, store)))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Logged out")

	_, ok := store.Get()
	assert.False(t, ok)

	out, err = run(t, NewLogoutCmd(newEnv(ts.URL, store)))
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestStatus(t *testing.T) {
	ts := startStub(t)
	store := memoryStore()
	loginAsAdmin(t, ts.URL, store)

	out, err := run(t, NewStatusCmd(newEnv(ts.URL, store)))
	require.NoError(t, err)
	assert.Contains(t, out, "Phase:         authenticated")
	assert.Contains(t, out, "Authenticated: true")

	out, err = run(t, NewStatusCmd(newEnv(ts.URL, memoryStore())), "--json")
	require.NoError(t, err)

	var state session.State
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.False(t, state.IsAuthenticated)
	assert.True(t, state.HasHydrated)
	assert.Nil(t, state.User)
}

func TestCan(t *testing.T) {
	ts := startStub(t)
	store := memoryStore()
	loginAsAdmin(t, ts.URL, store)

	out, err := run(t, NewCanCmd(newEnv(ts.URL, store)), "accounts:create_admin", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "allowed:")

	out, err = run(t, NewCanCmd(newEnv(ts.URL, store)), "--exact", "police", "admin")
	assert.ErrorIs(t, err, ErrDenied)
	assert.Contains(t, out, "denied:")
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		role    rbac.Role
		args    []string
		exact   bool
		want    bool
		wantErr bool
	}{
		{name: "capability granted", role: rbac.RolePolice, args: []string{"map:view"}, want: true},
		{name: "capability missing", role: rbac.RoleViewer, args: []string{"map:view"}, want: false},
		{name: "role at least", role: rbac.RoleAdmin, args: []string{"police"}, want: true},
		{name: "role below", role: rbac.RolePolice, args: []string{"admin"}, want: false},
		{name: "all must pass", role: rbac.RolePolice, args: []string{"map:view", "users:manage"}, want: false},
		{name: "exact match", role: rbac.RolePolice, args: []string{"police", "admin"}, exact: true, want: true},
		{name: "exact excludes higher", role: rbac.RoleSuperAdmin, args: []string{"police", "admin"}, exact: true, want: false},
		{name: "unknown role fails closed", role: rbac.Role("root"), args: []string{"viewer"}, want: false},
		{name: "unknown capability", role: rbac.RoleAdmin, args: []string{"launch:missiles"}, wantErr: true},
		{name: "exact with capability", role: rbac.RoleAdmin, args: []string{"map:view"}, exact: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := check(tt.role, tt.args, tt.exact)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// logoutScheduler ends the session instead of revalidating it
type logoutScheduler struct {
	session *session.Machine
}

func (s logoutScheduler) Run(ctx context.Context) error {
	s.session.Logout()
	<-ctx.Done()
	return ctx.Err()
}

func TestRunWatch_EndsWithSession(t *testing.T) {
	ts := startStub(t)
	store := memoryStore()
	loginAsAdmin(t, ts.URL, store)

	env := newEnv(ts.URL, store)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	view, err := env.ready(ctx)
	require.NoError(t, err)
	require.True(t, view.IsAuthenticated)

	var out bytes.Buffer
	err = runWatch(ctx, &out, env.Gate, logoutScheduler{session: env.Session})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "anonymous")
	assert.True(t, strings.HasSuffix(out.String(), "Session ended\n"))
}

func TestWatch_RequiresSession(t *testing.T) {
	ts := startStub(t)

	_, err := run(t, NewWatchCmd(newEnv(ts.URL, memoryStore())))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestWatch_BadSchedule(t *testing.T) {
	ts := startStub(t)
	store := memoryStore()
	loginAsAdmin(t, ts.URL, store)

	_, err := run(t, NewWatchCmd(newEnv(ts.URL, store)), "--schedule", "not a cron")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid revalidation schedule")
}
