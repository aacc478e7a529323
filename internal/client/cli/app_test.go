package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/edumarket/internal/client/config"
	"github.com/dmitrijs2005/edumarket/internal/client/token/tokentest"
	"github.com/dmitrijs2005/edumarket/internal/common"
)

type backend struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	cartCounts map[string]int
	logins     int
}

func newBackend(t *testing.T) *backend {
	b := &backend{t: t, cartCounts: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user/token/", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
			return
		}
		b.mu.Lock()
		b.logins++
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access": tokentest.Mint(t, tokentest.Options{
				UserID: 42, Username: "ann", Email: body.Email, TeacherID: 0,
				TokenType: "access", ExpiresAt: time.Now().Add(time.Hour),
			}),
			"refresh": tokentest.Refresh(t, 42, time.Now().Add(24*time.Hour)),
		})
	})
	mux.HandleFunc("/api/v1/cart/cart-count/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/cart/cart-count/"), "/")
		b.mu.Lock()
		n := b.cartCounts[id]
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]int{"count": n})
	})
	mux.HandleFunc("/api/v1/user/profile/42/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get(common.AuthorizationHeaderName), common.BearerPrefix) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":1,"full_name":"Ann Smith","country":"Latvia","about":null,"image":null}`))
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func testConfig(t *testing.T, apiURL, dbPath string) *config.Config {
	t.Helper()

	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"address":{"country":"Latvija"}}`))
	}))
	t.Cleanup(geoSrv.Close)

	var c config.Config
	c.LoadDefaults()
	c.APIBaseURL = apiURL
	c.DatabasePath = dbPath
	c.LogLevel = "error"
	c.StorageQuotaBytes = 1 << 20
	c.MonitorInterval = time.Hour
	c.CartSyncRate = 0
	c.GeocoderURL = geoSrv.URL
	require.NoError(t, c.Validate())
	return &c
}

// stubPrompts answers text prompts from answers in order and every password
// prompt with pw.
func stubPrompts(t *testing.T, pw string, answers ...string) {
	t.Helper()
	origText, origPw := getSimpleText, getPassword

	var mu sync.Mutex
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(answers) == 0 {
			return "", io.EOF
		}
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}
	getPassword = func(string, io.Writer) (string, error) { return pw, nil }

	t.Cleanup(func() { getSimpleText, getPassword = origText, origPw })
}

func startApp(t *testing.T, cfg *config.Config) (*App, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	a, err := NewApp(ctx, cfg)
	require.NoError(t, err)
	a.out = io.Discard
	require.NoError(t, a.Start(ctx))

	stop := func() {
		cancel()
		a.wg.Wait()
		require.NoError(t, a.Close())
	}
	return a, stop
}

func TestApp_SessionLifecycle(t *testing.T) {
	out := captureOutput(t)
	b := newBackend(t)
	b.cartCounts["0000001662"] = 3

	cfg := testConfig(t, b.srv.URL+"/api/v1/", filepath.Join(t.TempDir(), "edu.db"))
	a, stop := startApp(t, cfg)
	defer stop()

	ctx := context.Background()
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, common.LoginRoute, a.nav.CurrentRoute(), "no session routes to login")

	stubPrompts(t, "pw", "ann@example.com")
	require.NoError(t, a.Login(ctx))
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, common.HomeRoute, a.nav.CurrentRoute())
	assert.Equal(t, "Ann Smith", a.session.Snapshot().Profile.FullName)

	require.Eventually(t, func() bool { return a.session.Snapshot().CartCount == 3 },
		2*time.Second, 10*time.Millisecond, "watcher syncs the count for the new user")
	assert.Equal(t, "(ann student cart:3)", a.getStatus())

	require.NoError(t, a.Cart(ctx))
	assert.Contains(t, out.String(), "Cart ID: 0000001662")

	require.NoError(t, a.WhoAmI(ctx))
	assert.Contains(t, out.String(), "ann")

	require.NoError(t, a.Storage(ctx, []string{"check"}))
	assert.Contains(t, out.String(), "Storage is healthy")

	require.NoError(t, a.Storage(ctx, nil))
	assert.Contains(t, out.String(), "of 1048576 bytes")

	require.NoError(t, a.Country(ctx, []string{"56.95", "24.1"}))
	assert.Contains(t, out.String(), "Tax country: Latvija")

	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, common.LoginRoute, a.nav.CurrentRoute())
	assert.Contains(t, out.String(), "[!] You have been logged out")

	pair, err := a.jar.Tokens(ctx, nil)
	require.NoError(t, err)
	assert.False(t, pair.Complete())
	assert.Equal(t, "(guest cart:0)", a.getStatus())
}

func TestApp_LoginFailureShowsDetail(t *testing.T) {
	out := captureOutput(t)
	b := newBackend(t)

	a, stop := startApp(t, testConfig(t, b.srv.URL+"/api/v1/", filepath.Join(t.TempDir(), "edu.db")))
	defer stop()

	stubPrompts(t, "wrong", "ann@example.com")
	require.Error(t, a.Login(context.Background()))
	assert.Contains(t, out.String(), "No active account found")
	assert.False(t, a.isLoggedIn())
}

func TestApp_InvalidFormNotSent(t *testing.T) {
	captureOutput(t)
	b := newBackend(t)

	a, stop := startApp(t, testConfig(t, b.srv.URL+"/api/v1/", filepath.Join(t.TempDir(), "edu.db")))
	defer stop()

	stubPrompts(t, "pw", "not-an-email")
	require.Error(t, a.Login(context.Background()))

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Zero(t, b.logins)
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	captureOutput(t)
	b := newBackend(t)
	cfg := testConfig(t, b.srv.URL+"/api/v1/", filepath.Join(t.TempDir(), "edu.db"))

	a, stop := startApp(t, cfg)
	stubPrompts(t, "pw", "ann@example.com")
	require.NoError(t, a.Login(context.Background()))
	stop()

	a2, stop2 := startApp(t, cfg)
	defer stop2()

	assert.True(t, a2.isLoggedIn())
	assert.Equal(t, "42", a2.session.Snapshot().UserID())
	assert.Equal(t, common.HomeRoute, a2.nav.CurrentRoute())
}

func TestApp_StorageClearNeedsConfirmation(t *testing.T) {
	out := captureOutput(t)
	b := newBackend(t)

	a, stop := startApp(t, testConfig(t, b.srv.URL+"/api/v1/", filepath.Join(t.TempDir(), "edu.db")))
	defer stop()
	ctx := context.Background()

	require.NoError(t, a.store.Set(ctx, "course-cache", []byte(`{"id":1}`)))

	stubPrompts(t, "pw", "n")
	require.NoError(t, a.Storage(ctx, []string{"clear"}))
	assert.Contains(t, out.String(), "Cancelled")
	assert.NotNil(t, a.store.Get(ctx, "course-cache"))

	stubPrompts(t, "pw", "y")
	require.NoError(t, a.Storage(ctx, []string{"clear"}))
	assert.Nil(t, a.store.Get(ctx, "course-cache"))
}

func TestApp_BackgroundConfirmDefersToUser(t *testing.T) {
	out := captureOutput(t)
	a := &App{}

	assert.False(t, a.confirm(context.Background(), "Clear storage?"))
	assert.Contains(t, out.String(), "storage clear")
}

func TestMetricsRouter(t *testing.T) {
	h := metricsRouter()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "edumarket_storage_usage_ratio")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_BadDatabase(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	cfg := testConfig(t, "http://127.0.0.1:1/api/v1/", filepath.Join(blocker, "edu.db"))
	_, err := NewApp(context.Background(), cfg)
	assert.Error(t, err)
}
