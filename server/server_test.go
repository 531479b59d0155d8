package server_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/go-blob-drive/blobs/repofake"
	"github.com/jrsteele09/go-blob-drive/identity"
	"github.com/jrsteele09/go-blob-drive/internal/config"
	"github.com/jrsteele09/go-blob-drive/internal/testing/mockidp"
	"github.com/jrsteele09/go-blob-drive/server"
	"github.com/jrsteele09/go-blob-drive/sessions"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "blob-drive"
	testClientSecret = "blob-drive-secret"
	testBaseURL      = "http://app.test"
	testSecret       = "0123456789abcdef0123456789abcdef-server"
	testMaxUpload    = 64 << 10
)

var janeClaims = map[string]any{
	"name":               "Jane Doe",
	"preferred_username": "jane@example.com",
	"oid":                "00000000-0000-0000-0000-00000000cafe",
}

type testEnv struct {
	cfg        config.Config
	sessionDir string
	idp        *mockidp.Provider
	repo       *repofake.FakeBlobRepo
	sessions   *sessions.Manager
	ts         *httptest.Server
	client     *http.Client
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	idp := mockidp.New(t, testClientID, testClientSecret)

	t.Setenv("ENV", "TEST")
	t.Setenv("BASE_URL", testBaseURL)
	t.Setenv("CLIENT_ID", testClientID)
	t.Setenv("CLIENT_SECRET", testClientSecret)
	t.Setenv("AUTHORITY", idp.Issuer())
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("MAX_UPLOAD_BYTES", "65536")
	t.Setenv("LOG_LEVEL", "error")
	sessionDir := t.TempDir()
	t.Setenv("SESSION_DIR", sessionDir)
	t.Setenv("SESSION_COOKIE_SECURE", "false")
	cfg := config.New()

	idClient, err := identity.New(context.Background(), identity.Settings{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		Authority:    cfg.GetAuthority(),
		RedirectURI:  cfg.GetRedirectURI(),
		Scopes:       cfg.GetScopes(),
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)

	// Default backend: sessions on the filesystem behind a browser session cookie.
	manager, err := sessions.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	repo := repofake.New()
	srv, err := server.New(cfg, idClient, manager, repo)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		cfg:        cfg,
		sessionDir: sessionDir,
		idp:        idp,
		repo:       repo,
		sessions:   manager,
		ts:         ts,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// response is a fully read HTTP response.
type response struct {
	*http.Response
	body string
}

func (e *testEnv) do(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{Response: resp, body: string(body)}
}

func (e *testEnv) get(t *testing.T, path string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.ts.URL+path, nil)
	require.NoError(t, err)
	return e.do(t, req)
}

func (e *testEnv) post(t *testing.T, path string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+path, nil)
	require.NoError(t, err)
	return e.do(t, req)
}

func (e *testEnv) upload(t *testing.T, filename string, content []byte) response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(t, req)
}

// startLogin hits /login and returns the authorization URL the browser was sent to.
func (e *testEnv) startLogin(t *testing.T) *url.URL {
	t.Helper()
	resp := e.get(t, server.RouteLogin)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	authURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return authURL
}

func callbackPath(code, state string) string {
	q := url.Values{}
	if code != "" {
		q.Set("code", code)
	}
	if state != "" {
		q.Set("state", state)
	}
	return server.RouteCallback + "?" + q.Encode()
}

// login runs the whole authorization code flow against the mock provider.
func (e *testEnv) login(t *testing.T, claims map[string]any) {
	t.Helper()
	authURL := e.startLogin(t)
	code := e.idp.IssueCode(claims)

	resp := e.get(t, callbackPath(code, authURL.Query().Get("state")))
	require.Equal(t, http.StatusFound, resp.StatusCode, resp.body)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func (e *testEnv) jarCookies(t *testing.T) []*http.Cookie {
	t.Helper()
	u, err := url.Parse(e.ts.URL)
	require.NoError(t, err)
	return e.client.Jar.Cookies(u)
}

// session loads the server side session the cookie jar currently points at.
func (e *testEnv) session(t *testing.T) *sessions.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, e.ts.URL+"/", nil)
	for _, c := range e.jarCookies(t) {
		req.AddCookie(c)
	}
	return e.sessions.Load(req)
}

// saveSession writes s back without touching the browser's cookie.
func (e *testEnv) saveSession(t *testing.T, s *sessions.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, e.ts.URL+"/", nil)
	require.NoError(t, e.sessions.Save(httptest.NewRecorder(), req, s))
}

func TestPing(t *testing.T) {
	env := setup(t)
	resp := env.get(t, server.RoutePing)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "App is running!", resp.body)
}

func TestStaticFiles(t *testing.T) {
	env := setup(t)

	resp := env.get(t, "/static/css/app.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/css")

	resp = env.get(t, "/static/css/missing.css")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMiddleware_Headers(t *testing.T) {
	env := setup(t)
	resp := env.get(t, "/")
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-123")
	resp = env.do(t, req)
	require.Equal(t, "req-123", resp.Header.Get("X-Request-Id"))
}
