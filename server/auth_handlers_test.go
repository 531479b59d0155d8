package server_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-blob-drive/server"
	"github.com/jrsteele09/go-blob-drive/sessions"
	"github.com/stretchr/testify/require"
)

func TestProtectedRoutesRedirectAnonymousUsers(t *testing.T) {
	env := setup(t)

	for _, path := range []string{"/", "/download/report.pdf", "/view/report.pdf"} {
		resp := env.get(t, path)
		require.Equal(t, http.StatusFound, resp.StatusCode, path)
		require.Equal(t, server.RouteLogin, resp.Header.Get("Location"), path)
	}

	resp := env.post(t, "/delete/report.pdf")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("Location"))
	require.Empty(t, resp.Header.Values("Set-Cookie"))
}

func TestLogin_AuthorizationURL(t *testing.T) {
	env := setup(t)

	check := func(authURL *url.URL) {
		require.Equal(t, env.idp.AuthorizationEndpoint(), authURL.Scheme+"://"+authURL.Host+authURL.Path)
		q := authURL.Query()
		require.Equal(t, testClientID, q.Get("client_id"))
		require.Equal(t, testBaseURL+"/getAToken", q.Get("redirect_uri"))
		require.Equal(t, strings.Join(env.cfg.GetScopes(), " "), q.Get("scope"))
		require.Equal(t, "code", q.Get("response_type"))
		require.Equal(t, "login", q.Get("prompt"))
		require.NotEmpty(t, q.Get("state"))
		require.Equal(t, "S256", q.Get("code_challenge_method"))
	}

	first := env.startLogin(t)
	check(first)

	// Already signed in: a new login still forces the provider to prompt.
	env.login(t, janeClaims)
	second := env.startLogin(t)
	check(second)
	require.NotEqual(t, first.Query().Get("state"), second.Query().Get("state"))
}

func TestLogin_ClearsStaleIdentityAndKeepsFlashes(t *testing.T) {
	env := setup(t)
	env.login(t, janeClaims)

	sess := env.session(t)
	sess.AddFlash(sessions.FlashWarning, "still here")
	env.saveSession(t, sess)

	env.startLogin(t)

	sess = env.session(t)
	require.Nil(t, sess.Identity())
	require.Nil(t, sess.TokenCache())
	require.NotNil(t, sess.AuthFlow())
	require.Len(t, sess.Flashes(), 1)
}

func TestCallback_Success(t *testing.T) {
	env := setup(t)
	env.login(t, janeClaims)

	sess := env.session(t)
	require.NotNil(t, sess.Identity())
	for k, v := range janeClaims {
		require.Equal(t, v, sess.Identity().Claims[k], k)
	}
	require.Nil(t, sess.AuthFlow())

	cache := sessions.LoadCache(sess)
	account, ok := cache.Account()
	require.True(t, ok)
	require.Equal(t, "jane@example.com", account.Username)
	require.Equal(t, janeClaims["oid"], account.HomeAccountID)

	resp := env.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.body, "Signed in as Jane Doe")
}

func TestCallback_MissingCodeRedirectsWithoutTouchingSession(t *testing.T) {
	env := setup(t)
	env.startLogin(t)
	before := env.session(t).AuthFlow()
	require.NotNil(t, before)

	resp := env.get(t, server.RouteCallback)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("Location"))
	require.Empty(t, resp.Header.Values("Set-Cookie"))

	require.Equal(t, before.State, env.session(t).AuthFlow().State)
}

func TestCallback_CancelledLoginReturnsToLogin(t *testing.T) {
	env := setup(t)
	env.startLogin(t)
	before := env.session(t).AuthFlow()
	require.NotNil(t, before)

	resp := env.get(t, server.RouteCallback+"?error=access_denied&error_description=The+user+cancelled+the+sign+in")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("Location"))
	require.Empty(t, resp.Header.Values("Set-Cookie"))
	require.Equal(t, before.State, env.session(t).AuthFlow().State)
}

func TestCallback_LoginMovesSessionToNewID(t *testing.T) {
	env := setup(t)
	authURL := env.startLogin(t)
	preLogin := env.jarCookies(t)
	preLoginID := env.session(t).ID()
	require.NotEmpty(t, preLoginID)

	resp := env.get(t, callbackPath(env.idp.IssueCode(janeClaims), authURL.Query().Get("state")))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	sess := env.session(t)
	require.NotNil(t, sess.Identity())
	require.NotEqual(t, preLoginID, sess.ID())

	// The cookie issued before login no longer resolves to a session.
	req := httptest.NewRequest(http.MethodGet, env.ts.URL+"/", nil)
	for _, c := range preLogin {
		req.AddCookie(c)
	}
	require.True(t, env.sessions.Load(req).IsNew())
}

func TestLogin_DefaultSessionBackendKeepsUserSignedIn(t *testing.T) {
	env := setup(t)
	require.Equal(t, "filesystem", env.cfg.GetSessionBackend())

	authURL := env.startLogin(t)
	resp := env.get(t, callbackPath(env.idp.IssueCode(janeClaims), authURL.Query().Get("state")))
	require.Equal(t, http.StatusFound, resp.StatusCode, resp.body)
	require.Equal(t, "/", resp.Header.Get("Location"))

	cookies := env.jarCookies(t)
	require.Len(t, cookies, 1)
	files, err := filepath.Glob(filepath.Join(env.sessionDir, "session_*"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	resp = env.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.body, "Signed in as Jane Doe")
}

func TestCallback_StaleCallbackLeavesIdentityUnchanged(t *testing.T) {
	env := setup(t)
	env.login(t, janeClaims)

	resp := env.get(t, callbackPath("bogus-code", "not-the-state"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.NotNil(t, env.session(t).Identity())
	resp = env.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCallback_RejectedCodeAfterLoginLeavesUserSignedOut(t *testing.T) {
	env := setup(t)
	env.login(t, janeClaims)

	authURL := env.startLogin(t)
	resp := env.get(t, callbackPath("bogus-code", authURL.Query().Get("state")))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, resp.body, "Login failed: The provided authorization code is invalid or has expired.")

	sess := env.session(t)
	require.Nil(t, sess.Identity())
	require.Nil(t, sess.AuthFlow(), "a rejected flow must not be redeemable again")

	resp = env.get(t, "/")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("Location"))
}

func TestCallback_StateIsSingleUse(t *testing.T) {
	env := setup(t)
	authURL := env.startLogin(t)
	state := authURL.Query().Get("state")

	resp := env.get(t, callbackPath(env.idp.IssueCode(janeClaims), state))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = env.get(t, callbackPath(env.idp.IssueCode(janeClaims), state))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCallback_ProviderUnreachable(t *testing.T) {
	env := setup(t)
	authURL := env.startLogin(t)
	env.idp.Server.Close()

	resp := env.get(t, callbackPath("any-code", authURL.Query().Get("state")))
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.NotContains(t, resp.body, "127.0.0.1")
}

func TestLogout(t *testing.T) {
	env := setup(t)
	env.login(t, janeClaims)

	sess := env.session(t)
	sess.AddFlash(sessions.FlashSuccess, "Goodbye")
	env.saveSession(t, sess)

	resp := env.get(t, server.RouteLogout)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	logoutURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, env.idp.LogoutEndpoint(), logoutURL.Scheme+"://"+logoutURL.Host+logoutURL.Path)
	require.Equal(t, testBaseURL+"/", logoutURL.Query().Get("post_logout_redirect_uri"))

	sess = env.session(t)
	require.Nil(t, sess.Identity())
	require.Nil(t, sess.TokenCache())
	require.Equal(t, []sessions.Flash{{Category: sessions.FlashSuccess, Message: "Goodbye"}}, sess.Flashes())

	resp = env.get(t, "/")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("Location"))
}

func TestGate_SilentRefreshRestoresIdentity(t *testing.T) {
	env := setup(t)
	env.idp.SetAccessTokenTTL(2 * time.Second)
	env.login(t, janeClaims)

	// Drop the identity but keep the token cache, as after a session value was lost.
	sess := env.session(t)
	sess.SetIdentity(nil)
	env.saveSession(t, sess)

	resp := env.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.body, "Jane Doe")
	require.Equal(t, 1, env.idp.Refreshes())
	require.NotNil(t, env.session(t).Identity())
}

func TestGate_FailedRefreshSendsUserToLogin(t *testing.T) {
	env := setup(t)
	env.idp.SetAccessTokenTTL(2 * time.Second)
	env.login(t, janeClaims)

	sess := env.session(t)
	sess.SetIdentity(nil)
	env.saveSession(t, sess)
	env.idp.FailRefresh(true)

	resp := env.get(t, "/")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("Location"))
}

func TestReadOnlyRequestsDoNotReissueCookie(t *testing.T) {
	env := setup(t)
	env.login(t, janeClaims)

	resp := env.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Values("Set-Cookie"))
}
