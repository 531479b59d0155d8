// Package mockidp is an in-process OpenID Connect provider for tests. It serves discovery, JWKS,
// token and logout endpoints and signs ID tokens with a throwaway RSA key.
package mockidp

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const keyID = "mockidp-key"

type grant struct {
	claims map[string]any
	scope  string
}

type Provider struct {
	Server       *httptest.Server
	ClientID     string
	ClientSecret string

	key *rsa.PrivateKey

	mu             sync.Mutex
	accessTokenTTL time.Duration
	codes          map[string]grant
	refreshTokens  map[string]grant
	failRefresh    bool
	tokenRequests  int
	refreshes      int
}

func New(t testing.TB, clientID, clientSecret string) *Provider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("mockidp: generate key: %v", err)
	}

	p := &Provider{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		key:            key,
		accessTokenTTL: time.Hour,
		codes:          make(map[string]grant),
		refreshTokens:  make(map[string]grant),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("GET /keys", p.jwks)
	mux.HandleFunc("POST /token", p.token)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

func (p *Provider) Issuer() string {
	return p.Server.URL
}

func (p *Provider) AuthorizationEndpoint() string {
	return p.Server.URL + "/authorize"
}

func (p *Provider) LogoutEndpoint() string {
	return p.Server.URL + "/logout"
}

// IssueCode registers an authorization code that redeems to an ID token carrying claims.
func (p *Provider) IssueCode(claims map[string]any) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	code := uuid.NewString()
	p.codes[code] = grant{claims: claims}
	return code
}

// SetAccessTokenTTL sets the expires_in of issued access tokens. Anything under ten seconds is already
// considered expired by golang.org/x/oauth2, which forces the refresh path.
func (p *Provider) SetAccessTokenTTL(ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessTokenTTL = ttl
}

func (p *Provider) FailRefresh(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failRefresh = fail
}

func (p *Provider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

func (p *Provider) Refreshes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshes
}

func (p *Provider) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                p.Issuer(),
		"authorization_endpoint":                p.AuthorizationEndpoint(),
		"token_endpoint":                        p.Server.URL + "/token",
		"jwks_uri":                              p.Server.URL + "/keys",
		"end_session_endpoint":                  p.LogoutEndpoint(),
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"pairwise"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *Provider) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := p.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": keyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed form")
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID, clientSecret = r.PostFormValue("client_id"), r.PostFormValue("client_secret")
	}
	if clientID != p.ClientID || clientSecret != p.ClientSecret {
		writeError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	p.mu.Lock()
	p.tokenRequests++
	var (
		g     grant
		found bool
	)
	switch r.PostFormValue("grant_type") {
	case "authorization_code":
		code := r.PostFormValue("code")
		g, found = p.codes[code]
		delete(p.codes, code)
		if !found {
			p.mu.Unlock()
			writeError(w, http.StatusBadRequest, "invalid_grant", "The provided authorization code is invalid or has expired.")
			return
		}
		g.scope = r.PostFormValue("scope")
	case "refresh_token":
		p.refreshes++
		g, found = p.refreshTokens[r.PostFormValue("refresh_token")]
		if !found || p.failRefresh {
			p.mu.Unlock()
			writeError(w, http.StatusBadRequest, "invalid_grant", "The refresh token has expired due to inactivity.")
			return
		}
	default:
		p.mu.Unlock()
		writeError(w, http.StatusBadRequest, "unsupported_grant_type", "unsupported grant type")
		return
	}
	refreshToken := uuid.NewString()
	p.refreshTokens[refreshToken] = g
	ttl := p.accessTokenTTL
	p.mu.Unlock()

	idToken, err := p.SignIDToken(g.claims)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  uuid.NewString(),
		"token_type":    "Bearer",
		"expires_in":    int(ttl.Seconds()),
		"refresh_token": refreshToken,
		"id_token":      idToken,
		"scope":         g.scope,
	})
}

// SignIDToken returns an ID token for claims issued by this provider to ClientID.
func (p *Provider) SignIDToken(claims map[string]any) (string, error) {
	now := time.Now()
	mapClaims := jwt.MapClaims{
		"iss": p.Issuer(),
		"aud": p.ClientID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		mapClaims[k] = v
	}
	if _, ok := mapClaims["sub"]; !ok {
		mapClaims["sub"] = uuid.NewString()
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, mapClaims)
	tok.Header["kid"] = keyID
	signed, err := tok.SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("mockidp: sign id token: %w", err)
	}
	return signed, nil
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": description})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
