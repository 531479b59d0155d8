package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-blob-drive/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout = 10 * time.Second

	// promptLogin forces the provider to ask for credentials even if it still holds a session,
	// so a user who logged out of the app cannot be signed straight back in.
	promptLogin = "login"
)

// Settings configures a confidential OAuth2/OIDC client against a single authority.
type Settings struct {
	ClientID     string
	ClientSecret string
	Authority    string
	RedirectURI  string
	Scopes       []string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

func (s Settings) Validate() error {
	var missing []string
	if s.ClientID == "" {
		missing = append(missing, "client id")
	}
	if s.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if s.Authority == "" {
		missing = append(missing, "authority")
	}
	if s.RedirectURI == "" {
		missing = append(missing, "redirect uri")
	}
	if len(missing) > 0 {
		return fmt.Errorf("[identity Settings] %w: %s", apperrors.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

func (s Settings) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultTimeout
	}
	return s.Timeout
}

// Client performs the authorization-code, silent refresh and logout operations of the app.
type Client struct {
	settings       Settings
	endpoint       oauth2.Endpoint
	verifier       *oidc.IDTokenVerifier
	logoutEndpoint string
	httpClient     *http.Client
}

// New discovers the provider configuration for settings.Authority.
func New(ctx context.Context, settings Settings) (*Client, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	httpClient := settings.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: settings.timeout()}
	}

	discoveryCtx, cancel := context.WithTimeout(oidc.ClientContext(ctx, httpClient), settings.timeout())
	defer cancel()

	provider, err := oidc.NewProvider(discoveryCtx, settings.Authority)
	if err != nil {
		return nil, fmt.Errorf("[identity New] %w: %w", apperrors.ErrProviderUnavailable, err)
	}

	var discovery struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&discovery); err != nil {
		log.Warn().Err(err).Msg("Failed to read provider metadata, using default logout endpoint")
	}
	logoutEndpoint := discovery.EndSessionEndpoint
	if logoutEndpoint == "" {
		logoutEndpoint = defaultLogoutEndpoint(settings.Authority)
	}

	return &Client{
		settings:       settings,
		endpoint:       provider.Endpoint(),
		verifier:       provider.Verifier(&oidc.Config{ClientID: settings.ClientID}),
		logoutEndpoint: logoutEndpoint,
		httpClient:     httpClient,
	}, nil
}

// defaultLogoutEndpoint follows the Entra ID layout: {authority}/oauth2/v2.0/logout.
func defaultLogoutEndpoint(authority string) string {
	authority = strings.TrimSuffix(strings.TrimSuffix(authority, "/"), "/v2.0")
	return authority + "/oauth2/v2.0/logout"
}

func (c *Client) oauthConfig(scopes []string, redirectURI string) *oauth2.Config {
	if len(scopes) == 0 {
		scopes = c.settings.Scopes
	}
	if redirectURI == "" {
		redirectURI = c.settings.RedirectURI
	}
	return &oauth2.Config{
		ClientID:     c.settings.ClientID,
		ClientSecret: c.settings.ClientSecret,
		Endpoint:     c.endpoint,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
	}
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.timeout())
	return oidc.ClientContext(ctx, c.httpClient), cancel
}

// BuildAuthorizationURL returns the provider URL that starts an interactive login. No network call is made.
func (c *Client) BuildAuthorizationURL(scopes []string, redirectURI, state, codeVerifier string) (string, error) {
	if c.settings.ClientID == "" || c.endpoint.AuthURL == "" {
		return "", fmt.Errorf("[identity BuildAuthorizationURL] %w: client id or authority", apperrors.ErrMissingConfig)
	}
	if redirectURI == "" {
		return "", fmt.Errorf("[identity BuildAuthorizationURL] %w: redirect uri", apperrors.ErrMissingConfig)
	}

	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", promptLogin)}
	if codeVerifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(codeVerifier))
	}
	return c.oauthConfig(scopes, redirectURI).AuthCodeURL(state, opts...), nil
}

// ExchangeCodeForTokens redeems an authorization code. A provider error response is returned as a
// rejected TokenResult; only a failure to talk to the provider is returned as an error.
func (c *Client) ExchangeCodeForTokens(ctx context.Context, code string, scopes []string, redirectURI, codeVerifier string, cache *TokenCache) (*TokenResult, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	cfg := c.oauthConfig(scopes, redirectURI)
	tok, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if apperrors.As(err, &retrieveErr) {
			return rejected(retrieveErr.ErrorCode, describeRetrieveError(retrieveErr)), nil
		}
		return nil, fmt.Errorf("[identity ExchangeCodeForTokens] %w: %w", apperrors.ErrProviderUnavailable, err)
	}

	rawIDToken, claims, err := c.verifyIDToken(ctx, tok)
	if err != nil {
		return rejected("invalid_id_token", err.Error()), nil
	}

	cache.store(tok, rawIDToken, claims, cfg.Scopes)
	return &TokenResult{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.Expiry,
		Claims:      claims,
	}, nil
}

// AcquireTokenSilently returns a usable token for the cached account without user interaction,
// refreshing it if needed. It returns nil when there is no account or the refresh fails.
func (c *Client) AcquireTokenSilently(ctx context.Context, cache *TokenCache) *TokenResult {
	if cache == nil {
		return nil
	}
	account, ok := cache.Account()
	if !ok {
		return nil
	}

	current := cache.token()
	if current.Valid() {
		return &TokenResult{
			AccessToken: current.AccessToken,
			ExpiresAt:   current.Expiry,
			Claims:      cache.Claims(),
		}
	}
	if current.RefreshToken == "" {
		return nil
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	scopes := cache.entry.Scopes
	tok, err := c.oauthConfig(scopes, "").TokenSource(ctx, current).Token()
	if err != nil {
		log.Debug().Err(err).Str("account", account.Username).Msg("Silent token refresh failed")
		return nil
	}

	var (
		rawIDToken string
		claims     Claims
	)
	if _, hasIDToken := tok.Extra("id_token").(string); hasIDToken {
		rawIDToken, claims, err = c.verifyIDToken(ctx, tok)
		if err != nil {
			log.Warn().Err(err).Str("account", account.Username).Msg("Refreshed id_token rejected")
			return nil
		}
	}

	cache.store(tok, rawIDToken, claims, scopes)
	return &TokenResult{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.Expiry,
		Claims:      cache.Claims(),
	}
}

// LogoutURL is the provider endpoint that ends the provider-side session and then returns the browser to postLogoutRedirectURI.
func (c *Client) LogoutURL(postLogoutRedirectURI string) string {
	u, err := url.Parse(c.logoutEndpoint)
	if err != nil {
		return c.logoutEndpoint
	}
	if postLogoutRedirectURI != "" {
		q := u.Query()
		q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) verifyIDToken(ctx context.Context, tok *oauth2.Token) (string, Claims, error) {
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", nil, apperrors.ErrMissingIDToken
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidIDToken, err)
	}

	claims := Claims{}
	if err := idToken.Claims(&claims); err != nil {
		return "", nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidIDToken, err)
	}
	return rawIDToken, claims, nil
}

func describeRetrieveError(err *oauth2.RetrieveError) string {
	if err.ErrorDescription != "" {
		return err.ErrorDescription
	}
	if err.ErrorCode != "" {
		return err.ErrorCode
	}
	if err.Response != nil {
		return err.Response.Status
	}
	return "token request failed"
}
