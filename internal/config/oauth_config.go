package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// RedirectPath is the callback route registered with the identity provider.
	RedirectPath = "/getAToken"

	entraAuthorityFormat = "https://login.microsoftonline.com/%s/v2.0"
)

var defaultScopes = []string{"openid", "profile", "email", "offline_access", "User.Read"}

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetAuthority() string
	GetRedirectURI() string
	GetScopes() []string
	GetPostLogoutRedirectURI() string
	GetIdentityProviderTimeout() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetClientID() string {
	return GetFirstEnv("", "CLIENT_ID", "AZURE_CLIENT_ID")
}

func (OAuth) GetClientSecret() string {
	return GetFirstEnv("", "CLIENT_SECRET", "AZURE_CLIENT_SECRET")
}

// GetAuthority returns the OIDC issuer used for discovery. When only a tenant id is configured
// the Entra ID v2.0 issuer for that tenant is used.
func (OAuth) GetAuthority() string {
	if authority := GetEnv("AUTHORITY", ""); authority != "" {
		return strings.TrimSuffix(authority, "/")
	}
	if tenantID := GetEnv("AZURE_TENANT_ID", ""); tenantID != "" {
		return fmt.Sprintf(entraAuthorityFormat, tenantID)
	}
	return ""
}

func (OAuth) GetRedirectURI() string {
	return GetEnv("REDIRECT_URI", EnvVars{}.GetBaseURL()+RedirectPath)
}

func (OAuth) GetScopes() []string {
	scopes := strings.Fields(GetEnv("SCOPES", ""))
	if len(scopes) == 0 {
		return append([]string(nil), defaultScopes...)
	}
	return scopes
}

func (OAuth) GetPostLogoutRedirectURI() string {
	return GetEnv("POST_LOGOUT_REDIRECT_URI", EnvVars{}.GetBaseURL()+"/")
}

func (OAuth) GetIdentityProviderTimeout() time.Duration {
	return GetDurationEnv("IDP_TIMEOUT", 10*time.Second)
}
