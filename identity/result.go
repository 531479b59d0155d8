package identity

import "time"

// TokenResult is the outcome of a token request. Provider rejections are a result, not an error:
// OK reports false and Error/ErrorDescription carry the provider's explanation.
type TokenResult struct {
	AccessToken      string
	ExpiresAt        time.Time
	Claims           Claims
	Error            string
	ErrorDescription string
}

func (r *TokenResult) OK() bool {
	return r != nil && r.Error == "" && r.AccessToken != ""
}

func (r *TokenResult) Identity() *Identity {
	return NewIdentity(r.Claims)
}

func rejected(code, description string) *TokenResult {
	if code == "" {
		code = "invalid_grant"
	}
	return &TokenResult{Error: code, ErrorDescription: description}
}
