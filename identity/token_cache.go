package identity

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

const tokenCacheVersion = 1

// Account identifies the user a cache entry belongs to.
type Account struct {
	HomeAccountID string `json:"home_account_id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
}

type cacheEntry struct {
	Account      Account   `json:"account"`
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Claims       Claims    `json:"id_token_claims,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

type serializedCache struct {
	Version int         `json:"version"`
	Entry   *cacheEntry `json:"entry,omitempty"`
}

// TokenCache holds the tokens of at most one account. It is not safe for concurrent use; each
// request loads its own copy from the session.
type TokenCache struct {
	entry   *cacheEntry
	changed bool
}

func NewTokenCache() *TokenCache {
	return &TokenCache{}
}

// Deserialize replaces the cache contents. The cache is considered unchanged afterwards.
func (c *TokenCache) Deserialize(data []byte) error {
	var s serializedCache
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("[TokenCache Deserialize] %w", err)
	}
	if s.Version != tokenCacheVersion {
		return fmt.Errorf("[TokenCache Deserialize] unsupported cache version %d", s.Version)
	}
	c.entry = s.Entry
	c.changed = false
	return nil
}

// Serialize encodes the cache and marks its current state as persisted.
func (c *TokenCache) Serialize() ([]byte, error) {
	data, err := json.Marshal(serializedCache{Version: tokenCacheVersion, Entry: c.entry})
	if err != nil {
		return nil, fmt.Errorf("[TokenCache Serialize] %w", err)
	}
	c.changed = false
	return data, nil
}

// HasStateChanged reports whether the cache was modified since it was last deserialized or serialized.
func (c *TokenCache) HasStateChanged() bool {
	return c.changed
}

func (c *TokenCache) Account() (Account, bool) {
	if c.entry == nil {
		return Account{}, false
	}
	return c.entry.Account, true
}

func (c *TokenCache) Claims() Claims {
	if c.entry == nil {
		return nil
	}
	return c.entry.Claims
}

func (c *TokenCache) Clear() {
	if c.entry == nil {
		return
	}
	c.entry = nil
	c.changed = true
}

func (c *TokenCache) token() *oauth2.Token {
	if c.entry == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.entry.AccessToken,
		TokenType:    c.entry.TokenType,
		RefreshToken: c.entry.RefreshToken,
		Expiry:       c.entry.Expiry,
	}
}

// store records a token response. A response without a new id_token or refresh token keeps the previous ones.
func (c *TokenCache) store(tok *oauth2.Token, rawIDToken string, claims Claims, scopes []string) {
	next := &cacheEntry{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		IDToken:      rawIDToken,
		Claims:       claims,
		Scopes:       scopes,
	}
	if c.entry != nil {
		if next.RefreshToken == "" {
			next.RefreshToken = c.entry.RefreshToken
		}
		if next.IDToken == "" {
			next.IDToken = c.entry.IDToken
			next.Claims = c.entry.Claims
		}
	}
	id := NewIdentity(next.Claims)
	next.Account = Account{
		HomeAccountID: id.Subject(),
		Username:      id.Username(),
		Name:          id.Name(),
	}
	c.entry = next
	c.changed = true
}
