package sessions

import (
	"github.com/jrsteele09/go-blob-drive/identity"
	"github.com/rs/zerolog/log"
)

// LoadCache returns the token cache stored in s, or an empty cache.
func LoadCache(s *Session) *identity.TokenCache {
	cache := identity.NewTokenCache()
	data := s.TokenCache()
	if len(data) == 0 {
		return cache
	}
	if err := cache.Deserialize(data); err != nil {
		log.Warn().Err(err).Str("session", s.ID()).Msg("Discarding undecodable token cache")
		return identity.NewTokenCache()
	}
	return cache
}

// SaveCache writes cache into s only if it changed since it was loaded, so read-only requests never
// touch the session backend. It reports whether anything was written.
func SaveCache(s *Session, cache *identity.TokenCache) (bool, error) {
	if cache == nil || !cache.HasStateChanged() {
		return false, nil
	}
	if _, ok := cache.Account(); !ok {
		// serialize anyway so the cache stops reporting a change
		if _, err := cache.Serialize(); err != nil {
			return false, err
		}
		s.SetTokenCache(nil)
		return true, nil
	}

	data, err := cache.Serialize()
	if err != nil {
		return false, err
	}
	s.SetTokenCache(data)
	return true, nil
}
