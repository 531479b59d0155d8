package sessions

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"github.com/jrsteele09/go-blob-drive/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const sessionDirPermissions = 0o700

// sessionEraser is implemented by stores that can drop a session by id.
type sessionEraser interface {
	Erase(ctx context.Context, id string) error
}

// Manager loads and saves typed sessions on top of a gorilla session store.
type Manager struct {
	store gsessions.Store
	name  string
	close func() error
}

func NewManager(store gsessions.Store, cookieName string) *Manager {
	return &Manager{store: store, name: cookieName, close: func() error { return nil }}
}

// Open builds the session store selected by the configuration.
func Open(ctx context.Context, cfg config.SessionConfig) (*Manager, error) {
	authKey, encKey, err := DeriveKeys(cfg.GetSessionSecret())
	if err != nil {
		return nil, err
	}
	options := CookieOptions(cfg.GetSessionCookieSecure())
	lifetime := cfg.GetSessionLifetime()

	switch backend := cfg.GetSessionBackend(); backend {
	case config.SessionBackendFilesystem:
		dir := cfg.GetSessionDir()
		if err := os.MkdirAll(dir, sessionDirPermissions); err != nil {
			return nil, fmt.Errorf("[sessions Open] create session directory %s: %w", dir, err)
		}
		store := NewFilesystemStore(dir, options, lifetime, authKey, encKey)
		if removed, err := store.PurgeExpired(); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to purge expired sessions")
		} else if removed > 0 {
			log.Info().Int("removed", removed).Msg("Purged expired sessions")
		}
		log.Info().Str("path", dir).Bool("secure", options.Secure).Msg("Filesystem session store configured")
		return NewManager(store, cfg.GetSessionCookieName()), nil

	case config.SessionBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("[sessions Open] redis ping %s: %w", cfg.GetRedisAddr(), err)
		}
		store := NewRedisStore(rdb, cfg.GetRedisPrefix(), options, lifetime, authKey, encKey)
		log.Info().Str("addr", cfg.GetRedisAddr()).Str("prefix", cfg.GetRedisPrefix()).Msg("Redis session store configured")
		m := NewManager(store, cfg.GetSessionCookieName())
		m.close = rdb.Close
		return m, nil

	default:
		return nil, fmt.Errorf("[sessions Open] unknown session backend %q", backend)
	}
}

// CookieOptions describes the session cookie: no Max-Age so it ends with the browser session. The
// stored values outlive it for the configured lifetime.
func CookieOptions(secure bool) *gsessions.Options {
	return &gsessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// setCodecMaxAge bounds how long a signed value is accepted independently of the cookie's own lifetime.
func setCodecMaxAge(codecs []securecookie.Codec, lifetime time.Duration) {
	for _, codec := range codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(lifetime.Seconds()))
		}
	}
}

// Load returns the session for r. A missing, expired or tampered cookie yields a fresh session.
func (m *Manager) Load(r *http.Request) *Session {
	raw, err := m.store.Get(r, m.name)
	if err != nil {
		log.Debug().Err(err).Msg("Starting a new session")
	}
	if raw == nil {
		raw = gsessions.NewSession(m.store, m.name)
		raw.IsNew = true
	}
	return newSession(raw)
}

// Save persists s if it changed during the request. It must be called before the response body is written.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	if !s.dirty {
		return nil
	}
	if err := s.sync(); err != nil {
		return fmt.Errorf("[sessions Save] %w", err)
	}
	if err := m.store.Save(r, w, s.raw); err != nil {
		return fmt.Errorf("[sessions Save] %w", err)
	}
	s.dirty = false

	if previous := s.previousID; previous != "" {
		s.previousID = ""
		if e, ok := m.store.(sessionEraser); ok {
			if err := e.Erase(r.Context(), previous); err != nil {
				log.Warn().Err(err).Msg("Failed to erase renewed session")
			}
		}
	}
	return nil
}

func (m *Manager) Close() error {
	return m.close()
}
