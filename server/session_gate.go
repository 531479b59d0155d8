package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-blob-drive/identity"
	"github.com/jrsteele09/go-blob-drive/sessions"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyIdentity stores the signed in user
	ContextKeyIdentity ContextKey = "identity"
	// ContextKeySession stores the request's session
	ContextKeySession ContextKey = "session"
)

// SilentTokenAcquirer refreshes a cached account without user interaction.
type SilentTokenAcquirer interface {
	AcquireTokenSilently(ctx context.Context, cache *identity.TokenCache) *identity.TokenResult
}

// SessionGate decides whether a session holds a usable identity.
type SessionGate struct {
	tokens SilentTokenAcquirer
}

func NewSessionGate(tokens SilentTokenAcquirer) *SessionGate {
	return &SessionGate{tokens: tokens}
}

// Check allows the session if it already carries an identity, or if the cached account can be refreshed
// silently, in which case the identity and the updated cache are written into sess. It never
// redirects; a false result means the caller has to start an interactive login.
func (g *SessionGate) Check(ctx context.Context, sess *sessions.Session) (*identity.Identity, bool) {
	if id := sess.Identity(); id != nil {
		return id, true
	}

	cache := sessions.LoadCache(sess)
	if _, ok := cache.Account(); !ok {
		return nil, false
	}

	result := g.tokens.AcquireTokenSilently(ctx, cache)
	if !result.OK() {
		return nil, false
	}

	id := result.Identity()
	sess.SetIdentity(id)
	if _, err := sessions.SaveCache(sess, cache); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to store refreshed token cache")
	}
	return id, true
}

// RequireLogin runs the session gate in front of next. Denied requests are sent to the login route.
func (s *Server) RequireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessions.Load(r)
		id, ok := s.gate.Check(r.Context(), sess)
		if !s.saveSession(w, r, sess) {
			return
		}
		if !ok {
			http.Redirect(w, r, RouteLogin, http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyIdentity, id)
		ctx = context.WithValue(ctx, ContextKeySession, sess)
		next(w, r.WithContext(ctx))
	}
}

func IdentityFromContext(ctx context.Context) (*identity.Identity, bool) {
	id, ok := ctx.Value(ContextKeyIdentity).(*identity.Identity)
	return id, ok && id != nil
}

// session returns the session loaded by RequireLogin, loading it if the route is unprotected.
func (s *Server) session(r *http.Request) *sessions.Session {
	if sess, ok := r.Context().Value(ContextKeySession).(*sessions.Session); ok {
		return sess
	}
	return s.sessions.Load(r)
}
