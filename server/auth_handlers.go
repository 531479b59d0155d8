package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/go-blob-drive/internal/errors"
	"github.com/jrsteele09/go-blob-drive/sessions"
)

// LoginHandler starts an interactive login (GET /login). Any identity, token cache or unfinished
// login in the session is dropped first so a new login never mixes with old tokens.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		sess := s.session(r)
		sess.ClearAuth()

		flow := newAuthFlow()
		authURL, err := s.idp.BuildAuthorizationURL(s.config.GetScopes(), s.config.GetRedirectURI(), flow.State, flow.CodeVerifier)
		if err != nil {
			logger.Err(err).Msg("Failed to build authorization URL")
			http.Error(w, "Login is not available", http.StatusInternalServerError)
			return
		}

		sess.SetAuthFlow(flow)
		if !s.saveSession(w, r, sess) {
			return
		}
		logger.Debug().Str("session", sess.ID()).Msg("Redirecting to identity provider")
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes a login (GET /getAToken). A successful login moves the session to a new id.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		query := r.URL.Query()

		// Providers call back without a code when the user cancels or denies consent.
		code := query.Get("code")
		if code == "" {
			if errorParam := query.Get("error"); errorParam != "" {
				logger.Warn().Str("error", errorParam).Str("description", query.Get("error_description")).Msg("Identity provider returned an error")
			}
			http.Redirect(w, r, RouteLogin, http.StatusFound)
			return
		}

		sess := s.session(r)
		flow := sess.AuthFlow()
		if err := validateAuthFlow(flow, query.Get("state")); err != nil {
			logger.Warn().Err(err).Str("session", sess.ID()).Msg("Rejected login callback")
			http.Error(w, "Login failed: the login request is invalid or has expired. Please sign in again.", http.StatusUnauthorized)
			return
		}
		// A flow is redeemable once, whatever the outcome.
		sess.SetAuthFlow(nil)

		cache := sessions.LoadCache(sess)
		result, err := s.idp.ExchangeCodeForTokens(r.Context(), code, s.config.GetScopes(), s.config.GetRedirectURI(), flow.CodeVerifier, cache)
		if err != nil {
			logger.Err(err).Msg("Token exchange failed")
			if !s.saveSession(w, r, sess) {
				return
			}
			http.Error(w, "Login failed: the identity provider could not be reached.", http.StatusBadGateway)
			return
		}
		if !result.OK() {
			logger.Warn().Str("error", result.Error).Str("description", result.ErrorDescription).Msg("Identity provider rejected the authorization code")
			if !s.saveSession(w, r, sess) {
				return
			}
			http.Error(w, fmt.Sprintf("Login failed: %s", result.ErrorDescription), http.StatusUnauthorized)
			return
		}

		id := result.Identity()
		sess.Renew()
		sess.SetIdentity(id)
		if _, err := sessions.SaveCache(sess, cache); err != nil {
			logger.Err(err).Msg("Failed to store token cache")
			http.Error(w, "Session error", http.StatusInternalServerError)
			return
		}
		if !s.saveSession(w, r, sess) {
			return
		}

		logger.Info().Str("user", id.Username()).Msg("User signed in")
		http.Redirect(w, r, RouteIndex, http.StatusFound)
	}
}

func validateAuthFlow(flow *sessions.AuthFlow, state string) error {
	if flow == nil {
		return fmt.Errorf("%w: no login in progress", apperrors.ErrInvalidState)
	}
	if state == "" || subtle.ConstantTimeCompare([]byte(flow.State), []byte(state)) != 1 {
		return fmt.Errorf("%w: state mismatch", apperrors.ErrInvalidState)
	}
	if time.Since(flow.CreatedAt) > authFlowMaxAge {
		return fmt.Errorf("%w: login started %s ago", apperrors.ErrInvalidState, time.Since(flow.CreatedAt).Round(time.Second))
	}
	return nil
}

// LogoutHandler signs the user out locally and at the identity provider (GET /logout). Only the
// identity, token cache and pending login are removed; flash messages survive.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.session(r)
		if id := sess.Identity(); id != nil {
			requestLogger(r).Info().Str("user", id.Username()).Msg("User signed out")
		}
		sess.ClearAuth()
		if !s.saveSession(w, r, sess) {
			return
		}
		http.Redirect(w, r, s.idp.LogoutURL(s.config.GetPostLogoutRedirectURI()), http.StatusFound)
	}
}
