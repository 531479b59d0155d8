package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-blob-drive/blobs"
	"github.com/jrsteele09/go-blob-drive/identity"
	"github.com/jrsteele09/go-blob-drive/internal/config"
	"github.com/jrsteele09/go-blob-drive/sessions"
)

// IdentityProvider is the part of identity.Client the HTTP layer drives.
type IdentityProvider interface {
	BuildAuthorizationURL(scopes []string, redirectURI, state, codeVerifier string) (string, error)
	ExchangeCodeForTokens(ctx context.Context, code string, scopes []string, redirectURI, codeVerifier string, cache *identity.TokenCache) (*identity.TokenResult, error)
	AcquireTokenSilently(ctx context.Context, cache *identity.TokenCache) *identity.TokenResult
	LogoutURL(postLogoutRedirectURI string) string
}

var _ IdentityProvider = (*identity.Client)(nil)

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	idp           IdentityProvider
	sessions      *sessions.Manager
	blobs         blobs.Repo
	gate          *SessionGate
	callbackRoute string
	indexTmpl     *template.Template
}

func New(config config.Config, idp IdentityProvider, sessionManager *sessions.Manager, blobRepo blobs.Repo) (*Server, error) {
	indexTmpl, err := ParsePage("index.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse index template: %w", err)
	}

	s := &Server{
		env:           config.GetEnv(),
		mux:           http.NewServeMux(),
		config:        config,
		idp:           idp,
		sessions:      sessionManager,
		blobs:         blobRepo,
		gate:          NewSessionGate(idp),
		callbackRoute: callbackPath(config.GetRedirectURI()),
		indexTmpl:     indexTmpl,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if !s.config.IsDev() {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	fmt.Printf("[%-19s] %s\n", displayMethod, path)
}

// saveSession persists sess before anything is written to w. On failure the request is answered
// with a 500 and false is returned.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess *sessions.Session) bool {
	if err := s.sessions.Save(w, r, sess); err != nil {
		requestLogger(r).Err(err).Msg("Failed to save session")
		http.Error(w, "Session error", http.StatusInternalServerError)
		return false
	}
	return true
}
