package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+s.callbackRoute, ChainMiddleware(s.CallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// FILES (require a signed in user)
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare(s.RequireLogin)...))
	s.RegisterRouteHandler("POST /{$}", ChainMiddleware(s.UploadHandler(), s.HTMLMiddleWare(s.RequireLogin)...))
	s.RegisterRouteHandler("GET "+RouteDownload+"{name...}", ChainMiddleware(s.DownloadHandler(), s.HTMLMiddleWare(s.RequireLogin)...))
	s.RegisterRouteHandler("GET "+RouteView+"{name...}", ChainMiddleware(s.ViewHandler(), s.HTMLMiddleWare(s.RequireLogin)...))
	s.RegisterRouteHandler("POST "+RouteDelete+"{name...}", ChainMiddleware(s.DeleteHandler(), s.HTMLMiddleWare(s.RequireLogin)...))

	s.RegisterRouteFunc("GET "+RoutePing, s.PingHandler())
	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleWare()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := r.PathValue("file")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		if err := StreamFile(w, r, filePath); err != nil {
			log.Debug().Err(err).Str("file", filePath).Msg("Static file not found")
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

// callbackPath derives the callback route from the configured redirect URI so the two cannot drift apart.
func callbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" || u.Path == "/" || strings.ContainsAny(u.Path, "{}") {
		return RouteCallback
	}
	return u.Path
}
