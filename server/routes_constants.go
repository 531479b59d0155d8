package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteLogin    = "/login"
	RouteCallback = "/getAToken" // overridden by the path of REDIRECT_URI
	RouteLogout   = "/logout"

	// File manager Routes
	RouteIndex    = "/"
	RouteDownload = "/download/"
	RouteView     = "/view/"
	RouteDelete   = "/delete/"

	RoutePing = "/ping"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/{file...}"
)
