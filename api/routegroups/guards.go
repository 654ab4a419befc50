package routegroups

import "net/http"

// Guards wraps handlers with the user and permission middleware of the server.
type Guards struct {
	WithSession       func(http.HandlerFunc) http.HandlerFunc
	RequirePermission func(obj, act string) func(http.HandlerFunc) http.HandlerFunc
}

func (g Guards) SessionPerm(obj, act string, h http.HandlerFunc) http.HandlerFunc {
	return g.WithSession(g.RequirePermission(obj, act)(h))
}
