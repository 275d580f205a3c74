package server

import (
	"cmp"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/bootstrap"
)

// TrackRoutes lists the registered routes in the startup summary: API
// routes by path, then health probes. Call it after routes are registered.
func (s *Server) TrackRoutes(summary *bootstrap.Summary) {
	routes := s.engine.Routes()
	slices.SortFunc(routes, func(a, b gin.RouteInfo) int {
		return cmp.Or(
			cmp.Compare(routeGroup(a.Path), routeGroup(b.Path)),
			strings.Compare(a.Path, b.Path),
			strings.Compare(a.Method, b.Method),
		)
	})
	for _, r := range routes {
		summary.TrackRoute(r.Method, r.Path)
	}
}

func routeGroup(path string) int {
	if strings.Contains(path, "/health/") {
		return 1
	}
	return 0
}
