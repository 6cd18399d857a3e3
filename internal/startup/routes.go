package startup

import (
	"sort"
	"strings"

	"media-fetcher/internal/logging"

	"github.com/gorilla/mux"
)

// RouteInfo describes one method/path pair registered on the router.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes lists every registered route. Routes without a method
// restriction are reported with method "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})
	return routes, err
}

// LogHTTPRoutes logs the router table, grouped by prefix, at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		sort.SliceStable(routes, func(i, j int) bool {
			return getRouteGroup(routes[i].Path) < getRouteGroup(routes[j].Path)
		})

		logging.Debug("  Registered routes (%d total):", len(routes))
		current := "\x00"
		for _, r := range routes {
			if g := getRouteGroup(r.Path); g != current {
				current = g
				if g == "" {
					g = "root"
				}
				logging.Debug("  [%s]", g)
			}
			logging.Debug("    %-6s %s", r.Method, r.Path)
		}
	}

	logging.Info("  Health check logging: %v (LOG_HEALTH_CHECKS)", logHealthChecks)
}

// getRouteGroup returns the first path segment, or "api/<resource>" under
// /api.
func getRouteGroup(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if parts[0] == "api" && len(parts) > 1 {
		return "api/" + parts[1]
	}
	return parts[0]
}
