package core

import (
	"context"
	"net/http"
	"regexp"
	"sort"
	"strings"
)

// ApiRoute mounts a handler under api/. The handler owns method checks.
type ApiRoute struct {
	URLPattern *regexp.Regexp
	ParamKeys  []string
	Path       string
	Handler    http.Handler
}

type apiParamsKey struct{}

// APIParams returns the path parameters matched for an API request.
func APIParams(r *http.Request) map[string]string {
	params, _ := r.Context().Value(apiParamsKey{}).(map[string]string)
	return params
}

// loadApiRoutes mounts each handler under api/<path>. Segments starting with
// "_" are path parameters, e.g. "submissions/_id".
func (r *Router) loadApiRoutes(handlers map[string]http.Handler) {
	paths := make([]string, 0, len(handlers))
	for p := range handlers {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	routes := []ApiRoute{}
	for _, p := range paths {
		paramKeys := []string{}
		pattern := "api"
		display := "/api"

		for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
			if part == "" {
				continue
			}
			if strings.HasPrefix(part, "_") {
				paramKeys = append(paramKeys, part[1:])
				pattern += "/([^/]+)"
				display += "/:" + part[1:]
			} else {
				pattern += "/" + regexp.QuoteMeta(part)
				display += "/" + part
			}
		}

		routes = append(routes, ApiRoute{
			URLPattern: regexp.MustCompile("^" + pattern + "$"),
			ParamKeys:  paramKeys,
			Path:       display,
			Handler:    handlers[p],
		})
	}

	r.apiRoutes = routes
}

func (r *Router) handleAPI(w http.ResponseWriter, req *http.Request, route ApiRoute, params map[string]string) {
	if r.config.DebugHeaders {
		w.Header().Set("X-Teknoro-Route", route.Path)
	}

	ctx := context.WithValue(req.Context(), apiParamsKey{}, params)
	route.Handler.ServeHTTP(w, req.WithContext(ctx))
}
