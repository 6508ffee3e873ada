package server

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const paramsContextKey contextKey = "path_params"

// Params holds path parameters extracted by ParamRouter
type Params map[string]string

// GetPathParam retrieves a path parameter from the request context
func GetPathParam(r *http.Request, name string) string {
	params, _ := r.Context().Value(paramsContextKey).(Params)
	if params == nil {
		return ""
	}
	return params[name]
}

// ParamRouter is a tiny router supporting patterns with {param} segments and
// per-method handlers.
type ParamRouter struct {
	routes []route
}

type route struct {
	pattern  string
	parts    []string
	handlers map[string]http.HandlerFunc
}

// NewParamRouter creates a new ParamRouter instance
func NewParamRouter() *ParamRouter {
	return &ParamRouter{routes: make([]route, 0)}
}

// Handle registers a handler for method and a pattern like
// "/api/settings/{key}". An empty method matches any method.
func (rtr *ParamRouter) Handle(method, pattern string, handler http.HandlerFunc) {
	pattern = strings.TrimSuffix(pattern, "/")
	for i := range rtr.routes {
		if rtr.routes[i].pattern == pattern {
			rtr.routes[i].handlers[method] = handler
			return
		}
	}
	rtr.routes = append(rtr.routes, route{
		pattern:  pattern,
		parts:    splitPath(pattern),
		handlers: map[string]http.HandlerFunc{method: handler},
	})
}

// ServeHTTP matches the incoming request path and dispatches to the first matching handler
func (rtr *ParamRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	inParts := splitPath(path)

	for _, rt := range rtr.routes {
		params, ok := rt.match(inParts)
		if !ok {
			continue
		}
		handler, ok := rt.handlers[r.Method]
		if !ok {
			handler, ok = rt.handlers[""]
		}
		if !ok {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		ctx := context.WithValue(r.Context(), paramsContextKey, params)
		handler(w, r.WithContext(ctx))
		return
	}

	writeError(w, http.StatusNotFound, "Not found")
}

func (rt route) match(inParts []string) (Params, bool) {
	if len(rt.parts) != len(inParts) {
		return nil, false
	}
	params := make(Params)
	for i, pp := range rt.parts {
		if isParam(pp) {
			params[strings.TrimSuffix(strings.TrimPrefix(pp, "{"), "}")] = inParts[i]
			continue
		}
		if pp != inParts[i] {
			return nil, false
		}
	}
	return params, true
}

func splitPath(p string) []string {
	if p == "" || p == "/" {
		return []string{""}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	// Keep leading empty string for the root slash to align with pattern split
	return strings.Split(p, "/")
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && len(seg) > 2
}
