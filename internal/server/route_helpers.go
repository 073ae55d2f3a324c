package server

import (
	"net/http"
	"sort"

	"github.com/ternarybob/docintel/internal/handlers"
)

// MethodRouter maps HTTP methods to handlers
type MethodRouter map[string]http.HandlerFunc

// Allowed returns the methods the router serves, sorted
func (m MethodRouter) Allowed() []string {
	methods := make([]string, 0, len(m))
	for method, h := range m {
		if h != nil {
			methods = append(methods, method)
		}
	}
	sort.Strings(methods)
	return methods
}

// RouteByMethod dispatches on the request method. Unrouted methods get a
// JSON 405 carrying an Allow header.
func RouteByMethod(w http.ResponseWriter, r *http.Request, routes MethodRouter) {
	if handler := routes[r.Method]; handler != nil {
		handler(w, r)
		return
	}
	handlers.WriteMethodNotAllowed(w, routes.Allowed()...)
}

// routeCollection serves a collection endpoint: list, add and clear
func routeCollection(w http.ResponseWriter, r *http.Request, list, add, clear http.HandlerFunc) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodGet:    list,
		http.MethodPost:   add,
		http.MethodDelete: clear,
	})
}
