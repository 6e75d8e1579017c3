// Package router resolves request paths to routes by longest prefix.
package router

import (
	"strings"

	"github.com/apoxy-dev/webserver/pkg/handler"
)

// Route binds a path prefix to a constructed handler.
type Route struct {
	// Prefix is the URI prefix the route owns, e.g. "/static".
	Prefix string
	// HandlerType is the registry tag the handler was built from.
	HandlerType string
	// Params is the handler configuration from the config file.
	Params map[string]string
	// Handler serves requests for the route.
	Handler handler.Handler
}

// Table is an immutable, ordered set of routes. It is safe for concurrent use.
type Table struct {
	routes []Route
}

// New returns a table holding routes in declaration order. Prefixes are
// normalized to start with "/" and to carry no trailing "/".
func New(routes []Route) *Table {
	t := &Table{routes: make([]Route, len(routes))}
	for i, r := range routes {
		r.Prefix = Clean(r.Prefix)
		t.routes[i] = r
	}
	return t
}

// Clean normalizes a prefix or path the way the table compares them.
func Clean(p string) string {
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// Resolve returns the route owning path and the prefix that matched. The
// longest matching prefix wins; among equal prefixes the first declared wins.
// ok is false when no route matches.
func (t *Table) Resolve(path string) (r Route, prefix string, ok bool) {
	path = Clean(path)
	best := -1
	for i := range t.routes {
		p := t.routes[i].Prefix
		if !matches(p, path) {
			continue
		}
		if best < 0 || len(p) > len(t.routes[best].Prefix) {
			best = i
		}
	}
	if best < 0 {
		return Route{}, "", false
	}
	return t.routes[best], t.routes[best].Prefix, true
}

// matches reports whether prefix owns path on a segment boundary:
// "/static" owns "/static" and "/static/x" but not "/staticfoo".
func matches(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Routes returns the routes in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int { return len(t.routes) }
