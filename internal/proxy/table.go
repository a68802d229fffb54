package proxy

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mlindgren/routeproxy/internal/config"
)

// Policy controls how the table builder treats per-route compile failures
// and whether consumed request bodies are revived by default.
type Policy struct {
	SkipInvalid  bool
	ReviveBodies bool
}

// Table is the immutable, ordered set of compiled routes. Requests are
// matched against mounts in declaration order; the first match wins.
type Table struct {
	routes []*Route
}

// BuildTable compiles every endpoint in order. With SkipInvalid a failed
// route is logged and omitted; otherwise the first failure aborts the whole
// build and no partial table is returned. An empty table is valid and
// forwards nothing.
func BuildTable(c *Compiler, endpoints []config.Endpoint, pol Policy, log *zap.Logger) (*Table, error) {
	t := &Table{routes: make([]*Route, 0, len(endpoints))}
	for _, ep := range endpoints {
		rt, err := c.Compile(ep.Route, ep.Raw, pol.ReviveBodies)
		if err != nil {
			if pol.SkipInvalid {
				log.Warn("skipping invalid proxy route",
					zap.String("route", ep.Route), zap.Error(err))
				continue
			}
			return nil, err
		}
		t.routes = append(t.routes, rt)
	}
	return t, nil
}

// Match returns the first route, in table order, that claims the request.
func (t *Table) Match(path, method string) *Route {
	for _, rt := range t.routes {
		if rt.Matches(path, method) {
			return rt
		}
	}
	return nil
}

func (t *Table) Len() int { return len(t.routes) }

// Names lists the route keys in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.routes))
	for i, rt := range t.routes {
		names[i] = rt.Name
	}
	return names
}

// pathPrefixMatch treats the mount as a path-segment prefix, not a raw
// string prefix:
//
//	mount="/api/proxy/github" matches "/api/proxy/github", ".../github/",
//	".../github/repos" but NOT ".../github2".
func pathPrefixMatch(path, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	return path[len(prefix)] == '/'
}
