package proxy

import (
	"net/http"
	"strings"
)

// baselineHeaders is the safe set allowed to cross the proxy boundary in
// both directions regardless of route configuration.
var baselineHeaders = []string{
	"cache-control",
	"content-language",
	"content-length",
	"content-type",
	"expires",
	"last-modified",
	"pragma",
	"host",
	"accept",
	"accept-language",
	"user-agent",
}

// HeaderPolicy holds the per-route header allow-lists, lower-cased. The
// request set additionally admits headers the route injects statically; the
// response set does not, so injected secrets cannot leak back to clients.
type HeaderPolicy struct {
	request  map[string]struct{}
	response map[string]struct{}
}

// NewHeaderPolicy builds the two allow-lists from the route's declared extra
// headers and the names of its statically injected headers.
func NewHeaderPolicy(allowed []string, injected map[string]string) HeaderPolicy {
	p := HeaderPolicy{
		request:  make(map[string]struct{}, len(baselineHeaders)+len(allowed)+len(injected)),
		response: make(map[string]struct{}, len(baselineHeaders)+len(allowed)),
	}
	for _, h := range baselineHeaders {
		p.request[h] = struct{}{}
		p.response[h] = struct{}{}
	}
	for _, h := range allowed {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		p.request[h] = struct{}{}
		p.response[h] = struct{}{}
	}
	for h := range injected {
		p.request[strings.ToLower(h)] = struct{}{}
	}
	return p
}

// FilterRequest deletes, in place, every header not in the request-direction
// allow-list. It must run before the upstream request is built: once the
// transport starts writing, headers cannot be retracted.
func (p HeaderPolicy) FilterRequest(h http.Header) {
	filter(h, p.request)
}

// FilterResponse deletes, in place, every header not in the
// response-direction allow-list, before anything is written to the client.
func (p HeaderPolicy) FilterResponse(h http.Header) {
	filter(h, p.response)
}

// RequestAllows reports whether the named header survives request filtering.
func (p HeaderPolicy) RequestAllows(name string) bool {
	_, ok := p.request[strings.ToLower(name)]
	return ok
}

// ResponseAllows reports whether the named header survives response filtering.
func (p HeaderPolicy) ResponseAllows(name string) bool {
	_, ok := p.response[strings.ToLower(name)]
	return ok
}

func filter(h http.Header, allowed map[string]struct{}) {
	for name := range h {
		if _, ok := allowed[strings.ToLower(name)]; !ok {
			delete(h, name)
		}
	}
}
