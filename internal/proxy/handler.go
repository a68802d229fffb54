package proxy

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mlindgren/routeproxy/internal/bodycache"
	"github.com/mlindgren/routeproxy/internal/config"
	"github.com/mlindgren/routeproxy/internal/metrics"
	"github.com/mlindgren/routeproxy/internal/ratelimit"
)

// Route is one compiled forwarding handler: a stateless function of the
// request and its fixed configuration.
type Route struct {
	Name   string
	Mount  string // pathPrefix + route key, no trailing slash
	Target *url.URL

	rewrites     []rewriteRule
	policy       HeaderPolicy
	methods      map[string]struct{} // nil => all methods allowed
	inject       map[string]string   // canonical header names
	changeOrigin bool
	revive       bool
	transport    http.RoundTripper
	limits       *config.RateLimit
	limiter      *ratelimit.Limiter
	timeout      time.Duration
	metrics      *metrics.Registry
	log          *zap.Logger
}

var _ http.Handler = (*Route)(nil)

// Matches reports whether this route claims the request. A method outside
// the allow-list makes the route not match at all; the request falls through
// to later routes or the host's 404, it is never answered with a fabricated
// 4xx here.
func (rt *Route) Matches(path, method string) bool {
	if !pathPrefixMatch(path, rt.Mount) {
		return false
	}
	if rt.methods == nil {
		return true
	}
	_, ok := rt.methods[strings.ToUpper(method)]
	return ok
}

func (rt *Route) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := rt.forward(w, r)
	if rt.metrics != nil {
		rt.metrics.IncRequest(rt.Name, r.Method, strconv.Itoa(status))
		rt.metrics.ObserveLatency(rt.Name, time.Since(start))
	}
}

func (rt *Route) forward(w http.ResponseWriter, r *http.Request) int {
	if rt.limits != nil && rt.limiter != nil {
		if !rt.limiter.Allow(rt.Name, rt.limits.RequestsPerSecond, rt.limits.Burst) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return http.StatusTooManyRequests
		}
	}

	body := r.Body
	contentLength := r.ContentLength
	if rt.revive {
		if cached := bodycache.FromContext(r.Context()); cached != nil {
			body, contentLength = cached.Revive()
		}
	}

	// Header filtering mutates the inbound collection in place and must
	// complete before the upstream request exists; once the transport
	// starts writing, headers cannot be retracted.
	rt.policy.FilterRequest(r.Header)
	for k, v := range rt.inject {
		r.Header.Set(k, v)
	}

	u := new(url.URL)
	*u = *rt.Target
	u.Path = joinSlash(rt.Target.Path, applyRewrites(rt.rewrites, r.URL.Path))
	u.RawQuery = r.URL.RawQuery

	ctx := r.Context()
	if rt.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.timeout)
		defer cancel()
	}

	reqUp, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return http.StatusBadRequest
	}
	reqUp.Header = r.Header
	if contentLength >= 0 {
		reqUp.ContentLength = contentLength
	}
	if !rt.changeOrigin {
		// keep the inbound Host; the default is the target's host
		reqUp.Host = r.Host
	}

	resUp, err := rt.transport.RoundTrip(reqUp)
	if err != nil {
		rt.log.Error("upstream request failed", zap.String("target", u.String()), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return http.StatusBadGateway
	}
	defer func() {
		if err := resUp.Body.Close(); err != nil {
			rt.log.Warn("closing upstream body", zap.Error(err))
		}
	}()

	// Response filtering happens before any byte reaches the client.
	rt.policy.FilterResponse(resUp.Header)
	copyHeaders(w.Header(), resUp.Header)
	w.WriteHeader(resUp.StatusCode)
	if _, err := io.Copy(w, resUp.Body); err != nil {
		rt.log.Debug("copying upstream body", zap.Error(err))
	}
	return resUp.StatusCode
}

// --- helpers ---

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		dst.Del(k)
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func joinSlash(a, b string) string {
	as := strings.HasSuffix(a, "/")
	bs := strings.HasPrefix(b, "/")
	switch {
	case as && bs:
		return a + b[1:]
	case !as && !bs:
		return a + "/" + b
	default:
		return a + b
	}
}
