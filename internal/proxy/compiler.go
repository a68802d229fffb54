package proxy

import (
	"fmt"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mlindgren/routeproxy/internal/config"
	"github.com/mlindgren/routeproxy/internal/forward"
	"github.com/mlindgren/routeproxy/internal/metrics"
	"github.com/mlindgren/routeproxy/internal/ratelimit"
)

// Compiler turns raw route configuration into forwarding handlers. All
// validation happens before anything observable is installed; a failed
// Compile leaves no state behind.
type Compiler struct {
	pathPrefix string
	transports forward.Factory
	limiter    *ratelimit.Limiter
	metrics    *metrics.Registry
	timeout    time.Duration
	log        *zap.Logger
}

func NewCompiler(pathPrefix string, transports forward.Factory, lim *ratelimit.Limiter, m *metrics.Registry, upstreamTimeout time.Duration, log *zap.Logger) *Compiler {
	return &Compiler{
		pathPrefix: strings.TrimSuffix(pathPrefix, "/"),
		transports: transports,
		limiter:    lim,
		metrics:    m,
		timeout:    upstreamTimeout,
		log:        log,
	}
}

// PathPrefix is the external mount point all routes live under.
func (c *Compiler) PathPrefix() string { return c.pathPrefix }

// Compile normalizes and validates one route's raw value and assembles its
// forwarding handler. reviveBodies is the global body-revival default; the
// route may override it either way.
func (c *Compiler) Compile(route string, raw config.RawRoute, reviveBodies bool) (*Route, error) {
	if raw.ShapeErr != "" {
		return nil, &CompileError{Route: route, Err: fmt.Errorf("%w: %s", config.ErrInvalidConfigShape, raw.ShapeErr)}
	}

	spec := raw.Spec
	if spec == nil {
		// bare URL string normalizes to a target-only spec
		spec = &config.RouteSpec{Target: raw.Target}
	}

	target, err := parseTarget(spec.Target)
	if err != nil {
		return nil, &CompileError{Route: route, Err: err}
	}

	rewrites := spec.PathRewrite
	if len(rewrites) == 0 {
		rewrites = DefaultRewrite(c.pathPrefix, route)
	}
	compiled, err := compileRewrites(rewrites)
	if err != nil {
		return nil, &CompileError{Route: route, Err: err}
	}

	changeOrigin := true
	if spec.ChangeOrigin != nil {
		changeOrigin = *spec.ChangeOrigin
	}

	revive := reviveBodies
	if spec.ReviveRequestBody != nil {
		revive = *spec.ReviveRequestBody
	}

	var methods map[string]struct{}
	if len(spec.AllowedMethods) > 0 {
		methods = make(map[string]struct{}, len(spec.AllowedMethods))
		for _, m := range spec.AllowedMethods {
			methods[strings.ToUpper(strings.TrimSpace(m))] = struct{}{}
		}
	}

	inject := make(map[string]string, len(spec.Headers))
	for k, v := range spec.Headers {
		inject[textproto.CanonicalMIMEHeaderKey(k)] = v
	}

	return &Route{
		Name:         route,
		Mount:        mountPoint(c.pathPrefix, route),
		Target:       target,
		rewrites:     compiled,
		policy:       NewHeaderPolicy(spec.AllowedHeaders, spec.Headers),
		methods:      methods,
		inject:       inject,
		changeOrigin: changeOrigin,
		revive:       revive,
		transport:    c.transports.Get(spec.Proto),
		limits:       spec.RateLimit,
		limiter:      c.limiter,
		timeout:      c.timeout,
		metrics:      c.metrics,
		log:          c.log.With(zap.String("route", route)),
	}, nil
}

func parseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: target is required", ErrInvalidTarget)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidTarget, raw)
	}
	return u, nil
}

// mountPoint joins the external prefix and the route key into the path the
// route answers under. Bare route names get a leading slash.
func mountPoint(pathPrefix, route string) string {
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return pathPrefix + strings.TrimSuffix(route, "/")
}
