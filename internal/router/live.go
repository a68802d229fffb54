// Package router dispatches requests through an atomically swappable route
// table.
package router

import (
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mlindgren/routeproxy/internal/config"
	"github.com/mlindgren/routeproxy/internal/metrics"
	"github.com/mlindgren/routeproxy/internal/proxy"
	"github.com/mlindgren/routeproxy/internal/ratelimit"
)

// LiveRouter holds the active route table behind an atomic pointer. Requests
// dispatch through whatever table is current when they arrive; a reload
// replaces the table in one atomic step, so no request ever observes a
// half-built mix of old and new routes.
type LiveRouter struct {
	compiler *proxy.Compiler
	limiter  *ratelimit.Limiter
	metrics  *metrics.Registry
	log      *zap.Logger

	table atomic.Pointer[proxy.Table]

	reloadMu sync.Mutex          // serializes reloads, not dispatch
	applied  *config.ProxyConfig // config behind the current table
}

func New(compiler *proxy.Compiler, lim *ratelimit.Limiter, m *metrics.Registry, log *zap.Logger) *LiveRouter {
	lr := &LiveRouter{
		compiler: compiler,
		limiter:  lim,
		metrics:  m,
		log:      log,
	}
	lr.table.Store(&proxy.Table{})
	return lr
}

var _ http.Handler = (*LiveRouter)(nil)

// ServeHTTP forwards to the first matching route of the current table.
// Unmatched requests (including method-rejected ones) get the host's 404.
func (lr *LiveRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt := lr.table.Load().Match(r.URL.Path, r.Method)
	if rt == nil {
		http.NotFound(w, r)
		return
	}
	rt.ServeHTTP(w, r)
}

// Reload builds a table from the given proxy configuration and swaps it in.
// A configuration structurally equal to the one behind the current table is
// a no-op. On build failure the previous table stays active and the error is
// returned to the caller.
func (lr *LiveRouter) Reload(pc *config.ProxyConfig) error {
	lr.reloadMu.Lock()
	defer lr.reloadMu.Unlock()

	if lr.applied != nil && reflect.DeepEqual(lr.applied, pc) {
		lr.log.Debug("proxy configuration unchanged, keeping current table")
		return nil
	}

	pol := proxy.Policy{
		SkipInvalid:  pc.SkipInvalidProxies,
		ReviveBodies: pc.ReviveConsumedRequestBodies,
	}
	next, err := proxy.BuildTable(lr.compiler, pc.Endpoints, pol, lr.log)
	if err != nil {
		return err
	}

	prev := lr.table.Swap(next)
	lr.applied = pc
	lr.dropStaleLimiters(prev, next)

	if lr.metrics != nil {
		lr.metrics.SetActiveRoutes(next.Len())
		lr.metrics.IncReload()
	}
	lr.log.Info("route table swapped",
		zap.Int("routes", next.Len()),
		zap.Strings("mounted", next.Names()))
	return nil
}

// Table returns the currently active table.
func (lr *LiveRouter) Table() *proxy.Table {
	return lr.table.Load()
}

func (lr *LiveRouter) dropStaleLimiters(prev, next *proxy.Table) {
	if lr.limiter == nil || prev == nil {
		return
	}
	kept := make(map[string]struct{}, next.Len())
	for _, name := range next.Names() {
		kept[name] = struct{}{}
	}
	for _, name := range prev.Names() {
		if _, ok := kept[name]; !ok {
			lr.limiter.Remove(name)
		}
	}
}
