package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mlindgren/routeproxy/internal/bodycache"
	"github.com/mlindgren/routeproxy/internal/config"
	"github.com/mlindgren/routeproxy/internal/discovery"
	"github.com/mlindgren/routeproxy/internal/forward"
	"github.com/mlindgren/routeproxy/internal/logging"
	"github.com/mlindgren/routeproxy/internal/metrics"
	"github.com/mlindgren/routeproxy/internal/middleware"
	"github.com/mlindgren/routeproxy/internal/proxy"
	"github.com/mlindgren/routeproxy/internal/ratelimit"
	"github.com/mlindgren/routeproxy/internal/router"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to YAML config")
	flag.Parse()

	bootstrap := zap.NewNop()
	cfg, err := config.Load(*configPath, bootstrap)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Re-read with the real logger so deprecation warnings are visible.
	cfg, err = config.Load(*configPath, logger)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	disc, err := discovery.NewSingleHost(cfg.BaseURL)
	if err != nil {
		logger.Fatal("discovery", zap.Error(err))
	}
	external, err := disc.ExternalBaseURL("proxy")
	if err != nil {
		logger.Fatal("discovery", zap.Error(err))
	}
	pathPrefix, err := discovery.PathOf(external)
	if err != nil {
		logger.Fatal("discovery", zap.Error(err))
	}

	reg := metrics.NewRegistry()
	transports := forward.NewDefaultRegistry()
	limiter := ratelimit.NewLimiter()
	compiler := proxy.NewCompiler(pathPrefix, transports, limiter, reg, cfg.Timeouts.Upstream, logger)

	live := router.New(compiler, limiter, reg, logger)
	if err := live.Reload(&cfg.Proxy); err != nil {
		logger.Fatal("initial route table", zap.Error(err))
	}

	source, err := config.NewFileSource(*configPath, logger)
	if err != nil {
		logger.Fatal("config source", zap.Error(err))
	}
	source.Subscribe(func() {
		next, err := source.Load()
		if err != nil {
			logger.Error("config reload failed, keeping previous table", zap.Error(err))
			return
		}
		if err := live.Reload(&next.Proxy); err != nil {
			logger.Error("route table rebuild failed, keeping previous table", zap.Error(err))
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := source.Start(ctx); err != nil {
		logger.Fatal("config watch", zap.Error(err))
	}
	defer func() { _ = source.Close() }()

	var handler http.Handler = live
	handler = bodycache.Capture(handler)
	handler = middleware.AccessLog(logger, handler)
	handler = middleware.RequestID(handler)

	mux := http.NewServeMux()
	mux.Handle(pathPrefix+"/", handler)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadTimeout:       cfg.Timeouts.Read,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Timeouts.Write,
		IdleTimeout:       60 * time.Second,
	}
	logger.Info("routeproxy listening",
		zap.String("addr", cfg.Listen),
		zap.String("prefix", pathPrefix),
		zap.Int("routes", live.Table().Len()))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	var metricsSrv *http.Server
	if cfg.MetricsListen != "" {
		mm := http.NewServeMux()
		mm.Handle("/metrics", reg.Handler())
		mm.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		metricsSrv = &http.Server{Addr: cfg.MetricsListen, Handler: mm, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listen", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	transports.CloseIdle()
}
