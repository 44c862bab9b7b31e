package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"couriergate/internal/cache"
	"couriergate/internal/config"
	"couriergate/internal/control"
	"couriergate/internal/lifecycle"
	"couriergate/internal/logging"
	"couriergate/internal/metrics"
	"couriergate/internal/notify"
	"couriergate/internal/origin"
	"couriergate/internal/queue"
	"couriergate/internal/strategy"
	"couriergate/internal/syncer"
	"couriergate/internal/upstream"
	"couriergate/internal/windows"
	"couriergate/internal/worker"
)

func main() {
	configPath := flag.String("config", "./configs/couriergate.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var endpoints []*origin.Endpoint
	for _, raw := range cfg.Origin.Endpoints {
		u, err := url.Parse(raw)
		if err != nil {
			log.Fatalf("parse origin endpoint %q: %v", raw, err)
		}
		endpoints = append(endpoints, &origin.Endpoint{URL: u})
	}

	var hc *origin.HealthCheckConfig
	if cfg.Origin.HealthCheck != nil {
		hc = &origin.HealthCheckConfig{
			Path:               cfg.Origin.HealthCheck.Path,
			Interval:           cfg.Origin.HealthCheck.Interval,
			Timeout:            cfg.Origin.HealthCheck.Timeout,
			UnhealthyThreshold: cfg.Origin.HealthCheck.UnhealthyThreshold,
			HealthyThreshold:   cfg.Origin.HealthCheck.HealthyThreshold,
		}
	}

	var cb *origin.CircuitBreakerConfig
	if cfg.Origin.CircuitBreaker != nil {
		cb = &origin.CircuitBreakerConfig{
			ConsecutiveFailures: cfg.Origin.CircuitBreaker.ConsecutiveFailures,
			Cooldown:            cfg.Origin.CircuitBreaker.Cooldown,
		}
	}

	pool := origin.NewPool(endpoints, hc, cb)
	pool.StartHealthChecks(bgCtx, &http.Client{})

	metrics.Init()

	logger := logging.New()
	transport := upstream.NewTransport(cfg.Origin.Insecure)
	fetcher := origin.NewClient(pool, transport)

	var store cache.Store
	if cfg.Cache.Path != "" {
		sqliteStore, err := cache.OpenSQLiteStore(cfg.Cache.Path, logger)
		if err != nil {
			log.Fatalf("open cache store: %v", err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
	} else {
		store = cache.NewInMemoryStore(cfg.Cache.MaxEntries)
	}

	q, err := queue.Open(cfg.Queue.Path)
	if err != nil {
		log.Fatalf("open queue store: %v", err)
	}
	defer q.Close()

	gens := strategy.Generations{
		Static:  cfg.StaticGeneration(),
		Dynamic: cfg.DynamicGeneration(),
	}

	hub := windows.NewHub()
	engine := strategy.NewEngine(gens, store, fetcher, logger)
	controller := lifecycle.NewController(cfg.Cache.Version, gens.Static, gens.Dynamic, cfg.Cache.Seeds, store, fetcher, hub, logger)
	dispatcher := syncer.New(q, fetcher, logger)
	gateway := notify.NewGateway(logger)
	wrk := worker.New(controller, engine, dispatcher, gateway, hub, logger)

	// Startup is a deploy: seed the new generations, then take over.
	if err := wrk.Dispatch(bgCtx, worker.EventInstall, nil); err != nil {
		log.Fatalf("install: %v", err)
	}
	if controller.ForceTakeover {
		if err := wrk.Dispatch(bgCtx, worker.EventActivate, nil); err != nil {
			log.Fatalf("activate: %v", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/_worker/", http.StripPrefix("/_worker", control.NewRouter(wrk, q, hub, logger)))
	mux.Handle("/", engine)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	go func() {
		log.Printf("Listening on %s", srv.Addr)
		if cfg.Server.TLS.Enabled {
			if err := srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("server TLS error: %v", err)
			}
		} else {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("server error: %v", err)
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := wrk.Shutdown(ctx); err != nil {
		log.Printf("Background work shutdown error: %v", err)
	}
}
