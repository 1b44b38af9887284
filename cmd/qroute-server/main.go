package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/qroute/pkg/config"
	"github.com/dd0wney/qroute/pkg/health"
	"github.com/dd0wney/qroute/pkg/logging"
	"github.com/dd0wney/qroute/pkg/metrics"
	"github.com/dd0wney/qroute/pkg/transport"
	"github.com/dd0wney/qroute/pkg/validation"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults are used when empty)")
	addr := flag.String("addr", "", "Override server.address (nanomsg URL)")
	metricsAddr := flag.String("metrics", "", "Override server.metrics_address")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	listenAddr := validation.DefaultOr(*addr, cfg.Server.Address)
	promAddr := validation.DefaultOr(*metricsAddr, cfg.Server.MetricsAddress)

	fmt.Printf("qroute - Environment Server\n")
	fmt.Printf("===========================\n\n")

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel())
	logging.SetDefaultLogger(logger)
	reg := metrics.NewRegistry()

	env, err := cfg.BuildWith(logger, reg)
	if err != nil {
		log.Fatalf("Failed to build environment: %v", err)
	}
	spec := env.ObservationSpec()

	srv := transport.NewServer(env, logger, reg)
	if err := srv.Listen(listenAddr); err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	defer srv.Close()

	var metricsServer *http.Server
	if promAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
		checker := newHealthChecker(srv)
		mux.HandleFunc("/health", checker.HTTPHandler())
		mux.HandleFunc("/ready", checker.ReadinessHandler())
		metricsServer = &http.Server{Addr: promAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", logging.Error(err))
			}
		}()
	}

	fmt.Printf("  Variant:  %s\n", env.Variant())
	fmt.Printf("  Actions:  %d\n", spec.NumActions)
	fmt.Printf("  Address:  %s (REQ/REP)\n", listenAddr)
	if metricsServer != nil {
		fmt.Printf("  Metrics:  http://%s/metrics\n", promAddr)
		fmt.Printf("  Health:   http://%s/health, /ready\n", promAddr)
	}
	fmt.Printf("\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", logging.Error(err))
	}

	fmt.Printf("\nShutting down...\n")
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
	}
}

// newHealthChecker reports on the transport without touching the
// environment, which only the Serve goroutine may use.
func newHealthChecker(srv *transport.Server) *health.Checker {
	transportCheck := health.TransportCheck(func() health.TransportStats {
		s := srv.Stats()
		return health.TransportStats{Listening: s.Listening, Served: s.Served, Failed: s.Failed}
	})

	checker := health.NewChecker()
	checker.RegisterCheck("transport", transportCheck)
	checker.RegisterCheck("memory", health.MemoryCheck(health.RuntimeMemory))
	checker.RegisterReadinessCheck("transport", transportCheck)
	return checker
}
