// Command webstack serves the request pipeline over TCP.
package main

import (
	"context"
	"flag"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webstack/application/http/actor/server"
	"webstack/application/http/dispatch"
	"webstack/application/http/middleware"
	"webstack/application/http/semantic"
	"webstack/conf"
	"webstack/transport/netconn"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load(".env")

	configPath := flag.String("config", "", "path to a YAML settings file")
	flag.Parse()

	settings, err := loadSettings(*configPath)
	if err != nil {
		slog.Error("loading settings", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: settings.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &settings, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func loadSettings(path string) (conf.Settings, error) {
	settings, err := conf.Load(path)
	if err != nil {
		return conf.Settings{}, err
	}

	settings, err = conf.FromEnv(settings, os.LookupEnv)
	if err != nil {
		return conf.Settings{}, err
	}

	return settings, settings.Validate()
}

func run(ctx context.Context, settings *conf.Settings, logger *slog.Logger) error {
	clk := clock.New()

	router := dispatch.NewRouter(settings.UnmatchedRoute)
	router.Handle("/healthz/", healthz)

	pipeline := dispatch.New(settings, router, logger.With("component", "dispatch"),
		dispatch.WithRegistry(middleware.Registry(prometheus.DefaultRegisterer, clk)))

	lis, err := netconn.Listen(settings.Listen)
	if err != nil {
		return err
	}

	srv := server.New(lis, logger.With("component", "server"), clk,
		server.NewHandler(pipeline, settings, logger), server.DefaultOptions)
	srv.Start()

	var metrics *nethttp.Server
	if settings.MetricsListen != "" {
		metrics = serveMetrics(settings.MetricsListen, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Warn("stopping metrics listener", "error", err)
		}
	}

	return errors.Wrap(srv.Close(), "closing server")
}

func serveMetrics(addr string, logger *slog.Logger) *nethttp.Server {
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s := &nethttp.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()
	return s
}

func healthz(r *semantic.Request, _ []string, _ map[string]string) (semantic.Response, error) {
	return semantic.NewTextResponse("ok\n",
		semantic.WithDefaults(r.Settings()),
		semantic.WithContentType("text/plain; charset=utf-8"))
}
