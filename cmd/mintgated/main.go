package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mintgate/config"
	"mintgate/core"
	"mintgate/core/genesis"
	"mintgate/core/state"
	"mintgate/observability"
	"mintgate/observability/logging"
	"mintgate/rpc"
	"mintgate/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("mintgated", cfg.Environment, logging.Options{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.String("dataDir", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := applyGenesis(cfg, *genesisFlag, db, logger); err != nil {
		logger.Error("failed to apply genesis", slog.Any("error", err))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	node := core.NewNode(db, logger, metrics)
	rpcServer := rpc.NewServer(node, cfg.RPCRateLimitPerMinute)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiSrv := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           rpcServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	opsSrv := &http.Server{
		Addr:              cfg.OpsAddress,
		Handler:           opsRouter(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("rpc listening", slog.String("address", cfg.RPCAddress), slog.String("network", cfg.NetworkName))
		errCh <- apiSrv.ListenAndServe()
	}()
	go func() {
		logger.Info("ops listening", slog.String("address", cfg.OpsAddress))
		errCh <- opsSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown incomplete", slog.Any("error", err))
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops shutdown incomplete", slog.Any("error", err))
	}
	logger.Info("stopped")
}

// applyGenesis seeds the ledger on first boot. Later boots observe the
// on-disk marker and leave state untouched.
func applyGenesis(cfg *config.Config, genesisFlag string, db storage.Database, logger *slog.Logger) error {
	path := strings.TrimSpace(genesisFlag)
	if path == "" {
		path = strings.TrimSpace(cfg.GenesisFile)
	}

	spec := genesis.Default()
	if path != "" {
		loaded, err := genesis.Load(path)
		if err != nil {
			return err
		}
		spec = loaded
	}

	applied, err := genesis.Apply(spec, state.NewStore(db), uint64(time.Now().Unix()))
	if err != nil {
		return err
	}
	if applied {
		logger.Info("genesis applied", slog.Int("assets", len(spec.Assets)), slog.Int("allocations", len(spec.Alloc)))
	} else {
		logger.Info("genesis already applied, skipping")
	}
	return nil
}

func opsRouter(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}
