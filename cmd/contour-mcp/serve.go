package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/contour-mcp/internal/cache"
	"github.com/ironsheep/contour-mcp/internal/logging"
	"github.com/ironsheep/contour-mcp/internal/pipeline"
	"github.com/ironsheep/contour-mcp/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdin/stdout",
	Long: `Starts the MCP server. Requests are read from stdin and responses written to
stdout, one JSON-RPC message per line; logs go to stderr.

With --metrics-addr (or metrics.addr in the configuration) Prometheus metrics
are served on /metrics at that address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logging.Sync(logger)

		if cmd.Flags().Changed("metrics-addr") {
			cfg.Metrics.Addr, _ = cmd.Flags().GetString("metrics-addr")
		}
		opts, err := pipeline.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics, err := pipeline.NewMetrics(reg)
		if err != nil {
			return err
		}

		store := cache.New(cfg.Cache)
		defer store.Close()
		if rs, ok := store.(*cache.Redis); ok {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := rs.Ping(pingCtx); err != nil {
				logger.Warn("redis report cache unreachable; reports will be recomputed",
					zap.String("addr", cfg.Cache.Redis.Addr), zap.Error(err))
			}
			cancel()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Metrics.Addr != "" {
			httpSrv := &http.Server{
				Addr:              cfg.Metrics.Addr,
				Handler:           server.MetricsHandler(reg),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()
		}

		srv := server.New(
			server.WithLogger(logger),
			server.WithPipeline(pipeline.New(logger, metrics)),
			server.WithReportStore(store),
			server.WithDefaults(opts),
			server.WithVersion(Version),
		)
		logger.Info("contour-mcp server starting",
			zap.String("version", Version),
			zap.String("build_time", BuildTime),
			zap.String("commit", GitCommit))

		// A blocked stdin read does not observe ctx, so wait on both.
		done := make(chan error, 1)
		go func() { done <- srv.Run(ctx) }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("metrics-addr", "", "Address for the Prometheus /metrics listener (e.g. :9464)")
}
