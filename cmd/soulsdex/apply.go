package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"soulsdex/internal/config"
	"soulsdex/internal/engine"
	"soulsdex/internal/metrics"
	"soulsdex/internal/runner"
	"soulsdex/internal/storage"
	"soulsdex/internal/storage/postgres"
)

func runApply(cmd *cobra.Command, _ []string) error {
	if err := loadEnv(cmd); err != nil {
		return err
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadApply(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Ops == "" {
		return fmt.Errorf("ops path is required")
	}

	genesis, err := config.ResolveGenesis(cfg.Genesis, cfg.Deployment)
	if err != nil {
		return err
	}
	for name, addr := range cfg.Aliases {
		genesis.Aliases[name] = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	eng, err := engine.FromGenesis(ctx, genesis, m, logger)
	if err != nil {
		return fmt.Errorf("deploy genesis: %w", err)
	}

	sinks := storage.Multi{storage.NewJsonlStorage(cfg.Out, cfg.Results)}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, store)
	}

	r := runner.NewRunner(runner.RunConfig{
		OpsPath:           cfg.Ops,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		ResetCheckpoint:   cfg.ResetCheckpoint,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		StopOnError:       cfg.StopOnError,
	}, eng, sinks, m, logger)

	logger.Info("apply start",
		zap.String("ops", cfg.Ops),
		zap.String("genesis", cfg.Genesis),
		zap.String("pool", genesis.Pool),
		zap.String("token_a", genesis.TokenA.Address),
		zap.String("token_b", genesis.TokenB.Address),
		zap.String("out", cfg.Out),
		zap.String("results", cfg.Results),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, runDone := context.WithCancel(gctx)
	defer runDone()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer runDone()
		sum, err := r.Run(runCtx)
		reserveA, reserveB := eng.Pool().GetReserves()
		logger.Info("apply complete",
			zap.Uint64("replayed", sum.Replayed),
			zap.Uint64("applied", sum.Applied),
			zap.Uint64("failed", sum.Failed),
			zap.Int("malformed", sum.Malformed),
			zap.Int("logs", sum.Logs),
			zap.String("reserve_a", reserveA.Dec()),
			zap.String("reserve_b", reserveB.Dec()),
			zap.String("total_liquidity", eng.Pool().TotalLiquidity().Dec()),
		)
		if err != nil {
			return err
		}
		if err := eng.CheckInvariants(); err != nil {
			return fmt.Errorf("invariants: %w", err)
		}
		return nil
	})

	return g.Wait()
}
