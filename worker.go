package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/inkforge/inkforge/internal/activities"
	"github.com/inkforge/inkforge/internal/budget"
	"github.com/inkforge/inkforge/internal/circuitbreaker"
	"github.com/inkforge/inkforge/internal/config"
	"github.com/inkforge/inkforge/internal/constants"
	"github.com/inkforge/inkforge/internal/fetcher"
	"github.com/inkforge/inkforge/internal/gateway"
	"github.com/inkforge/inkforge/internal/knowledge"
	_ "github.com/inkforge/inkforge/internal/metrics" // register collectors
	"github.com/inkforge/inkforge/internal/output"
	"github.com/inkforge/inkforge/internal/pool"
	"github.com/inkforge/inkforge/internal/pricing"
	"github.com/inkforge/inkforge/internal/store"
	"github.com/inkforge/inkforge/internal/tracing"
	"github.com/inkforge/inkforge/internal/workflows"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the pipeline worker",
	Long:  "Starts the Temporal worker that executes article runs, plus the metrics/health endpoint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func runWorker() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Initialize(cfg.Tracing, logger)
	if err != nil {
		logger.Warn("Tracing init failed, continuing without", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	prices, err := pricing.Load(cfg.Provider.PricingPath)
	if err != nil {
		return err
	}

	rp := pool.New(map[string]pool.Limits{
		pool.Search:  {MaxConcurrent: cfg.Pools.Search.MaxConcurrent, RPM: cfg.Pools.Search.RPM},
		pool.Content: {MaxConcurrent: cfg.Pools.Content.MaxConcurrent, RPM: cfg.Pools.Content.RPM},
		pool.Default: {MaxConcurrent: cfg.Pools.Default.MaxConcurrent, RPM: cfg.Pools.Default.RPM},
	})
	defer rp.Close()

	gw := gateway.New(cfg.Provider, cfg.Search, cfg.Circuit, rp, prices, logger)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unreachable, knowledge cache disabled", zap.Error(err))
			rdb = nil
		}
		if rdb != nil {
			defer rdb.Close()
		}
	}

	kn := knowledge.New(gw, rdb, cfg.Search, logger)
	f := fetcher.New(rp, cfg.Fetcher, cfg.Authority, logger)
	ledger := budget.NewLedger(prices)

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path, logger)
		if err != nil {
			logger.Warn("Run store unavailable, history disabled", zap.Error(err))
			st = nil
		} else {
			defer st.Close()
		}
	}

	writer := output.NewWriter(cfg.Output.Dir, logger)
	acts := activities.New(gw, kn, f, ledger, st, writer, cfg, logger)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("connect temporal: %w", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(workflows.ArticleWorkflow, workflow.RegisterOptions{Name: workflows.ArticleWorkflowName})
	w.RegisterActivityWithOptions(acts.BeginRun, activity.RegisterOptions{Name: constants.BeginRunActivity})
	w.RegisterActivityWithOptions(acts.FinishRun, activity.RegisterOptions{Name: constants.FinishRunActivity})
	w.RegisterActivityWithOptions(acts.RunAgentTask, activity.RegisterOptions{Name: constants.RunAgentTaskActivity})
	w.RegisterActivityWithOptions(acts.SearchKnowledge, activity.RegisterOptions{Name: constants.SearchKnowledgeActivity})
	w.RegisterActivityWithOptions(acts.ValidateDraft, activity.RegisterOptions{Name: constants.ValidateDraftActivity})
	w.RegisterActivityWithOptions(acts.PersistArtifacts, activity.RegisterOptions{Name: constants.PersistArtifactsActivity})

	adminAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		for _, name := range []string{pool.Search, pool.Content, pool.Default} {
			if gw.Breaker(name).State() == circuitbreaker.StateOpen {
				rw.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(rw, `{"status":"degraded","open_circuit":%q}`, name)
				return
			}
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte(`{"status":"ok"}`))
	})
	adminSrv := &http.Server{Addr: adminAddr, Handler: mux}
	go func() {
		logger.Info("Admin endpoint listening", zap.String("addr", adminAddr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin endpoint failed", zap.Error(err))
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = adminSrv.Shutdown(ctx)
	}()

	logger.Info("Worker starting",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("temporal", cfg.Temporal.HostPort),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	logger.Info("Worker shut down")
	return nil
}
