package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/jdziat/durable-training-queue/internal/app"
	"github.com/jdziat/durable-training-queue/pkg/metrics"
	"github.com/jdziat/durable-training-queue/pkg/worker"
)

func (c *cli) runCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Tick the queue on the configured schedule until interrupted",
		Long: `Run ticks the queue whenever scheduler.schedule fires, releasing entries stuck
in LAUNCHING for longer than scheduler.stuck_after, and serves Prometheus
metrics on metrics.addr. Tick spans are exported over OTLP/HTTP when
tracing.endpoint is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := c.open(ctx)
			if err != nil {
				return err
			}

			shutdownTracing, err := app.SetupTracing(ctx, a.Config.Tracing)
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(flushCtx); err != nil {
					a.Logger.Warn("span export shutdown failed", "error", err)
				}
			}()

			s, err := a.Scheduler()
			if err != nil {
				return err
			}

			collector := metrics.New()
			go collector.Watch(ctx, a.Queue)

			runner, err := a.Runner(s, worker.OnTick(collector.ObserveTick))
			if err != nil {
				return err
			}

			if metricsAddr == "" {
				metricsAddr = a.Config.Metrics.Addr
			}
			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(collector), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.Logger.Error("metrics server failed", "addr", metricsAddr, "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				a.Logger.Info("serving metrics", "addr", metricsAddr)
			}

			err = runner.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "metrics listen address (overrides metrics.addr)")
	return cmd
}

func metricsMux(collector *metrics.Collector) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet, http.MethodHead)
	return r
}
