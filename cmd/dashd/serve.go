package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net"
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

	"dashcore/internal/adapters/export"
	"dashcore/internal/adapters/httpapi"
	"dashcore/internal/core"
	"dashcore/internal/engine"
)

type serveOptions struct {
	addr      string
	strict    bool
	traceFile string
	ready     func(net.Addr)
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open every dashboard and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail when any dashboard cannot be opened")
	cmd.Flags().StringVar(&opts.traceFile, "trace", "", "append JSON-lines cycle traces to this file")
	return cmd
}

func (a *app) serve(ctx context.Context, opts serveOptions) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engineMetrics, err := engine.NewCollectors(reg)
	if err != nil {
		return err
	}
	coreOpts := []core.Option{core.WithMetrics(func(key string) engine.MetricsRecorder {
		return engine.MultiRecorder{
			engineMetrics.Recorder(key),
			expvarRecorder(key),
		}
	})}
	if opts.traceFile != "" {
		f, err := os.OpenFile(opts.traceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- operator supplied path
		if err != nil {
			return fmt.Errorf("serve: open trace file: %w", err)
		}
		defer f.Close()
		coreOpts = append(coreOpts, core.WithTracer(engine.NewJSONTracer(f)))
	}
	if err := a.bootstrap(ctx, coreOpts...); err != nil {
		return err
	}
	defer a.sync()
	log := a.logger
	grace := a.cfg.HTTP.ShutdownTimeout
	if grace <= 0 {
		grace = 10 * time.Second
	}

	if opts.strict {
		if err := a.svc.Open(ctx); err != nil {
			return err
		}
	} else {
		for _, d := range a.svc.Dashboards() {
			if err := a.svc.Open(ctx, d.Key); err != nil {
				log.Warn("dashboard unavailable", zap.String("dashboard", d.Key), zap.Error(err))
			}
		}
	}

	worker := export.NewWorker(a.store,
		export.WithLogger(log.Named("export")),
		export.WithPrefix(a.cfg.Export.Prefix),
		export.WithQueueSize(a.cfg.Export.QueueSize),
	)
	a.svc.Start()
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := errors.Join(worker.Stop(stopCtx), a.svc.Close(stopCtx)); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	h := httpapi.NewHandler(a.svc)
	h.Exports = worker
	h.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	h.Logger = log.Named("http")
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/", h)

	addr := opts.addr
	if addr == "" {
		addr = a.cfg.HTTP.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("serve: listen %s: %w", addr, err)
	}
	if opts.ready != nil {
		opts.ready(ln.Addr())
	}
	return httpapi.Serve(ctx, ln, mux, grace, log)
}

// expvarRecorder publishes under dashcore_engine_<key>; a name taken by an
// earlier serve in the same process falls back to a generated one.
func expvarRecorder(key string) *engine.ExpvarMetricsRecorder {
	name := "dashcore_engine_" + key
	if expvar.Get(name) != nil {
		name = ""
	}
	return engine.NewExpvarMetricsRecorder(name)
}
