package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dashcore/internal/blob"
	"dashcore/internal/config"
	"dashcore/internal/core"
	"dashcore/internal/engine"
	"dashcore/internal/logging"
	"dashcore/internal/source"
	"dashcore/pkg/dashboard"
	"dashcore/plugins/grants"
	"dashcore/plugins/marathon"
	"dashcore/plugins/occupations"
	"dashcore/plugins/ridership"
)

// app carries what every command shares once bootstrapped.
type app struct {
	configPath string
	logLevel   string
	out        io.Writer

	cfg    *config.Config
	logger *zap.Logger
	store  blob.Store
	svc    *core.Service
}

func builtinPlugins() []dashboard.Plugin {
	return []dashboard.Plugin{
		ridership.New(),
		grants.New(),
		occupations.New(),
		marathon.New(),
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "dashd",
		Short:         "Linked-view dashboard engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "dashd.yaml", "configuration file; a missing file means defaults")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")
	root.AddCommand(
		newListCmd(a),
		newServeCmd(a),
		newRenderCmd(a),
		newTUICmd(a),
	)
	return root
}

// bootstrap loads configuration and installs every enabled plugin, every
// YAML dashboard and the configured source overrides.
func (a *app) bootstrap(ctx context.Context, opts ...core.Option) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	opener := source.NewOpener(
		source.WithBlobStore(store),
		source.WithBaseDir(cfg.DataDir),
		source.WithLogger(logger),
	)
	svc := core.NewService(opener, append([]core.Option{core.WithLogger(logger)}, opts...)...)

	for _, p := range builtinPlugins() {
		if !cfg.Enabled(p.Name()) {
			logger.Debug("plugin disabled", zap.String("plugin", p.Name()))
			continue
		}
		if _, err := svc.InstallPlugin(p); err != nil {
			return err
		}
	}
	defs, err := config.LoadDashboards(cfg.DashboardsDir)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := svc.Install(def); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(cfg.Sources))
	for key := range cfg.Sources {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := svc.OverrideSource(key, cfg.Sources[key]); err != nil {
			return fmt.Errorf("config: sources: %w", err)
		}
	}

	a.cfg, a.logger, a.store, a.svc = cfg, logger, store, svc
	return nil
}

// engine opens one dashboard and returns its engine.
func (a *app) engine(ctx context.Context, key string) (*engine.Engine, error) {
	if err := a.svc.Open(ctx, key); err != nil {
		return nil, err
	}
	return a.svc.Engine(key)
}

func (a *app) sync() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
