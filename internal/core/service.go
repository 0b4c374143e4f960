// Package core hosts installed dashboards: it collects definitions from
// plugins and YAML files, loads their datasets and owns one engine per
// dashboard.
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dashcore/internal/engine"
	"dashcore/internal/source"
	"dashcore/pkg/dashboard"
	"dashcore/pkg/table"
)

// ErrNotFound is returned for unknown dashboard keys.
type ErrNotFound struct {
	Dashboard string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("dashboard %s not found", e.Dashboard)
}

// ErrNotOpened is returned by Engine for dashboards whose dataset has not
// been loaded yet.
var ErrNotOpened = errors.New("core: dashboard not opened")

const defaultOpenLimit = 4

// Service installs dashboards and opens their engines.
type Service struct {
	opener    *source.Opener
	logger    *zap.Logger
	metrics   func(dashboard string) engine.MetricsRecorder
	tracer    engine.Tracer
	openLimit int

	mu      sync.RWMutex
	plugins map[string]PluginMetadata
	defs    map[string]entry
	engines map[string]*engine.Engine
	started bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger; engines get a child logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics installs a per-dashboard recorder factory.
func WithMetrics(f func(dashboard string) engine.MetricsRecorder) Option {
	return func(s *Service) { s.metrics = f }
}

// WithTracer sets the tracer handed to every engine.
func WithTracer(t engine.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithOpenLimit bounds how many datasets load concurrently.
func WithOpenLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.openLimit = n
		}
	}
}

// NewService constructs a service that fetches sources with opener.
func NewService(opener *source.Opener, opts ...Option) *Service {
	if opener == nil {
		opener = source.NewOpener()
	}
	s := &Service{
		opener:    opener,
		logger:    zap.NewNop(),
		openLimit: defaultOpenLimit,
		plugins:   make(map[string]PluginMetadata),
		defs:      make(map[string]entry),
		engines:   make(map[string]*engine.Engine),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InstallPlugin registers every dashboard a plugin contributes. Nothing is
// installed when any of them collides with an existing key.
func (s *Service) InstallPlugin(plugin dashboard.Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, fmt.Errorf("plugin cannot be nil")
	}
	registry := dashboard.NewRegistry()
	if err := plugin.Register(registry); err != nil {
		return PluginMetadata{}, fmt.Errorf("plugin %s: %w", plugin.Name(), err)
	}
	defs := registry.Dashboards()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plugins[plugin.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", plugin.Name())
	}
	for _, def := range defs {
		if prev, ok := s.defs[def.Key]; ok {
			return PluginMetadata{}, fmt.Errorf("dashboard %s already registered by %s", def.Key, prev.origin)
		}
	}
	meta := PluginMetadata{Name: plugin.Name(), Version: plugin.Version()}
	for _, def := range defs {
		s.defs[def.Key] = entry{def: def, origin: plugin.Name()}
		meta.Dashboards = append(meta.Dashboards, def.Key)
	}
	s.plugins[plugin.Name()] = meta
	s.logger.Info("plugin installed", zap.String("plugin", meta.Name), zap.Strings("dashboards", meta.Dashboards))
	return meta, nil
}

// Install registers a single definition, typically parsed from YAML.
func (s *Service) Install(def dashboard.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.defs[def.Key]; ok {
		return fmt.Errorf("dashboard %s already registered by %s", def.Key, prev.origin)
	}
	s.defs[def.Key] = entry{def: def, origin: OriginConfig}
	return nil
}

// OverrideSource replaces the source of an installed, unopened dashboard.
func (s *Service) OverrideSource(key string, src dashboard.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.defs[key]
	if !ok {
		return ErrNotFound{Dashboard: key}
	}
	if _, opened := s.engines[key]; opened {
		return fmt.Errorf("dashboard %s already opened", key)
	}
	if src.Format == "" && src.Query == "" && src.Sheet == "" {
		src.Format, src.Query, src.Sheet = e.def.Source.Format, e.def.Source.Query, e.def.Source.Sheet
	}
	e.def.Source = src
	if err := e.def.Validate(); err != nil {
		return err
	}
	s.defs[key] = e
	return nil
}

// RegisteredPlugins returns installed plugins sorted by name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedPlugins(s.plugins)
}

// Dashboards describes every installed dashboard sorted by key.
func (s *Service) Dashboards() []dashboard.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dashboard.Descriptor, 0, len(s.defs))
	for _, e := range s.defs {
		d := e.def.Descriptor()
		d.Plugin = e.origin
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Definition returns the installed definition for key.
func (s *Service) Definition(key string) (dashboard.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.defs[key]
	if !ok {
		return dashboard.Definition{}, ErrNotFound{Dashboard: key}
	}
	return e.def, nil
}

// Open loads every installed dashboard not yet opened. Loads run
// concurrently; the first failure cancels the rest and is returned.
func (s *Service) Open(ctx context.Context, keys ...string) error {
	todo, err := s.pending(keys)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.openLimit)
	built := make([]*engine.Engine, len(todo))
	for i, def := range todo {
		g.Go(func() error {
			eng, err := s.Build(gctx, def)
			if err != nil {
				return err
			}
			built[i] = eng
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eng := range built {
		if _, exists := s.engines[eng.Name()]; exists {
			continue
		}
		s.engines[eng.Name()] = eng
		if s.started {
			eng.Start()
		}
	}
	return nil
}

func (s *Service) pending(keys []string) ([]dashboard.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(keys) == 0 {
		for key := range s.defs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
	}
	var out []dashboard.Definition
	for _, key := range keys {
		e, ok := s.defs[key]
		if !ok {
			return nil, ErrNotFound{Dashboard: key}
		}
		if _, opened := s.engines[key]; !opened {
			out = append(out, e.def)
		}
	}
	return out, nil
}

// Build fetches and derives the dataset of def and constructs its engine
// without registering it.
func (s *Service) Build(ctx context.Context, def dashboard.Definition) (*engine.Engine, error) {
	log := s.logger.With(zap.String("dashboard", def.Key))
	src, err := s.opener.Open(def.Source)
	if err != nil {
		return nil, fmt.Errorf("dashboard %s: %w", def.Key, err)
	}
	ds, err := table.Load(ctx, src, def.Key, def.Schema)
	if err != nil {
		return nil, fmt.Errorf("dashboard %s: %w", def.Key, err)
	}
	ds, err = table.DeriveColumns(ds, def.Steps...)
	if err != nil {
		return nil, fmt.Errorf("dashboard %s: %w", def.Key, err)
	}
	opts := []engine.Option{engine.WithLogger(log)}
	if s.metrics != nil {
		opts = append(opts, engine.WithMetrics(s.metrics(def.Key)))
	}
	if s.tracer != nil {
		opts = append(opts, engine.WithTracer(s.tracer))
	}
	eng, err := engine.New(engine.Config{
		Name:     def.Key,
		Dataset:  ds,
		Controls: def.Controls,
		Views:    def.Views,
		Outputs:  def.Outputs,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("dashboard %s: %w", def.Key, err)
	}
	log.Info("dashboard opened", zap.Int("rows", ds.Rows()), zap.Int("columns", len(ds.Columns())))
	return eng, nil
}

// Engine returns the engine of an opened dashboard.
func (s *Service) Engine(key string) (*engine.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if eng, ok := s.engines[key]; ok {
		return eng, nil
	}
	if _, ok := s.defs[key]; !ok {
		return nil, ErrNotFound{Dashboard: key}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotOpened, key)
}

// Start runs the dispatch loop of every opened engine; engines opened later
// start immediately.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	for _, eng := range s.engines {
		eng.Start()
	}
}

// Close stops every engine loop.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.started = false
	engines := make([]*engine.Engine, 0, len(s.engines))
	for _, eng := range s.engines {
		engines = append(engines, eng)
	}
	s.mu.Unlock()
	var errs []error
	for _, eng := range engines {
		if err := eng.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dashboard %s: %w", eng.Name(), err))
		}
	}
	return errors.Join(errs...)
}
