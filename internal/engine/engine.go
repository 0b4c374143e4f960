// Package engine runs the recompute cycle of one dashboard: it applies UI
// events to the filter state, re-derives the views that depend on changed
// controls and commits a new output bundle atomically.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dashcore/pkg/bundle"
	"dashcore/pkg/filter"
	"dashcore/pkg/table"
	"dashcore/pkg/view"
)

// Phase is the engine's position in the recompute cycle.
type Phase int32

const (
	Idle Phase = iota
	Computing
)

func (p Phase) String() string {
	if p == Computing {
		return "computing"
	}
	return "idle"
}

var (
	// ErrNotRunning is returned by Dispatch before Start or after Stop. The
	// event was not applied.
	ErrNotRunning = errors.New("engine: not running")
	// ErrUnknownChart is reported for clicks on charts no cross-filter
	// listens to.
	ErrUnknownChart = errors.New("engine: no cross-filter for chart")
)

// Config declares one dashboard.
type Config struct {
	Name     string
	Dataset  *table.Dataset
	Controls []filter.Spec
	Views    []view.Spec
	Outputs  bundle.Specs
}

// CycleStats describes the most recent committed cycle.
type CycleStats struct {
	Cycle    uint64        `json:"cycle"`
	Event    string        `json:"event"`
	Views    []string      `json:"views"`
	Outputs  []string      `json:"outputs"`
	Duration time.Duration `json:"duration"`
}

// Engine owns the dataset, the registry and the committed state of one
// dashboard. All methods are safe for concurrent use; cycles run one at a
// time.
type Engine struct {
	name    string
	ds      *table.Dataset
	reg     *filter.Registry
	views   []view.Spec
	outputs bundle.Specs

	viewDeps   map[string][]string
	outputDeps map[string][]string

	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer

	cycleMu sync.Mutex
	phase   atomic.Int32

	mu      sync.RWMutex
	state   filter.State
	derived map[string]view.Derived
	current bundle.Bundle
	stats   CycleStats

	queue   chan *task
	runMu   sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Task claim states. A queued task runs only if the loop moves it from
// pending to taken; a Dispatch that gives up first marks it abandoned.
const (
	taskPending int32 = iota
	taskTaken
	taskAbandoned
)

type task struct {
	ctx   context.Context
	event filter.Event
	reply chan result
	state atomic.Int32
}

type result struct {
	bundle bundle.Bundle
	err    error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithQueueSize sets the capacity of the Dispatch queue.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queue = make(chan *task, n)
		}
	}
}

// New validates cfg, derives every view for the default state and renders
// the initial bundle.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Dataset == nil {
		return nil, fmt.Errorf("engine %s: dataset required", cfg.Name)
	}
	e := &Engine{
		name:       cfg.Name,
		ds:         cfg.Dataset,
		views:      append([]view.Spec(nil), cfg.Views...),
		outputs:    cfg.Outputs,
		viewDeps:   make(map[string][]string, len(cfg.Views)),
		outputDeps: make(map[string][]string),
		logger:     zap.NewNop(),
		metrics:    noopMetrics{},
		tracer:     noopTracer{},
		queue:      make(chan *task, 16),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("dashboard", cfg.Name))
	reg, err := filter.NewRegistry(cfg.Dataset, cfg.Controls, filter.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", cfg.Name, err)
	}
	e.reg = reg
	state := reg.Initial()
	derived := make(map[string]view.Derived, len(cfg.Views))
	for _, spec := range cfg.Views {
		if _, dup := derived[spec.ID]; dup {
			return nil, fmt.Errorf("engine %s: view %s declared twice", cfg.Name, spec.ID)
		}
		d, err := view.Derive(cfg.Dataset, reg, state, spec)
		if err != nil {
			return nil, fmt.Errorf("engine %s: %w", cfg.Name, err)
		}
		derived[spec.ID] = d
		e.viewDeps[spec.ID], _ = reg.Expand(spec.Listens)
	}
	if err := cfg.Outputs.Validate(reg, derived); err != nil {
		return nil, fmt.Errorf("engine %s: %w", cfg.Name, err)
	}
	for _, out := range cfg.Outputs.Outputs() {
		e.outputDeps[out.OutputID()], _ = reg.Expand(out.Controls())
	}
	b, err := bundle.Assemble(bundle.Input{Dashboard: cfg.Name, Registry: reg, State: state, Views: derived}, cfg.Outputs, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", cfg.Name, err)
	}
	e.state, e.derived, e.current = state, derived, b
	return e, nil
}

// Name returns the dashboard name.
func (e *Engine) Name() string { return e.name }

// Dataset returns the dashboard dataset.
func (e *Engine) Dataset() *table.Dataset { return e.ds }

// Registry returns the control registry.
func (e *Engine) Registry() *filter.Registry { return e.reg }

// Outputs returns the output specs.
func (e *Engine) Outputs() bundle.Specs { return e.outputs }

// Views returns the view specs.
func (e *Engine) Views() []view.Spec { return append([]view.Spec(nil), e.views...) }

// Phase reports whether a cycle is in progress.
func (e *Engine) Phase() Phase { return Phase(e.phase.Load()) }

// State returns the committed filter state.
func (e *Engine) State() filter.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Bundle returns the committed output bundle.
func (e *Engine) Bundle() bundle.Bundle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Derived returns the committed derivation of a view.
func (e *Engine) Derived(id string) (view.Derived, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.derived[id]
	return d, ok
}

// LastCycle returns statistics of the most recent committed cycle.
func (e *Engine) LastCycle() CycleStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// Process runs one cycle for ev and returns the resulting bundle. Absorbed
// conditions (invalid ranges, unknown controls) return the current bundle
// and a nil error. A non-nil error leaves the committed state untouched.
func (e *Engine) Process(ctx context.Context, ev filter.Event) (bundle.Bundle, error) {
	if ev == nil {
		return e.Bundle(), errors.New("engine: nil event")
	}
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	if err := ctx.Err(); err != nil {
		return e.Bundle(), err
	}

	e.phase.Store(int32(Computing))
	defer e.phase.Store(int32(Idle))

	op := "cycle." + ev.EventName()
	ctx, span := e.tracer.Start(ctx, op)
	started := time.Now()
	b, err := e.cycle(ev, started)
	span.End(err)
	e.metrics.Observe(ctx, op, err == nil, time.Since(started))
	return b, err
}

func (e *Engine) cycle(ev filter.Event, started time.Time) (bundle.Bundle, error) {
	e.mu.RLock()
	prevState, prevDerived, prevBundle, prevStats := e.state, e.derived, e.current, e.stats
	e.mu.RUnlock()

	next, change, err := e.reg.Apply(prevState, ev)
	var invalid *filter.InvalidRangeError
	if errors.As(err, &invalid) {
		e.logger.Warn("engine: range rejected", zap.String("control", invalid.ControlID), zap.Error(err))
		return prevBundle, nil
	}
	if err != nil {
		return prevBundle, err
	}
	if change.Empty() {
		e.logger.Debug("engine: event changed nothing", zap.String("event", ev.EventName()))
		return prevBundle, nil
	}

	derived := make(map[string]view.Derived, len(prevDerived))
	dirtyViews := make(map[string]bool)
	var recomputed []string
	for _, spec := range e.views {
		if !change.Touches(e.viewDeps[spec.ID]...) {
			derived[spec.ID] = prevDerived[spec.ID]
			continue
		}
		d, err := view.Derive(e.ds, e.reg, next, spec)
		if err != nil {
			return prevBundle, fmt.Errorf("engine %s: %w", e.name, err)
		}
		derived[spec.ID] = d
		dirtyViews[spec.ID] = true
		recomputed = append(recomputed, spec.ID)
	}

	var rendered []string
	b, err := bundle.Assemble(bundle.Input{Dashboard: e.name, Registry: e.reg, State: next, Views: derived}, e.outputs, &prevBundle,
		func(out bundle.Output) bool {
			clean := !dirtyViews[out.ViewID()] && !change.Touches(e.outputDeps[out.OutputID()]...)
			if !clean {
				rendered = append(rendered, out.OutputID())
			}
			return clean
		})
	if err != nil {
		return prevBundle, fmt.Errorf("engine %s: %w", e.name, err)
	}
	sort.Strings(rendered)

	stats := CycleStats{Cycle: prevStats.Cycle + 1, Event: ev.EventName(), Views: recomputed, Outputs: rendered, Duration: time.Since(started)}
	b.Cycle = stats.Cycle
	e.mu.Lock()
	e.state, e.derived, e.current, e.stats = next, derived, b, stats
	e.mu.Unlock()

	e.logger.Debug("engine: cycle committed",
		zap.Uint64("cycle", stats.Cycle),
		zap.String("event", stats.Event),
		zap.Strings("controls", change.Controls),
		zap.Strings("views", recomputed),
		zap.Int("outputs", len(rendered)),
		zap.Duration("duration", stats.Duration))
	return b, nil
}

// ClickEvent translates a click on a chart element into the selection event
// of the cross-filter fed by that chart.
func (e *Engine) ClickEvent(chart, label string) (filter.Event, error) {
	spec, ok := e.reg.CrossFilterFor(chart)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChart, chart)
	}
	return filter.SelectionChanged{ControlID: spec.ID, Value: label}, nil
}

// Click processes a chart click. Clicks on charts without a cross-filter are
// logged and leave the bundle unchanged.
func (e *Engine) Click(ctx context.Context, chart, label string) (bundle.Bundle, error) {
	ev, err := e.ClickEvent(chart, label)
	if err != nil {
		e.logger.Warn("engine: click ignored", zap.String("chart", chart), zap.Error(err))
		return e.Bundle(), nil
	}
	return e.Process(ctx, ev)
}

// Start launches the loop that serves Dispatch.
func (e *Engine) Start() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.running = true
	e.wg.Add(1)
	go e.loop(e.ctx)
}

// Stop halts the loop and waits for the cycle in progress, if any.
func (e *Engine) Stop(ctx context.Context) error {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return nil
	}
	e.running = false
	e.cancel()
	e.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-e.queue:
			if !t.state.CompareAndSwap(taskPending, taskTaken) {
				continue
			}
			b, err := e.Process(t.ctx, t.event)
			t.reply <- result{bundle: b, err: err}
		}
	}
}

// Dispatch queues ev behind any pending events and waits for its cycle.
// When it returns ErrNotRunning or a context error the event has not been
// applied and never will be, so callers may safely retry it elsewhere.
func (e *Engine) Dispatch(ctx context.Context, ev filter.Event) (bundle.Bundle, error) {
	e.runMu.Lock()
	running, loopCtx := e.running, e.ctx
	e.runMu.Unlock()
	if !running {
		return e.Bundle(), ErrNotRunning
	}
	t := &task{ctx: ctx, event: ev, reply: make(chan result, 1)}
	select {
	case e.queue <- t:
	case <-ctx.Done():
		return e.Bundle(), ctx.Err()
	case <-loopCtx.Done():
		return e.Bundle(), ErrNotRunning
	}
	select {
	case r := <-t.reply:
		return r.bundle, r.err
	case <-ctx.Done():
		return e.abandon(t, ctx.Err())
	case <-loopCtx.Done():
		return e.abandon(t, ErrNotRunning)
	}
}

// abandon withdraws a queued task. If the loop already took it, the cycle
// is allowed to finish and its result wins over err.
func (e *Engine) abandon(t *task, err error) (bundle.Bundle, error) {
	if t.state.CompareAndSwap(taskPending, taskAbandoned) {
		return e.Bundle(), err
	}
	r := <-t.reply
	return r.bundle, r.err
}
