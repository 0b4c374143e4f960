// Package export renders bundle snapshots into downloadable artifacts (JSON,
// CSV, HTML, PNG) on a background worker and stores them in the blob store.
package export

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dashcore/internal/blob"
	"dashcore/pkg/bundle"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format names an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatHTML, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", s)
	}
}

// ErrQueueFull is returned by Enqueue when the worker is saturated.
var ErrQueueFull = errors.New("export: queue full")

// Artifact is one stored rendering.
type Artifact struct {
	ID          string            `json:"id"`
	Format      Format            `json:"format"`
	Key         string            `json:"key,omitempty"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	Dashboard   string     `json:"dashboard"`
	Formats     []Format   `json:"formats"`
	Chart       string     `json:"chart,omitempty"`
	Grid        string     `json:"grid,omitempty"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

// Input is an export request. Bundle is the snapshot to render; Chart and
// Grid pick the chart for PNG and the grid for CSV (default: the first).
type Input struct {
	Bundle      bundle.Bundle
	Formats     []Format
	Chart       string
	Grid        string
	RequestedBy string
}

// Worker executes exports asynchronously.
type Worker struct {
	store  blob.Store
	prefix string
	logger *zap.Logger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	runMu   sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type task struct {
	id    string
	input Input
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPrefix sets the blob key prefix (default "exports").
func WithPrefix(p string) Option {
	return func(w *Worker) { w.prefix = strings.Trim(p, "/") }
}

// WithQueueSize sets the queue capacity (default 32).
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan task, n)
		}
	}
}

// NewWorker constructs a worker. A nil store renders artifacts without
// persisting them.
func NewWorker(store blob.Store, opts ...Option) *Worker {
	w := &Worker{
		store:  store,
		prefix: "exports",
		logger: zap.NewNop(),
		queue:  make(chan task, 32),
		jobs:   make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.runMu.Lock()
	defer w.runMu.Unlock()
	if w.running {
		return
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.running = true
	w.wg.Add(1)
	go w.loop(w.ctx)
}

// Stop halts the worker and waits for the job in progress.
func (w *Worker) Stop(ctx context.Context) error {
	w.runMu.Lock()
	if !w.running {
		w.runMu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	w.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.process(ctx, t)
		}
	}
}

// Enqueue validates in and schedules it. The returned record is queued.
func (w *Worker) Enqueue(_ context.Context, in Input) (Record, error) {
	if in.Bundle.Dashboard == "" {
		return Record{}, errors.New("export: bundle has no dashboard")
	}
	formats := in.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON}
		if len(in.Bundle.Grids) > 0 {
			formats = append(formats, FormatCSV)
		}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]bool)
	for _, raw := range formats {
		f, err := ParseFormat(string(raw))
		if err != nil {
			return Record{}, err
		}
		if !seen[f] {
			seen[f] = true
			uniq = append(uniq, f)
		}
	}
	if in.Chart != "" {
		if _, ok := in.Bundle.Chart(in.Chart); !ok {
			return Record{}, fmt.Errorf("export: chart %s not in bundle", in.Chart)
		}
	}
	if in.Grid != "" {
		if _, ok := in.Bundle.Grid(in.Grid); !ok {
			return Record{}, fmt.Errorf("export: grid %s not in bundle", in.Grid)
		}
	}

	now := time.Now().UTC()
	rec := Record{
		ID:          uuid.NewString(),
		Dashboard:   in.Bundle.Dashboard,
		Formats:     uniq,
		Chart:       in.Chart,
		Grid:        in.Grid,
		Status:      StatusQueued,
		RequestedBy: in.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	in.Formats = uniq

	w.mu.Lock()
	w.jobs[rec.ID] = &rec
	snapshot := rec.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: rec.ID, input: in}:
	default:
		w.mu.Lock()
		delete(w.jobs, rec.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.logger.Info("export queued", zap.String("id", rec.ID), zap.String("dashboard", rec.Dashboard), zap.Any("formats", uniq))
	return snapshot, nil
}

// Get returns a snapshot of the record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rec, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return rec.copy(), true
}

// Run renders in synchronously; used by one-shot commands.
func (w *Worker) Run(ctx context.Context, in Input) (Record, error) {
	rec, err := w.Enqueue(ctx, in)
	if err != nil {
		return Record{}, err
	}
	w.runMu.Lock()
	running := w.running
	w.runMu.Unlock()
	if !running {
		// no loop is draining the queue; do it inline up to our task
		for t := range w.queue {
			w.process(ctx, t)
			if t.id == rec.ID {
				break
			}
		}
	} else {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			if r, _ := w.Get(rec.ID); r.Status == StatusSucceeded || r.Status == StatusFailed {
				break
			}
			select {
			case <-ctx.Done():
				return Record{}, ctx.Err()
			case <-ticker.C:
			}
		}
	}
	final, _ := w.Get(rec.ID)
	if final.Status == StatusFailed {
		return final, errors.New(final.Error)
	}
	return final, nil
}

func (w *Worker) process(ctx context.Context, t task) {
	w.setStatus(t.id, StatusRunning, "")
	artifacts := make([]Artifact, 0, len(t.input.Formats))
	for _, format := range t.input.Formats {
		r, err := render(format, t.input)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		art := Artifact{
			ID:          uuid.NewString(),
			Format:      format,
			ContentType: r.contentType,
			SizeBytes:   int64(len(r.payload)),
			Metadata:    r.metadata,
			CreatedAt:   time.Now().UTC(),
		}
		if w.store != nil {
			art.Key = path.Join(w.prefix, t.input.Bundle.Dashboard, t.id, art.ID+"."+string(format))
			meta := blobMetadata(r.metadata, t.input.Bundle.Dashboard, t.id)
			info, err := blob.PutBytes(ctx, w.store, art.Key, r.contentType, r.payload, meta)
			if err != nil {
				w.fail(t.id, fmt.Sprintf("store artifact failed: %v", err))
				return
			}
			art.URL = info.URL
			if art.URL == "" {
				if u, err := w.store.PresignURL(ctx, art.Key, blob.SignedURLOptions{}); err == nil {
					art.URL = u
				}
			}
		}
		artifacts = append(artifacts, art)
	}
	w.complete(t.id, artifacts)
}

func blobMetadata(base map[string]string, dashboard, record string) map[string]string {
	out := make(map[string]string, len(base)+2)
	for k, v := range base {
		out[k] = v
	}
	out["dashboard"] = dashboard
	out["export"] = record
	return out
}

func (w *Worker) setStatus(id string, status Status, message string) {
	w.mu.Lock()
	if rec, ok := w.jobs[id]; ok {
		rec.Status = status
		rec.Error = message
		rec.UpdatedAt = time.Now().UTC()
	}
	w.mu.Unlock()
	w.logger.Debug("export status", zap.String("id", id), zap.String("status", string(status)))
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if rec, ok := w.jobs[id]; ok {
		rec.Status = StatusSucceeded
		rec.Error = ""
		rec.Artifacts = artifacts
		rec.UpdatedAt = now
		rec.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Info("export succeeded", zap.String("id", id), zap.Int("artifacts", len(artifacts)))
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if rec, ok := w.jobs[id]; ok {
		rec.Status = StatusFailed
		rec.Error = reason
		rec.UpdatedAt = now
		rec.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn("export failed", zap.String("id", id), zap.String("error", reason))
}
