package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dashcore/pkg/filter"
)

func TestDispatchRequiresStart(t *testing.T) {
	e := newEngine(t, abcConfig(t))
	if _, err := e.Dispatch(context.Background(), filter.ResetRequested{}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestDispatchSerialisesConcurrentEvents(t *testing.T) {
	e := newEngine(t, abcConfig(t), WithQueueSize(4))
	e.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := e.Stop(ctx); err != nil {
			t.Fatalf("stop: %v", err)
		}
	}()

	const workers = 8
	const perWorker = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				b, err := e.Dispatch(context.Background(), filter.ToggleActivated{ControlID: "toggle-c"})
				if err != nil {
					errs <- err
					return
				}
				// every bundle is internally consistent with its own state
				active := b.State.Toggles["toggle-c"]
				if b.Toggles[0].Controls[2].Active != active {
					errs <- errors.New("toggle style disagrees with bundle state")
					return
				}
				chart, _ := b.Chart("trend")
				if active && (len(chart.Series) != 1 || chart.Series[0].Name != "C") {
					errs <- errors.New("chart disagrees with bundle state")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("dispatch: %v", err)
	}
	// 40 activations: even parity
	if e.State().Active("toggle-c") {
		t.Fatalf("expected toggle off after an even number of activations")
	}
	if got := e.LastCycle().Cycle; got != workers*perWorker {
		t.Fatalf("expected %d cycles, got %d", workers*perWorker, got)
	}
	if e.Phase() != Idle {
		t.Fatalf("engine should be idle, got %s", e.Phase())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	e := newEngine(t, abcConfig(t))
	e.Start()
	e.Start()
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if _, err := e.Dispatch(context.Background(), filter.ResetRequested{}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestDispatchCancelledContext(t *testing.T) {
	e := newEngine(t, abcConfig(t))
	e.Start()
	defer func() { _ = e.Stop(context.Background()) }()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Dispatch(ctx, filter.ResetRequested{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAbandonedTaskNeverRuns(t *testing.T) {
	e := newEngine(t, abcConfig(t))
	// a Dispatch that gave up while its task sat in the queue
	stale := &task{ctx: context.Background(), event: filter.ToggleActivated{ControlID: "toggle-a"}, reply: make(chan result, 1)}
	e.queue <- stale
	if _, err := e.abandon(stale, ErrNotRunning); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}

	e.Start()
	b, err := e.Dispatch(context.Background(), filter.ToggleActivated{ControlID: "toggle-a"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !e.State().Active("toggle-a") || !b.State.Toggles["toggle-a"] {
		t.Fatalf("toggle must be applied exactly once")
	}
	if got := e.LastCycle().Cycle; got != 1 {
		t.Fatalf("expected 1 cycle, got %d", got)
	}
	if len(stale.reply) != 0 {
		t.Fatalf("abandoned task must not be answered")
	}
}

func TestAbandonWaitsForTakenTask(t *testing.T) {
	e := newEngine(t, abcConfig(t))
	taken := &task{ctx: context.Background(), event: filter.ResetRequested{}, reply: make(chan result, 1)}
	taken.state.Store(taskTaken)
	want := e.Bundle()
	want.Cycle = 7
	taken.reply <- result{bundle: want}
	b, err := e.abandon(taken, ErrNotRunning)
	if err != nil {
		t.Fatalf("a task the loop already took must report its own result, got %v", err)
	}
	if b.Cycle != 7 {
		t.Fatalf("expected the task's bundle, got cycle %d", b.Cycle)
	}
}
