package pool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestPool(t *testing.T, capacity int) *Pool {
	t.Helper()
	p := New(capacity, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { p.Shutdown(2 * time.Second) })
	return p
}

func TestRunsSubmittedTasks(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 2)

	var done atomic.Int32
	var handles []*Handle
	for i := 0; i < 8; i++ {
		h, err := p.Submit(Task{ID: "t", Run: func(ctx context.Context) { done.Add(1) }})
		if err != nil {
			t.Fatalf("Submit error: %v", err)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("task never finished")
		}
	}
	if done.Load() != 8 {
		t.Fatalf("ran %d tasks, want 8", done.Load())
	}
}

func TestCapacityIsRespected(t *testing.T) {
	t.Parallel()
	const capacity = 3
	p := newTestPool(t, capacity)

	var cur, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		if _, err := p.Submit(Task{Run: func(ctx context.Context) {
			defer wg.Done()
			n := cur.Add(1)
			for {
				pk := peak.Load()
				if n <= pk || peak.CompareAndSwap(pk, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			cur.Add(-1)
		}}); err != nil {
			t.Fatalf("Submit error: %v", err)
		}
	}
	wg.Wait()
	if pk := peak.Load(); pk > capacity {
		t.Fatalf("peak concurrency %d exceeds capacity %d", pk, capacity)
	}
}

func TestCancelPendingWithdraws(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	if _, err := p.Submit(Task{ID: "hog", Run: func(ctx context.Context) {
		started <- struct{}{}
		<-release
	}}); err != nil {
		t.Fatalf("Submit hog error: %v", err)
	}
	<-started

	var ran atomic.Bool
	h, err := p.Submit(Task{ID: "victim", Run: func(ctx context.Context) { ran.Store(true) }})
	if err != nil {
		t.Fatalf("Submit victim error: %v", err)
	}

	if !h.Cancel(false) {
		t.Fatal("Cancel of pending task = false, want true")
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after pending cancel")
	}
	if st := p.Stats(); st.Waiting != 0 {
		t.Fatalf("waiting = %d after withdrawal, want 0", st.Waiting)
	}

	close(release)
	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Fatal("withdrawn task ran")
	}
	if h.Cancel(false) {
		t.Fatal("second Cancel = true, want false")
	}
}

func TestCancelRunningNeedsInterrupt(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)

	started := make(chan struct{}, 1)
	sawCancel := make(chan struct{})
	h, err := p.Submit(Task{Run: func(ctx context.Context) {
		started <- struct{}{}
		<-ctx.Done()
		close(sawCancel)
	}})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	<-started

	if h.Cancel(false) {
		t.Fatal("Cancel(false) on running task = true, want false")
	}
	if !h.Cancel(true) {
		t.Fatal("Cancel(true) on running task = false, want true")
	}
	select {
	case <-sawCancel:
	case <-time.After(5 * time.Second):
		t.Fatal("task never observed interrupt")
	}
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed after interrupted task returned")
	}
	if h.Cancel(true) {
		t.Fatal("Cancel after completion = true, want false")
	}
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)

	h, err := p.Submit(Task{ID: "bomb", Run: func(ctx context.Context) { panic("bang") }})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	<-h.Done()

	ran := make(chan struct{})
	if _, err := p.Submit(Task{Run: func(ctx context.Context) { close(ran) }}); err != nil {
		t.Fatalf("Submit after panic error: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("worker dead after panic")
	}
}

func TestShutdownDrains(t *testing.T) {
	t.Parallel()
	p := New(2, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var done atomic.Int32
	for i := 0; i < 10; i++ {
		if _, err := p.Submit(Task{Run: func(ctx context.Context) { done.Add(1) }}); err != nil {
			t.Fatalf("Submit error: %v", err)
		}
	}
	p.Shutdown(5 * time.Second)
	if done.Load() != 10 {
		t.Fatalf("drained %d of 10 tasks", done.Load())
	}
	if _, err := p.Submit(Task{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after shutdown = %v, want ErrClosed", err)
	}
}

func TestShutdownTimeoutWithdrawsPending(t *testing.T) {
	t.Parallel()
	p := New(1, slog.New(slog.NewTextHandler(io.Discard, nil)))

	started := make(chan struct{}, 1)
	if _, err := p.Submit(Task{ID: "slow", Run: func(ctx context.Context) {
		started <- struct{}{}
		<-ctx.Done()
	}}); err != nil {
		t.Fatalf("Submit slow error: %v", err)
	}
	<-started

	var ran atomic.Bool
	h, err := p.Submit(Task{ID: "behind", Run: func(ctx context.Context) { ran.Store(true) }})
	if err != nil {
		t.Fatalf("Submit behind error: %v", err)
	}

	p.Shutdown(50 * time.Millisecond)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pending handle not resolved by shutdown")
	}
	if ran.Load() {
		t.Fatal("pending task ran after drain timeout")
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	if _, err := p.Submit(Task{Run: func(ctx context.Context) {
		started <- struct{}{}
		<-release
	}}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	<-started
	if _, err := p.Submit(Task{Run: func(ctx context.Context) {}}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	st := p.Stats()
	if st.Capacity != 1 || st.Running != 1 || st.Waiting != 1 {
		t.Fatalf("stats = %+v, want capacity 1 running 1 waiting 1", st)
	}
	close(release)
}
