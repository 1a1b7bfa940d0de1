package gc

import (
	"context"
	"testing"
	"time"
)

func TestWorker_StartStopLifecycle(tt *testing.T) {
	tt.Parallel()

	cs := New(1, 16, 4096)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cs.StartGC(ctx, WorkerSpec{Delay: 10 * time.Millisecond}); err != nil {
		tt.Fatalf("StartGC() error = %s", err)
	}

	if err := cs.StopGC(); err != nil {
		tt.Errorf("StopGC() error = %s", err)
	}
}

func TestWorker_DoubleStartRejected(tt *testing.T) {
	tt.Parallel()

	cs := New(1, 16, 4096)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cs.StartGC(ctx, WorkerSpec{Delay: 10 * time.Millisecond}); err != nil {
		tt.Fatalf("StartGC() error = %s", err)
	}
	defer cs.StopGC()

	if err := cs.StartGC(ctx, WorkerSpec{Delay: 10 * time.Millisecond}); err == nil {
		tt.Errorf("second StartGC() error = nil, want error for already-running worker")
	}
}

func TestWorker_DoubleStopRejected(tt *testing.T) {
	tt.Parallel()

	cs := New(1, 16, 4096)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cs.StartGC(ctx, WorkerSpec{Delay: 10 * time.Millisecond}); err != nil {
		tt.Fatalf("StartGC() error = %s", err)
	}

	if err := cs.StopGC(); err != nil {
		tt.Fatalf("StopGC() error = %s", err)
	}

	if err := cs.StopGC(); err == nil {
		tt.Errorf("second StopGC() error = nil, want error for not-running worker")
	}
}

func TestWorker_RejectsNonPositiveDelay(tt *testing.T) {
	tt.Parallel()

	cs := New(1, 16, 4096)

	if err := cs.StartGC(context.Background(), WorkerSpec{Delay: 0}); err == nil {
		tt.Errorf("StartGC() with zero delay error = nil, want error")
	}
}

func TestWorker_RunsCollectionPeriodically(tt *testing.T) {
	tt.Parallel()

	cs := New(1, 16, 4096)

	garbage, err := cs.MallocObject(0, 8)
	if err != nil {
		tt.Fatalf("MallocObject() error = %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// ShiftTrigger is zero, so every tick collects as long as at least one allocation happened
	// since the previous cycle. garbage needs two cycles to go away (gcNewlyAdded survives the
	// first one unconditionally), so a second, throwaway allocation is made partway through to
	// cross the trigger again after the first cycle resets the counter.
	if err := cs.StartGC(ctx, WorkerSpec{Delay: 10 * time.Millisecond}); err != nil {
		tt.Fatalf("StartGC() error = %s", err)
	}

	time.Sleep(50 * time.Millisecond)

	if _, err := cs.MallocObject(0, 8); err != nil {
		tt.Fatalf("second MallocObject() error = %s", err)
	}

	<-ctx.Done()

	if err := cs.StopGC(); err != nil {
		tt.Errorf("StopGC() error = %s", err)
	}

	if cs.Allocated(garbage) {
		tt.Errorf("Allocated(garbage) after running for 300ms = true, want false: worker should have collected it across several cycles")
	}
}

func TestWorker_StopAfterContextCancel(tt *testing.T) {
	tt.Parallel()

	cs := New(1, 16, 4096)

	ctx, cancel := context.WithCancel(context.Background())

	if err := cs.StartGC(ctx, WorkerSpec{Delay: 10 * time.Millisecond}); err != nil {
		tt.Fatalf("StartGC() error = %s", err)
	}

	cancel()

	if err := cs.StopGC(); err != nil {
		tt.Errorf("StopGC() error = %s after context cancel", err)
	}
}
