package gc

// worker.go runs the collector in the background, on a timer, so a caller doesn't have to drive
// Collect by hand. Start and Stop are serialized against each other with a named lock from
// github.com/moby/locker rather than a bare mutex, so a StartGC racing a StopGC on the same space
// resolves the same way moby's container start/stop locking does: by name, not by a single global
// critical section that would also block unrelated calls into the space.

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const workerLockName = "worker"

// WorkerSpec configures a background collection worker.
type WorkerSpec struct {
	// Delay is how long the worker waits between ticks.
	Delay time.Duration

	// Shift requests a full compaction pass after every collection cycle.
	Shift bool

	// ShiftTrigger is how many allocations must accumulate since the last collection before a
	// tick actually runs one. A tick that finds the count at or below ShiftTrigger is a no-op.
	ShiftTrigger uint64
}

type gcWorker struct {
	cancel context.CancelFunc
	group  *errgroup.Group
}

// StartGC launches a background goroutine that ticks every spec.Delay until ctx is cancelled or
// StopGC is called; a tick runs Collect only when more than spec.ShiftTrigger allocations have
// been made since the last collection. It returns an error if a worker is already running.
func (cs *CollectedSpace) StartGC(ctx context.Context, spec WorkerSpec) error {
	cs.locks.Lock(workerLockName)
	defer cs.locks.Unlock(workerLockName)

	if cs.worker != nil {
		return fmt.Errorf("gc: worker already running")
	}

	if spec.Delay <= 0 {
		return fmt.Errorf("gc: worker delay must be positive, got %s", spec.Delay)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	group, workerCtx := errgroup.WithContext(workerCtx)

	group.Go(func() error {
		ticker := time.NewTicker(spec.Delay)
		defer ticker.Stop()

		for {
			select {
			case <-workerCtx.Done():
				return nil
			case <-ticker.C:
				if cs.AllocationsSinceCollect() <= spec.ShiftTrigger {
					continue
				}

				cs.log.Debug("running collection cycle")
				cs.Collect()

				if spec.Shift {
					cs.TryFullShift()
				}
			}
		}
	})

	cs.worker = &gcWorker{cancel: cancel, group: group}

	return nil
}

// StopGC cancels the running background worker and waits for it to exit. It returns an error if
// no worker is running.
func (cs *CollectedSpace) StopGC() error {
	cs.locks.Lock(workerLockName)
	defer cs.locks.Unlock(workerLockName)

	if cs.worker == nil {
		return fmt.Errorf("gc: worker not running")
	}

	worker := cs.worker
	cs.worker = nil

	worker.cancel()

	return worker.group.Wait()
}
