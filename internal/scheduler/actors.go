package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/omega-scheduler/omega-sim/internal/cellstate"
)

// RunActors realizes the "true parallel execution" model: one goroutine
// per scheduler, each draining its own job channel and calling
// AttemptSchedule against the single mutex-guarded CellState. This is an
// alternative to the simulator's single-threaded cooperative virtual-time
// execution (internal/simulate.Simulator) — both are permitted realizations
// of the same scheduling model, and CellState's locking makes either safe.
//
// Each queue is closed by the caller once no more jobs will arrive for that
// scheduler; RunActors returns once every queue has drained and every actor
// has exited, or the context is canceled.
func RunActors(ctx context.Context, cell *cellstate.CellState, queues map[Scheduler]<-chan *cellstate.Job, maxRetries int) error {
	g, ctx := errgroup.WithContext(ctx)

	for sch, queue := range queues {
		sch, queue := sch, queue
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case job, ok := <-queue:
					if !ok {
						return nil
					}
					AttemptSchedule(sch, cell, job, maxRetries, !job.GangSchedule, nil)
				}
			}
		})
	}

	return g.Wait()
}
