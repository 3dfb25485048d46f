package keyword

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultLanes is the number of chapters scanned concurrently.
const DefaultLanes = 8

// lanePool runs a fixed number of lanes over a job list. Each lane claims the
// next job from a shared cursor, so jobs start in list order; claiming stops
// as soon as ctx is done.
type lanePool[Job any] struct {
	lanes  int
	jobs   []Job
	cursor atomic.Int64
	wg     sync.WaitGroup
}

// newLanePool creates a pool. If lanes is 0 or negative it defaults to
// DefaultLanes; it never exceeds the number of jobs.
func newLanePool[Job any](lanes int, jobs []Job) *lanePool[Job] {
	if lanes <= 0 {
		lanes = DefaultLanes
	}
	if len(jobs) > 0 {
		lanes = min(lanes, len(jobs))
	}
	return &lanePool[Job]{lanes: lanes, jobs: jobs}
}

// claim returns the next unclaimed job.
func (p *lanePool[Job]) claim(ctx context.Context) (Job, bool) {
	var zero Job
	if ctx.Err() != nil {
		return zero, false
	}
	i := p.cursor.Add(1) - 1
	if i >= int64(len(p.jobs)) {
		return zero, false
	}
	return p.jobs[i], true
}

// Run starts the lanes and blocks until every lane has stopped.
func (p *lanePool[Job]) Run(ctx context.Context, fn func(context.Context, Job)) {
	for i := 0; i < p.lanes; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				job, ok := p.claim(ctx)
				if !ok {
					return
				}
				fn(ctx, job)
			}
		}()
	}
	p.wg.Wait()
}
