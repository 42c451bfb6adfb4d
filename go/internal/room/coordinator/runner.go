package coordinator

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned for work submitted after the runner exited.
var ErrStopped = errors.New("coordinator runner stopped")

const inboxBufferSize = 256

// Runner owns the coordinator goroutine. Every mutation, whether from a
// client message, the control API or the tick, runs serially on it.
type Runner struct {
	coord      *Coordinator
	clock      clockwork.Clock
	inbox      chan func(*Coordinator)
	done       chan struct{}
	instanceID string
}

// NewRunner wraps coord. In production, use clockwork.NewRealClock(). In tests, a FakeClock.
func NewRunner(coord *Coordinator, clock clockwork.Clock) *Runner {
	return &Runner{
		coord:      coord,
		clock:      clock,
		inbox:      make(chan func(*Coordinator), inboxBufferSize),
		done:       make(chan struct{}),
		instanceID: uuid.New().String()[:8],
	}
}

// Run ticks the coordinator and applies submitted work until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.coord.cfg.tickDuration()
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	defer close(r.done)
	defer r.coord.Close()

	log.Info().
		Str("instance", r.instanceID).
		Dur("tick_interval", interval).
		Msg("coordinator runner started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", r.instanceID).Msg("coordinator runner shutdown requested")
			return nil
		case fn := <-r.inbox:
			fn(r.coord)
		case <-ticker.Chan():
			r.coord.Tick()
		}
	}
}

// Submit queues fn for the runner goroutine without waiting for it to run.
func (r *Runner) Submit(ctx context.Context, fn func(*Coordinator)) error {
	select {
	case r.inbox <- fn:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the runner goroutine and waits for its result.
func (r *Runner) Do(ctx context.Context, fn func(*Coordinator) error) error {
	result := make(chan error, 1)
	if err := r.Submit(ctx, func(c *Coordinator) { result <- fn(c) }); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
