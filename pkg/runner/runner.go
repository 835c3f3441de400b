// Package runner drives a simulation from a goakt actor, keeping the stepping
// off the caller's goroutine while progress and frames stay readable.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const defaultAskTimeout = time.Minute

// Runner hosts the Driver actor of one simulation.
type Runner struct {
	system actor.ActorSystem
	pid    *actor.PID
	sim    *simulation.Simulation
	logger golog.Logger

	cancel  context.CancelFunc
	started atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
	mu       sync.Mutex
	err      error

	stopOnce sync.Once
	stopErr  error
}

// Start boots an actor system and spawns the driver of sim. Nothing is
// simulated until RunAsync or Advance is called.
func Start(ctx context.Context, sim *simulation.Simulation, logger golog.Logger) (*Runner, error) {
	if logger == nil {
		logger = golog.DiscardLogger
	}
	system, err := actor.NewActorSystem("FlockSimulation",
		actor.WithLogger(logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		return nil, fmt.Errorf("failed to create actor system: %w", err)
	}
	if err := system.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start actor system: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		system: system,
		sim:    sim,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	pid, err := system.Spawn(ctx, "driver-"+sim.RunID().String(), newDriver(runCtx, sim, r.finish))
	if err != nil {
		cancel()
		_ = system.Stop(ctx)
		return nil, fmt.Errorf("failed to spawn driver: %w", err)
	}
	r.pid = pid
	return r, nil
}

func (r *Runner) finish(err error) {
	r.doneOnce.Do(func() {
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		close(r.done)
	})
}

// Simulation returns the driven simulation.
func (r *Runner) Simulation() *simulation.Simulation {
	return r.sim
}

// RunAsync asks the driver to run every remaining tick and returns at once.
// Use Done or Wait to learn when the run is over.
func (r *Runner) RunAsync(ctx context.Context) error {
	r.started.Store(true)
	if err := actor.Tell(ctx, r.pid, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// Advance asks the driver for n more ticks and returns the progress reached.
// It must not be used while a RunAsync run is in flight.
func (r *Runner) Advance(ctx context.Context, n uint32) (float64, error) {
	timeout := defaultAskTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	resp, err := actor.Ask(ctx, r.pid, wrapperspb.UInt32(n), timeout)
	if err != nil {
		return r.sim.Progress(), fmt.Errorf("failed to advance %d ticks: %w", n, err)
	}
	progress, ok := resp.(*wrapperspb.DoubleValue)
	if !ok {
		return r.sim.Progress(), fmt.Errorf("unexpected driver reply %T", resp)
	}
	return progress.GetValue(), nil
}

// Progress reads the simulation progress without going through the actor.
func (r *Runner) Progress() float64 {
	return r.sim.Progress()
}

// Done is closed once the run has finished, failed or been stopped.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Err returns the error the run ended with, if any.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Wait blocks until the run is over or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels a run in flight at its next tick boundary, waits for the
// driver to let go of the simulation and shuts the actor system down.
// Only the first call does anything.
func (r *Runner) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.stopErr = r.stop(ctx)
	})
	return r.stopErr
}

func (r *Runner) stop(ctx context.Context) error {
	r.cancel()
	r.sim.Cancel()
	if r.started.Load() {
		select {
		case <-r.done:
		case <-ctx.Done():
			r.logger.Warnf("run %s: driver still busy at shutdown", r.sim.RunID())
		}
	}
	// no-op when the run already settled
	r.finish(context.Canceled)
	if err := r.system.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop actor system: %w", err)
	}
	return nil
}
