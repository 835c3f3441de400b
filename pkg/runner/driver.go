package runner

import (
	"context"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Driver is the actor that owns the stepping of one simulation, so the whole
// run happens on the actor system's worker instead of the caller's goroutine.
//
// Messages:
//   - *emptypb.Empty: run to completion (or until the runner is stopped)
//   - *wrapperspb.UInt32Value: advance that many ticks, reply with the
//     progress as a *wrapperspb.DoubleValue
type Driver struct {
	sim    *simulation.Simulation
	ctx    context.Context
	finish func(error)
}

// Enforce interface compliance
var _ actor.Actor = (*Driver)(nil)

func newDriver(ctx context.Context, sim *simulation.Simulation, finish func(error)) *Driver {
	return &Driver{sim: sim, ctx: ctx, finish: finish}
}

func (d *Driver) PreStart(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("driver %s ready for run %s", ctx.ActorName(), d.sim.RunID())
	return nil
}

func (d *Driver) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Debugf("%s started", ctx.Self().Name())

	case *emptypb.Empty:
		err := d.sim.Run(d.ctx)
		if err != nil {
			ctx.Logger().Warnf("run %s stopped: %v", d.sim.RunID(), err)
		}
		d.settle(err)

	case *wrapperspb.UInt32Value:
		var err error
		for range msg.GetValue() {
			if d.sim.State() == simulation.StateFinished {
				break
			}
			if err = d.ctx.Err(); err != nil {
				break
			}
			if err = d.sim.Step(); err != nil {
				break
			}
		}
		if err != nil {
			ctx.Logger().Warnf("run %s stopped: %v", d.sim.RunID(), err)
			d.settle(err)
		} else if d.sim.State() == simulation.StateFinished {
			d.settle(nil)
		}
		ctx.Response(wrapperspb.Double(d.sim.Progress()))

	default:
		ctx.Unhandled()
	}
}

// settle reports the end of the run once the simulation finished or failed.
// A run stopped by cancellation also ends here.
func (d *Driver) settle(err error) {
	if err != nil || d.sim.State() == simulation.StateFinished {
		d.finish(err)
	}
}

func (d *Driver) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("driver %s stopped", ctx.ActorName())
	return nil
}
