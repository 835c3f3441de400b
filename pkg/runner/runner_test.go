package runner

import (
	"context"
	"testing"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	golog "github.com/tochemey/goakt/v3/log"
)

func testConfig(steps int) *simulation.Config {
	cfg := simulation.DefaultConfig()
	cfg.WorldSize = 512
	cfg.AgentCount = 30
	cfg.Steps = steps
	cfg.Releases = []simulation.Release{{
		Tick:    steps / 2,
		Offsets: []geometry.Vector2D{{X: -16, Y: 0}, {X: 16, Y: 0}},
	}}
	return cfg
}

func startRunner(t *testing.T, cfg *simulation.Config) *Runner {
	t.Helper()
	sim, err := simulation.New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	r, err := Start(ctx, sim, golog.DiscardLogger)
	require.NoError(t, err)
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.NoError(t, r.Stop(stopCtx))
	})
	return r
}

func TestRunner_RunToCompletion(t *testing.T) {
	cfg := testConfig(80)
	r := startRunner(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, r.RunAsync(ctx))
	require.NoError(t, r.Wait(ctx))

	assert.Equal(t, 1.0, r.Progress())
	assert.Equal(t, simulation.StateFinished, r.Simulation().State())
	assert.Equal(t, cfg.Steps, r.Simulation().Frames().Len())
	select {
	case <-r.Done():
	default:
		t.Fatal("Done should be closed after a completed run")
	}
}

func TestRunner_MatchesDirectRun(t *testing.T) {
	cfg := testConfig(60)
	r := startRunner(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, r.RunAsync(ctx))
	require.NoError(t, r.Wait(ctx))

	direct, err := simulation.New(testConfig(60))
	require.NoError(t, err)
	require.NoError(t, direct.Run(context.Background()))

	assert.Equal(t, direct.Frames().Digest(), r.Simulation().Frames().Digest())
}

func TestRunner_Advance(t *testing.T) {
	cfg := testConfig(20)
	r := startRunner(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	progress, err := r.Advance(ctx, 5)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/20.0, progress, 1e-12)
	assert.Equal(t, 5, r.Simulation().Frames().Len())
	assert.Equal(t, simulation.StateIdle, r.Simulation().State())

	// asking for more than what is left stops at the last tick
	progress, err = r.Advance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1.0, progress)
	require.NoError(t, r.Wait(ctx))
	assert.Equal(t, simulation.StateFinished, r.Simulation().State())
}

func TestRunner_StopCancelsAtTickBoundary(t *testing.T) {
	cfg := testConfig(200000)
	cfg.AgentCount = 10
	r := startRunner(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, r.RunAsync(ctx))

	require.Eventually(t, func() bool { return r.Progress() > 0 }, 10*time.Second, time.Millisecond)
	require.NoError(t, r.Stop(ctx))

	assert.ErrorIs(t, r.Err(), context.Canceled)
	n := r.Simulation().Frames().Len()
	assert.Less(t, n, cfg.Steps)
	for i := range n {
		f, err := r.Simulation().Frames().Get(i)
		require.NoError(t, err)
		require.Equal(t, i, f.Step)
	}
}
