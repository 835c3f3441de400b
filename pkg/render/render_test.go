package render

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sameColor(t *testing.T, want, got color.Color) bool {
	t.Helper()
	wr, wg, wb, wa := want.RGBA()
	gr, gg, gb, ga := got.RGBA()
	return wr == gr && wg == gg && wb == gb && wa == ga
}

func TestRasterizer_Render(t *testing.T) {
	style := DefaultStyle()
	r := NewRasterizer(200, 200, style)

	f := simulation.Frame{
		Step:      3,
		Agents:    []simulation.Pose{{Position: geometry.NewVector(100, 100), Angle: 0}},
		Predators: []simulation.Pose{{Position: geometry.NewVector(150, 150), Angle: 1}},
		Obstacles: []simulation.Obstacle{{Position: geometry.NewVector(50, 150), Radius: 20}},
	}
	img := r.Render(f)

	require.Equal(t, 200, img.Bounds().Dx())
	assert.True(t, sameColor(t, style.Background, img.At(190, 190)), "corner should stay background")
	assert.True(t, sameColor(t, style.Obstacle, img.At(50, 150)), "obstacle center should be filled")
	// just ahead of the agent position, inside its triangle
	assert.True(t, sameColor(t, style.Agent, img.At(101, 100)), "agent glyph missing: %v", img.At(101, 100))
	assert.True(t, sameColor(t, style.Predator, img.At(150, 150)), "predator glyph missing: %v", img.At(150, 150))
}

func TestRasterizer_OutOfWorldEntities(t *testing.T) {
	r := NewRasterizer(100, 50, DefaultStyle())
	f := simulation.Frame{
		Agents: []simulation.Pose{
			{Position: geometry.NewVector(-40, 20)},
			{Position: geometry.NewVector(300, 300)},
		},
	}
	assert.NotPanics(t, func() { r.Render(f) })
}

func buildStore(t *testing.T, steps int) *simulation.Simulation {
	t.Helper()
	cfg := simulation.DefaultConfig()
	cfg.WorldSize = 256
	cfg.AgentCount = 15
	cfg.Steps = steps
	cfg.Releases = nil
	sim, err := simulation.New(cfg)
	require.NoError(t, err)
	return sim
}

func TestWriter_WritePublished(t *testing.T) {
	sim := buildStore(t, 10)
	require.NoError(t, sim.Run(context.Background()))

	dir := t.TempDir()
	w := NewWriter(dir, 3, 64, sim.Config().WorldSize)

	n, err := w.WritePublished(context.Background(), sim.Frames())
	require.NoError(t, err)
	assert.Equal(t, 4, n) // steps 0, 3, 6, 9

	for _, step := range []int{0, 3, 6, 9} {
		file, err := os.Open(filepath.Join(dir, FileName(step)))
		require.NoError(t, err)
		img, err := png.Decode(file)
		file.Close()
		require.NoError(t, err)
		assert.Equal(t, 64, img.Bounds().Dx())
	}
	_, err = os.Stat(filepath.Join(dir, FileName(1)))
	assert.True(t, os.IsNotExist(err))
}

func TestWriter_FollowsRunningSimulation(t *testing.T) {
	sim := buildStore(t, 40)
	dir := t.TempDir()
	w := NewWriter(dir, 10, 32, sim.Config().WorldSize)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for sim.State() != simulation.StateFinished {
			if err := sim.Step(); err != nil {
				t.Error(err)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := w.Follow(ctx, sim.Frames(), done)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestWriter_StopsWithUnfinishedRun(t *testing.T) {
	sim := buildStore(t, 30)
	for range 5 {
		require.NoError(t, sim.Step())
	}

	done := make(chan struct{})
	close(done)
	n, err := NewWriter(t.TempDir(), 2, 16, sim.Config().WorldSize).Follow(context.Background(), sim.Frames(), done)
	require.NoError(t, err)
	assert.Equal(t, 3, n) // steps 0, 2, 4
}
