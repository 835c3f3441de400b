package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/runner"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/ui"
	golog "github.com/tochemey/goakt/v3/log"
)

const (
	viewSize   = 800
	panelWidth = 260
)

var (
	whiteImage = ebiten.NewImage(3, 3)

	agentColor    = color.RGBA{R: 120, G: 170, B: 255, A: 255}
	predatorColor = color.RGBA{R: 255, G: 80, B: 80, A: 255}
	obstacleColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

func init() {
	whiteImage.Fill(color.White)
}

// Game plays the frames of a simulation while it is still being computed.
type Game struct {
	runner *runner.Runner
	frames *simulation.FrameStore
	cfg    *simulation.Config
	scale  float64

	cursor   float64 // fractional frame index, advanced by the speed slider
	playing  bool
	vertices []ebiten.Vertex
	indices  []uint32

	panel         *ui.UIPanel
	playButton    *ui.Button
	frameSlider   *ui.Slider
	speedSlider   *ui.Slider
	loopBox       *ui.Checkbox
	obstaclesBox  *ui.Checkbox
	lastFrameDraw time.Duration
}

func NewGame(r *runner.Runner) *Game {
	sim := r.Simulation()
	g := &Game{
		runner:  r,
		frames:  sim.Frames(),
		cfg:     sim.Config(),
		scale:   viewSize / sim.Config().WorldSize,
		playing: true,
	}

	g.panel = ui.NewUIPanel("Flock player", viewSize+10, 10, panelWidth-20, viewSize-20)

	g.panel.AddSection("Playback")
	g.playButton = g.panel.AddButton("Pause", g.togglePlay)
	g.frameSlider = g.panel.AddSlider("Frame", 0, 0, 0)
	g.frameSlider.Step = 1
	g.frameSlider.OnChange = func(v float64) {
		g.cursor = v
	}
	g.speedSlider = g.panel.AddSlider("Frames per tick", 0.25, 20, 1)
	g.panel.EndSection()

	g.panel.AddSection("Display")
	g.loopBox = g.panel.AddCheckbox("Loop at the end", false)
	g.obstaclesBox = g.panel.AddCheckbox("Show obstacles", true)
	g.panel.EndSection()

	return g
}

func (g *Game) togglePlay() {
	g.playing = !g.playing
	if g.playing {
		g.playButton.Label = "Pause"
		return
	}
	g.playButton.Label = "Play"
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.togglePlay()
	}
	g.panel.Update()

	published := g.frames.Len()
	if published == 0 {
		return nil
	}
	last := float64(published - 1)
	g.frameSlider.SetRange(0, last)

	if g.playing {
		g.cursor += g.speedSlider.Value
		if g.cursor > last {
			switch {
			case g.frames.Completed() && g.loopBox.Value:
				g.cursor = 0
			default:
				// wait for the simulation to catch up
				g.cursor = last
			}
		}
	}
	g.cursor = math.Max(0, math.Min(g.cursor, last))
	g.frameSlider.Value = math.Floor(g.cursor)
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	screen.Fill(color.RGBA{R: 10, G: 10, B: 30, A: 255})

	if f, err := g.frames.Get(int(g.cursor)); err == nil {
		g.drawFrame(screen, f)
		g.drawStatus(screen, f)
	} else {
		ebitenutil.DebugPrintAt(screen, "waiting for the first frame...", 10, 10)
	}

	g.panel.Draw(screen)
	g.lastFrameDraw = time.Since(start)
}

func (g *Game) drawFrame(screen *ebiten.Image, f simulation.Frame) {
	if g.obstaclesBox.Value {
		for _, o := range f.Obstacles {
			vector.FillCircle(screen,
				float32(o.Position.X*g.scale), float32(o.Position.Y*g.scale),
				float32(o.Radius*g.scale), obstacleColor, true)
		}
	}

	// one batched draw call for every glyph of the frame
	g.vertices = g.vertices[:0]
	g.indices = g.indices[:0]
	for _, p := range f.Agents {
		g.appendBoid(p, 6, agentColor)
	}
	for _, p := range f.Predators {
		g.appendBoid(p, 9, predatorColor)
	}
	if len(g.vertices) > 0 {
		screen.DrawTriangles32(g.vertices, g.indices, whiteImage, &ebiten.DrawTrianglesOptions{})
	}
}

func (g *Game) appendBoid(p simulation.Pose, size float64, c color.RGBA) {
	g.vertices, g.indices = appendArrow(g.vertices, g.indices,
		p.Position.X*g.scale, p.Position.Y*g.scale, p.Angle, size, c)
}

// appendArrow adds the arrow of a glyph centered on (x, y): tip ahead, two
// corners swept back. Indices are 32 bits wide so large flocks fit in one batch.
func appendArrow(vertices []ebiten.Vertex, indices []uint32, x, y, angle, size float64, c color.RGBA) ([]ebiten.Vertex, []uint32) {
	back := size * 5 / 6

	tipX := x + math.Cos(angle)*size
	tipY := y + math.Sin(angle)*size
	rightX := x + math.Cos(angle+2.5)*back
	rightY := y + math.Sin(angle+2.5)*back
	leftX := x + math.Cos(angle-2.5)*back
	leftY := y + math.Sin(angle-2.5)*back

	r, g, b, a := float32(c.R)/255, float32(c.G)/255, float32(c.B)/255, float32(c.A)/255
	base := uint32(len(vertices))
	for _, v := range [3][2]float64{{tipX, tipY}, {rightX, rightY}, {leftX, leftY}} {
		vertices = append(vertices, ebiten.Vertex{
			DstX: float32(v[0]), DstY: float32(v[1]),
			SrcX: 1, SrcY: 1,
			ColorR: r, ColorG: g, ColorB: b, ColorA: a,
		})
	}
	return vertices, append(indices, base, base+1, base+2)
}

func (g *Game) drawStatus(screen *ebiten.Image, f simulation.Frame) {
	state := "running"
	if g.frames.Completed() {
		state = "done"
	}
	msg := fmt.Sprintf("step %d/%d  agents %d  predators %d\nsimulation %s %.1f%%  draw %.2fms  TPS %.0f",
		f.Step, g.cfg.Steps, len(f.Agents), len(f.Predators),
		state, g.runner.Progress()*100,
		float64(g.lastFrameDraw.Microseconds())/1000, ebiten.ActualTPS())
	ebitenutil.DebugPrintAt(screen, msg, 10, 10)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return viewSize + panelWidth, viewSize
}

func main() {
	configFile := flag.String("config", "", "JSON, YAML or TOML configuration file (defaults when empty)")
	verbose := flag.Bool("v", false, "log simulation events")
	flag.Parse()

	logger := golog.DiscardLogger
	if *verbose {
		logger = golog.New(golog.InfoLevel, os.Stderr)
	}

	cfg := simulation.DefaultConfig()
	if *configFile != "" {
		loaded, err := simulation.LoadConfig(*configFile)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	ctx := context.Background()
	sim, err := simulation.New(cfg, simulation.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	r, err := runner.Start(ctx, sim, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Stop(stopCtx)
	}()
	if err := r.RunAsync(ctx); err != nil {
		log.Fatal(err)
	}

	ebiten.SetWindowSize(viewSize+panelWidth, viewSize)
	ebiten.SetWindowTitle("Flock: agents, predators and obstacles")
	if err := ebiten.RunGame(NewGame(r)); err != nil {
		log.Fatal(err)
	}
}
