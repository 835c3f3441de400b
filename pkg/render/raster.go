// Package render turns simulation frames into images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Style sets the colors and glyph sizes, in pixels, of a rendered frame.
type Style struct {
	Background color.Color
	Agent      color.Color
	Predator   color.Color
	Obstacle   color.Color
	Label      color.Color

	AgentSize    float64
	PredatorSize float64
}

// DefaultStyle draws blue agents, red predators and black obstacles on white.
func DefaultStyle() Style {
	return Style{
		Background:   color.White,
		Agent:        color.RGBA{R: 30, G: 60, B: 220, A: 255},
		Predator:     color.RGBA{R: 220, G: 30, B: 30, A: 255},
		Obstacle:     color.Black,
		Label:        color.Black,
		AgentSize:    6,
		PredatorSize: 9,
	}
}

const circleSegments = 32

// Rasterizer draws frames of a square world into square images.
// It reuses its buffers and is not safe for concurrent use.
type Rasterizer struct {
	size  int
	scale float32 // pixels per world unit
	style Style
	z     *vector.Rasterizer
}

// NewRasterizer maps a world of edge worldSize onto images of size × size pixels.
func NewRasterizer(worldSize float64, size int, style Style) *Rasterizer {
	return &Rasterizer{
		size:  size,
		scale: float32(float64(size) / worldSize),
		style: style,
		z:     vector.NewRasterizer(size, size),
	}
}

// Render draws f on a fresh image.
func (r *Rasterizer) Render(f simulation.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.size, r.size))
	r.RenderInto(img, f)
	return img
}

// RenderInto draws f on img, which must be size × size pixels.
func (r *Rasterizer) RenderInto(img *image.RGBA, f simulation.Frame) {
	draw.Draw(img, img.Bounds(), image.NewUniform(r.style.Background), image.Point{}, draw.Src)

	// one path per color, drawn in a single pass
	if len(f.Obstacles) > 0 {
		r.z.Reset(r.size, r.size)
		for _, o := range f.Obstacles {
			r.circle(o)
		}
		r.fill(img, r.style.Obstacle)
	}
	if len(f.Agents) > 0 {
		r.z.Reset(r.size, r.size)
		for _, p := range f.Agents {
			r.triangle(p, r.style.AgentSize)
		}
		r.fill(img, r.style.Agent)
	}
	if len(f.Predators) > 0 {
		r.z.Reset(r.size, r.size)
		for _, p := range f.Predators {
			r.triangle(p, r.style.PredatorSize)
		}
		r.fill(img, r.style.Predator)
	}

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(r.style.Label),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(6, 16),
	}
	d.DrawString(fmt.Sprintf("step %d  agents %d  predators %d", f.Step, len(f.Agents), len(f.Predators)))
}

func (r *Rasterizer) fill(img *image.RGBA, c color.Color) {
	r.z.DrawOp = draw.Over
	r.z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
}

// triangle adds the arrow glyph of a pose: a tip ahead of the position and
// two corners swept back on either side.
func (r *Rasterizer) triangle(p simulation.Pose, size float64) {
	x, y, a := p.Position.X, p.Position.Y, p.Angle
	tip := size / float64(r.scale)
	back := tip * 5 / 6
	tipX := x + math.Cos(a)*tip
	tipY := y + math.Sin(a)*tip
	rightX := x + math.Cos(a+2.5)*back
	rightY := y + math.Sin(a+2.5)*back
	leftX := x + math.Cos(a-2.5)*back
	leftY := y + math.Sin(a-2.5)*back

	r.z.MoveTo(r.px(tipX), r.px(tipY))
	r.z.LineTo(r.px(rightX), r.px(rightY))
	r.z.LineTo(r.px(leftX), r.px(leftY))
	r.z.ClosePath()
}

func (r *Rasterizer) circle(o simulation.Obstacle) {
	for i := range circleSegments {
		theta := 2 * math.Pi * float64(i) / circleSegments
		x := r.px(o.Position.X + o.Radius*math.Cos(theta))
		y := r.px(o.Position.Y + o.Radius*math.Sin(theta))
		if i == 0 {
			r.z.MoveTo(x, y)
			continue
		}
		r.z.LineTo(x, y)
	}
	r.z.ClosePath()
}

// px maps a world coordinate to pixels, clamped to the image.
func (r *Rasterizer) px(v float64) float32 {
	return min(max(float32(v)*r.scale, 0), float32(r.size))
}
