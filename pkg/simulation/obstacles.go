package simulation

import (
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// obstacleEntry is the R-tree view of one obstacle: its index and the
// bounding box of its avoidance zone.
type obstacleEntry struct {
	index int
	rect  rtreego.Rect
}

func (e *obstacleEntry) Bounds() rtreego.Rect {
	return e.rect
}

// ObstacleField is the immutable set of obstacles with a spatial index over
// their avoidance zones (reach × radius).
type ObstacleField struct {
	obstacles []Obstacle
	reach     float64
	tree      *rtreego.Rtree
}

// NewObstacleField indexes obstacles whose avoidance zone extends reach times
// their radius. Obstacles must have a positive radius.
func NewObstacleField(obstacles []Obstacle, reach float64) (*ObstacleField, error) {
	f := &ObstacleField{
		obstacles: slices.Clone(obstacles),
		reach:     reach,
		tree:      rtreego.NewTree(2, 4, 16),
	}
	for i, o := range f.obstacles {
		zone := o.Radius * reach
		rect, err := rtreego.NewRect(
			rtreego.Point{o.Position.X - zone, o.Position.Y - zone},
			[]float64{2 * zone, 2 * zone},
		)
		if err != nil {
			return nil, err
		}
		f.tree.Insert(&obstacleEntry{index: i, rect: rect})
	}
	return f, nil
}

// Len returns the number of obstacles.
func (f *ObstacleField) Len() int {
	return len(f.obstacles)
}

// All returns a copy of the obstacles in configuration order.
func (f *ObstacleField) All() []Obstacle {
	return slices.Clone(f.obstacles)
}

// Near returns the obstacles whose avoidance zone box contains p, in
// configuration order. Callers still apply the exact distance test.
func (f *ObstacleField) Near(p geometry.Vector2D) []Obstacle {
	if len(f.obstacles) == 0 {
		return nil
	}
	hits := f.tree.SearchIntersect(rtreego.Point{p.X, p.Y}.ToRect(1e-6))
	if len(hits) == 0 {
		return nil
	}
	idx := make([]int, 0, len(hits))
	for _, h := range hits {
		idx = append(idx, h.(*obstacleEntry).index)
	}
	// summation order must not depend on the tree layout
	slices.Sort(idx)
	out := make([]Obstacle, len(idx))
	for i, j := range idx {
		out[i] = f.obstacles[j]
	}
	return out
}
