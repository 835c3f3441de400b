package simulation

import (
	"math"
	"slices"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

type gridKey struct {
	x, y int
}

// agentGrid is a uniform spatial hash over an agent snapshot. With a cell
// size at least the widest neighbor radius, the 3x3 block around a cell
// holds every agent any rule can see.
type agentGrid struct {
	cellSize float64
	cells    map[gridKey][]int
}

func newAgentGrid(cellSize float64) *agentGrid {
	// Clamp to a minimum of 10 to avoid tiny grids or div by zero
	return &agentGrid{
		cellSize: math.Max(cellSize, 10.0),
		cells:    make(map[gridKey][]int),
	}
}

func (g *agentGrid) cellOf(p geometry.Vector2D) gridKey {
	// floor keeps negative coordinates out of cell 0
	return gridKey{
		x: int(math.Floor(p.X / g.cellSize)),
		y: int(math.Floor(p.Y / g.cellSize)),
	}
}

// rebuild re-buckets the agents, reusing the cell slices of the last tick.
func (g *agentGrid) rebuild(agents []Agent) {
	for k := range g.cells {
		g.cells[k] = g.cells[k][:0]
	}
	for i := range agents {
		key := g.cellOf(agents[i].Position)
		g.cells[key] = append(g.cells[key], i)
	}
}

// nearby appends to dst the indices of all agents in and around the cell of
// p, in ascending order so that sums over them match a full scan.
func (g *agentGrid) nearby(dst []int, p geometry.Vector2D) []int {
	c := g.cellOf(p)
	for i := c.x - 1; i <= c.x+1; i++ {
		for j := c.y - 1; j <= c.y+1; j++ {
			if idx, ok := g.cells[gridKey{x: i, y: j}]; ok {
				dst = append(dst, idx...)
			}
		}
	}
	slices.Sort(dst)
	return dst
}
