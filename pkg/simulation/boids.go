package simulation

import (
	"math"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Body is the read-only view the neighborhood rules need from an entity.
type Body interface {
	Pos() geometry.Vector2D
	Dir() geometry.Vector2D
	IsAlive() bool
}

func (a Agent) Pos() geometry.Vector2D    { return a.Position }
func (a Agent) Dir() geometry.Vector2D    { return a.Heading }
func (a Agent) IsAlive() bool             { return a.Alive }
func (p Predator) Pos() geometry.Vector2D { return p.Position }
func (p Predator) Dir() geometry.Vector2D { return p.Heading }
func (p Predator) IsAlive() bool          { return true }

// Surroundings is the world state a force computation may read.
// Nothing reachable from it is mutated by the rules.
type Surroundings struct {
	Agents    []Agent
	Predators []Predator
	Obstacles *ObstacleField
	Center    geometry.Vector2D
	WorldSize float64
}

// Separation returns the normalized sum of the vectors pointing from every
// other body within radius toward bodies[self].
func Separation[T Body](bodies []T, self int, radius float64) geometry.Vector2D {
	me := bodies[self].Pos()
	rSq := radius * radius
	var sum geometry.Vector2D
	for i, other := range bodies {
		if i == self || !other.IsAlive() {
			continue
		}
		if me.DistanceSquaredTo(other.Pos()) <= rSq {
			sum = sum.Add(me.Sub(other.Pos()))
		}
	}
	return sum.Normalize()
}

// Alignment returns the normalized sum of the headings of every other body
// within radius.
func Alignment[T Body](bodies []T, self int, radius float64) geometry.Vector2D {
	me := bodies[self].Pos()
	rSq := radius * radius
	var sum geometry.Vector2D
	for i, other := range bodies {
		if i == self || !other.IsAlive() {
			continue
		}
		if me.DistanceSquaredTo(other.Pos()) <= rSq {
			sum = sum.Add(other.Dir())
		}
	}
	return sum.Normalize()
}

// Cohesion returns the normalized sum of the vectors from bodies[self] toward
// every other body whose distance lies in [minDist, maxDist].
func Cohesion[T Body](bodies []T, self int, minDist, maxDist float64) geometry.Vector2D {
	me := bodies[self].Pos()
	minSq, maxSq := minDist*minDist, maxDist*maxDist
	var sum geometry.Vector2D
	for i, other := range bodies {
		if i == self || !other.IsAlive() {
			continue
		}
		dSq := me.DistanceSquaredTo(other.Pos())
		if dSq >= minSq && dSq <= maxSq {
			sum = sum.Add(other.Pos().Sub(me))
		}
	}
	return sum.Normalize()
}

// AvoidObstacles returns the normalized sum of tangential deflections for
// every obstacle within reach × radius of pos. The deflection is the outward
// radial direction rotated by -90° and scaled by reach × radius.
func AvoidObstacles(pos geometry.Vector2D, obstacles []Obstacle, reach float64) geometry.Vector2D {
	var sum geometry.Vector2D
	for _, o := range obstacles {
		zone := reach * o.Radius
		if pos.DistanceTo(o.Position) > zone {
			continue
		}
		deflection := pos.Sub(o.Position).Normalize().Rotate(-math.Pi / 2).Mul(zone)
		sum = sum.Add(deflection)
	}
	return sum.Normalize()
}

// AvoidPredators returns the normalized sum of the vectors pointing from
// every predator within radius toward pos.
func AvoidPredators(pos geometry.Vector2D, predators []Predator, radius float64) geometry.Vector2D {
	rSq := radius * radius
	var sum geometry.Vector2D
	for _, p := range predators {
		if pos.DistanceSquaredTo(p.Position) <= rSq {
			sum = sum.Add(pos.Sub(p.Position))
		}
	}
	return sum.Normalize()
}

// Restraint pulls pos back toward center with a fixed magnitude once it is
// at least threshold away from it.
func Restraint(pos, center geometry.Vector2D, threshold, coefficient float64) geometry.Vector2D {
	if pos.DistanceTo(center) < threshold {
		return geometry.Zero
	}
	return center.Sub(pos).Normalize().Mul(coefficient)
}

// AgentResultant sums the prey rules for s.Agents[self]: previous heading,
// separation, alignment, cohesion, obstacle and predator avoidance and
// boundary restraint.
func AgentResultant(s Surroundings, self int, p AgentParams) geometry.Vector2D {
	me := s.Agents[self]

	resultant := me.Heading
	resultant = resultant.Add(Separation(s.Agents, self, p.SeparationDistance).Mul(p.SeparationWeight))
	resultant = resultant.Add(Alignment(s.Agents, self, p.AlignmentDistance).Mul(p.AlignmentWeight))
	resultant = resultant.Add(Cohesion(s.Agents, self, p.CohesionMinDistance, p.CohesionMaxDistance).Mul(p.CohesionWeight))
	if s.Obstacles != nil {
		near := s.Obstacles.Near(me.Position)
		resultant = resultant.Add(AvoidObstacles(me.Position, near, p.ObstacleReach).Mul(p.ObstacleWeight))
	}
	resultant = resultant.Add(AvoidPredators(me.Position, s.Predators, p.PredatorDistance).Mul(p.PredatorWeight))
	resultant = resultant.Add(Restraint(me.Position, s.Center, s.WorldSize*p.RestraintRatio, p.RestraintCoefficient))
	return resultant
}

// agentNeighborRadius is the widest distance any agent-to-agent rule looks at.
func agentNeighborRadius(p AgentParams) float64 {
	return math.Max(p.SeparationDistance, math.Max(p.AlignmentDistance, p.CohesionMaxDistance))
}
