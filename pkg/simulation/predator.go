package simulation

import (
	"math"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// ProgressiveRestraint pulls pos toward center once it is at least threshold
// away; the pull is coefficient plus gain per unit of overshoot.
func ProgressiveRestraint(pos, center geometry.Vector2D, threshold, coefficient, gain float64) geometry.Vector2D {
	d := pos.DistanceTo(center)
	if d < threshold {
		return geometry.Zero
	}
	return center.Sub(pos).Normalize().Mul(coefficient + gain*(d-threshold))
}

// Pursuit selects the nearest living agent inside the field of view, a cone
// of halfFOV radians on each side of heading, and returns the unit vector
// toward it with its index. Without a visible agent it returns the zero
// vector and -1.
func Pursuit(pos, heading geometry.Vector2D, agents []Agent, halfFOV float64) (geometry.Vector2D, int) {
	target := -1
	best := math.MaxFloat64
	for i := range agents {
		a := &agents[i]
		if !a.Alive {
			continue
		}
		toAgent := a.Position.Sub(pos)
		if heading.AngleBetween(toAgent) > halfFOV {
			continue
		}
		if dSq := toAgent.LenSqr(); dSq < best {
			best = dSq
			target = i
		}
	}
	if target < 0 {
		return geometry.Zero, -1
	}
	return agents[target].Position.Sub(pos).Normalize(), target
}

// PredatorResultant sums the hunter rules for s.Predators[self]: previous
// heading, separation from other predators, optional predator flocking,
// progressive boundary restraint and pursuit.
func PredatorResultant(s Surroundings, self int, p PredatorParams) geometry.Vector2D {
	me := s.Predators[self]

	resultant := me.Heading
	resultant = resultant.Add(Separation(s.Predators, self, p.SeparationDistance).Mul(p.SeparationWeight))
	if p.Flocking {
		resultant = resultant.Add(Alignment(s.Predators, self, p.AlignmentDistance).Mul(p.AlignmentWeight))
		resultant = resultant.Add(Cohesion(s.Predators, self, p.CohesionMinDistance, p.CohesionMaxDistance).Mul(p.CohesionWeight))
	}
	resultant = resultant.Add(ProgressiveRestraint(me.Position, s.Center,
		s.WorldSize*p.RestraintRatio, p.RestraintCoefficient, p.RestraintGain))

	pursuit, _ := Pursuit(me.Position, me.Heading, s.Agents, p.HalfFieldOfView())
	resultant = resultant.Add(pursuit.Mul(p.PursuitWeight))
	return resultant
}

// NearestLiving returns the index of the living agent closest to pos and its
// distance, or -1 when no agent is alive.
func NearestLiving(agents []Agent, pos geometry.Vector2D) (int, float64) {
	nearest := -1
	best := math.MaxFloat64
	for i := range agents {
		if !agents[i].Alive {
			continue
		}
		if dSq := pos.DistanceSquaredTo(agents[i].Position); dSq < best {
			best = dSq
			nearest = i
		}
	}
	if nearest < 0 {
		return -1, math.Inf(1)
	}
	return nearest, math.Sqrt(best)
}

// ResolveKills lets every predator, in order, kill the nearest living agent
// when it is strictly closer than killDistance. It returns the indices of the
// agents marked dead; already dead agents are never picked again.
func ResolveKills(agents []Agent, predators []Predator, killDistance float64) []int {
	var killed []int
	for i := range predators {
		victim, d := NearestLiving(agents, predators[i].Position)
		if victim < 0 || d >= killDistance {
			continue
		}
		agents[victim].Alive = false
		killed = append(killed, victim)
	}
	return killed
}

// compactAgents removes dead agents in place, keeping the order of survivors.
func compactAgents(agents []Agent) []Agent {
	alive := agents[:0]
	for _, a := range agents {
		if a.Alive {
			alive = append(alive, a)
		}
	}
	clear(agents[len(alive):])
	return alive
}
