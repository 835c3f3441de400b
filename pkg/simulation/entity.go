package simulation

import "github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"

// Agent is a prey individual of the flock.
// Heading is a unit vector, except transiently zero.
type Agent struct {
	Position geometry.Vector2D
	Heading  geometry.Vector2D
	Alive    bool
}

// Predator hunts agents. Predators are never removed.
type Predator struct {
	Position geometry.Vector2D
	Heading  geometry.Vector2D
}

// Obstacle is a static disc agents steer around.
type Obstacle struct {
	Position geometry.Vector2D `json:"position"`
	Radius   float64           `json:"radius"`
}

// NewAgent creates a living agent heading along its position vector.
func NewAgent(pos geometry.Vector2D) Agent {
	return Agent{Position: pos, Heading: pos.Normalize(), Alive: true}
}

// NewPredator creates a predator heading along its position vector.
func NewPredator(pos geometry.Vector2D) Predator {
	return Predator{Position: pos, Heading: pos.Normalize()}
}

// Pose returns the render view of the agent.
func (a *Agent) Pose() Pose {
	return Pose{Position: a.Position, Angle: a.Heading.Angle()}
}

// Pose returns the render view of the predator.
func (p *Predator) Pose() Pose {
	return Pose{Position: p.Position, Angle: p.Heading.Angle()}
}

// Advance converts a resultant steering vector into one tick of motion.
// The displacement is the resultant scaled to speed and the new heading its direction.
// A zero resultant leaves position and heading unchanged.
func Advance(pos, heading, resultant geometry.Vector2D, speed float64) (geometry.Vector2D, geometry.Vector2D) {
	if resultant.IsZero() {
		return pos, heading
	}
	displacement := resultant.Normalize().Mul(speed)
	return pos.Add(displacement), displacement.Normalize()
}
