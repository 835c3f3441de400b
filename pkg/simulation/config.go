package simulation

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"gopkg.in/yaml.v3"
)

// UpdateMode selects how entities of one phase observe each other.
type UpdateMode string

const (
	// ModeSequential updates entities in place, in slice order: later agents
	// observe the new state of earlier ones within the same tick.
	ModeSequential UpdateMode = "sequential"
	// ModeBuffered reads every entity of a phase from the previous state and
	// swaps the new state in at the end of the phase.
	ModeBuffered UpdateMode = "buffered"
)

// Release schedules predators entering the arena at a given tick.
// Offsets are relative to the arena center. When Offsets is empty, Count
// predators are spread evenly on a ring of radius Spread.
type Release struct {
	Tick    int                 `json:"tick"`
	Count   int                 `json:"count,omitempty"`
	Spread  float64             `json:"spread,omitempty"`
	Offsets []geometry.Vector2D `json:"offsets,omitempty"`
}

// Formation returns the spawn offsets of the release.
func (r Release) Formation() []geometry.Vector2D {
	if len(r.Offsets) > 0 {
		out := make([]geometry.Vector2D, len(r.Offsets))
		copy(out, r.Offsets)
		return out
	}
	out := make([]geometry.Vector2D, r.Count)
	for i := range out {
		theta := 2 * math.Pi * float64(i) / float64(r.Count)
		out[i] = geometry.NewVectorPolar(r.Spread, theta)
	}
	return out
}

// AgentParams tunes the prey rules.
type AgentParams struct {
	Speed               float64 `json:"speed"`
	SeparationDistance  float64 `json:"separationDistance"`
	AlignmentDistance   float64 `json:"alignmentDistance"`
	CohesionMinDistance float64 `json:"cohesionMinDistance"`
	CohesionMaxDistance float64 `json:"cohesionMaxDistance"`
	PredatorDistance    float64 `json:"predatorDistance"`
	ObstacleReach       float64 `json:"obstacleReach"` // multiple of the obstacle radius

	SeparationWeight float64 `json:"separationWeight"`
	AlignmentWeight  float64 `json:"alignmentWeight"`
	CohesionWeight   float64 `json:"cohesionWeight"`
	ObstacleWeight   float64 `json:"obstacleWeight"`
	PredatorWeight   float64 `json:"predatorWeight"`

	RestraintRatio       float64 `json:"restraintRatio"` // fraction of the world size
	RestraintCoefficient float64 `json:"restraintCoefficient"`
}

// PredatorParams tunes the hunter rules.
type PredatorParams struct {
	Speed        float64 `json:"speed"`
	KillDistance float64 `json:"killDistance"` // 0 means "same as Speed"

	SeparationDistance float64 `json:"separationDistance"`
	SeparationWeight   float64 `json:"separationWeight"`

	Flocking            bool    `json:"flocking"`
	AlignmentDistance   float64 `json:"alignmentDistance"`
	CohesionMinDistance float64 `json:"cohesionMinDistance"`
	CohesionMaxDistance float64 `json:"cohesionMaxDistance"`
	AlignmentWeight     float64 `json:"alignmentWeight"`
	CohesionWeight      float64 `json:"cohesionWeight"`

	PursuitWeight float64 `json:"pursuitWeight"`
	FieldOfView   float64 `json:"fieldOfView"` // degrees, centered on the heading

	RestraintRatio       float64 `json:"restraintRatio"`
	RestraintCoefficient float64 `json:"restraintCoefficient"`
	RestraintGain        float64 `json:"restraintGain"` // extra magnitude per unit of overshoot
}

// EffectiveKillDistance returns the kill distance, defaulting to the predator speed.
func (p PredatorParams) EffectiveKillDistance() float64 {
	if p.KillDistance > 0 {
		return p.KillDistance
	}
	return p.Speed
}

// HalfFieldOfView returns half of the field of view in radians.
func (p PredatorParams) HalfFieldOfView() float64 {
	return p.FieldOfView * math.Pi / 360
}

type Config struct {
	Seed      int64   `json:"seed"`
	WorldSize float64 `json:"worldSize"` // square arena edge length
	Steps     int     `json:"steps"`

	// Population
	AgentCount    int        `json:"agentCount"`
	PredatorCount int        `json:"predatorCount"` // seeded at tick 0
	Releases      []Release  `json:"releases"`
	Obstacles     []Obstacle `json:"obstacles"`

	UpdateMode UpdateMode `json:"updateMode"`
	Workers    int        `json:"workers"` // buffered mode only, 0 means GOMAXPROCS

	Agent    AgentParams    `json:"agent"`
	Predator PredatorParams `json:"predator"`
}

// DefaultConfig returns the canonical parameter set.
func DefaultConfig() *Config {
	return &Config{
		Seed:          -915743478,
		WorldSize:     2048,
		Steps:         5000,
		AgentCount:    500,
		PredatorCount: 0,
		Releases: []Release{
			{
				Tick: 1000,
				Offsets: []geometry.Vector2D{
					{X: -16, Y: -16},
					{X: 16, Y: -16},
					{X: -16, Y: 16},
					{X: 16, Y: 16},
				},
			},
		},
		UpdateMode: ModeSequential,
		Agent: AgentParams{
			Speed:                5,
			SeparationDistance:   16,
			AlignmentDistance:    64,
			CohesionMinDistance:  16,
			CohesionMaxDistance:  64,
			PredatorDistance:     64,
			ObstacleReach:        1.5,
			SeparationWeight:     3,
			AlignmentWeight:      1,
			CohesionWeight:       1,
			ObstacleWeight:       3,
			PredatorWeight:       3,
			RestraintRatio:       1.0 / 3.0,
			RestraintCoefficient: 0.3,
		},
		Predator: PredatorParams{
			Speed:                7,
			SeparationDistance:   16,
			SeparationWeight:     3,
			Flocking:             false,
			AlignmentDistance:    64,
			CohesionMinDistance:  16,
			CohesionMaxDistance:  64,
			AlignmentWeight:      1,
			CohesionWeight:       1,
			PursuitWeight:        2,
			FieldOfView:          140,
			RestraintRatio:       0.5,
			RestraintCoefficient: 0.3,
			RestraintGain:        0.02,
		},
	}
}

// Center returns the arena center.
func (c *Config) Center() geometry.Vector2D {
	return geometry.Vector2D{X: c.WorldSize / 2, Y: c.WorldSize / 2}
}

// Validate reports the first semantic problem of the config.
// Values are never clamped.
func (c *Config) Validate() error {
	if name, ok := c.firstNonFinite(); ok {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidConfig, name)
	}

	switch {
	case c.WorldSize < 1:
		return fmt.Errorf("%w: worldSize must be at least 1, got %v", ErrInvalidConfig, c.WorldSize)
	case c.Steps <= 0:
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidConfig, c.Steps)
	case c.AgentCount <= 0:
		return fmt.Errorf("%w: agentCount must be positive, got %d", ErrInvalidConfig, c.AgentCount)
	case c.PredatorCount < 0:
		return fmt.Errorf("%w: predatorCount must not be negative, got %d", ErrInvalidConfig, c.PredatorCount)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	case c.UpdateMode != ModeSequential && c.UpdateMode != ModeBuffered:
		return fmt.Errorf("%w: unknown updateMode %q", ErrInvalidConfig, c.UpdateMode)
	}

	for i, r := range c.Releases {
		if r.Tick < 1 || r.Tick >= c.Steps {
			return fmt.Errorf("%w: release %d: tick %d outside [1, %d)", ErrInvalidConfig, i, r.Tick, c.Steps)
		}
		if r.Count < 0 || r.Spread < 0 {
			return fmt.Errorf("%w: release %d: count and spread must not be negative", ErrInvalidConfig, i)
		}
		if len(r.Offsets) == 0 && r.Count == 0 {
			return fmt.Errorf("%w: release %d: no offsets and no count", ErrInvalidConfig, i)
		}
	}

	for i, o := range c.Obstacles {
		if o.Radius <= 0 {
			return fmt.Errorf("%w: obstacle %d: radius must be positive, got %v", ErrInvalidConfig, i, o.Radius)
		}
	}

	a := c.Agent
	switch {
	case a.Speed <= 0:
		return fmt.Errorf("%w: agent speed must be positive, got %v", ErrInvalidConfig, a.Speed)
	case a.SeparationDistance < 0 || a.AlignmentDistance < 0 || a.PredatorDistance < 0:
		return fmt.Errorf("%w: agent distances must not be negative", ErrInvalidConfig)
	case a.CohesionMinDistance < 0 || a.CohesionMinDistance > a.CohesionMaxDistance:
		return fmt.Errorf("%w: agent cohesion band [%v, %v] is empty", ErrInvalidConfig, a.CohesionMinDistance, a.CohesionMaxDistance)
	case a.ObstacleReach <= 0:
		return fmt.Errorf("%w: agent obstacleReach must be positive, got %v", ErrInvalidConfig, a.ObstacleReach)
	case a.RestraintRatio <= 0:
		return fmt.Errorf("%w: agent restraintRatio must be positive, got %v", ErrInvalidConfig, a.RestraintRatio)
	}

	p := c.Predator
	switch {
	case p.Speed <= 0:
		return fmt.Errorf("%w: predator speed must be positive, got %v", ErrInvalidConfig, p.Speed)
	case p.KillDistance < 0:
		return fmt.Errorf("%w: predator killDistance must not be negative, got %v", ErrInvalidConfig, p.KillDistance)
	case p.SeparationDistance < 0 || p.AlignmentDistance < 0:
		return fmt.Errorf("%w: predator distances must not be negative", ErrInvalidConfig)
	case p.CohesionMinDistance < 0 || p.CohesionMinDistance > p.CohesionMaxDistance:
		return fmt.Errorf("%w: predator cohesion band [%v, %v] is empty", ErrInvalidConfig, p.CohesionMinDistance, p.CohesionMaxDistance)
	case p.FieldOfView <= 0 || p.FieldOfView > 360:
		return fmt.Errorf("%w: predator fieldOfView must be in (0, 360], got %v", ErrInvalidConfig, p.FieldOfView)
	case p.RestraintRatio <= 0 || p.RestraintGain < 0:
		return fmt.Errorf("%w: predator restraint must have a positive ratio and a non-negative gain", ErrInvalidConfig)
	}
	return nil
}

type namedValue struct {
	name  string
	value float64
}

// firstNonFinite returns the name of the first NaN or infinite parameter.
func (c *Config) firstNonFinite() (string, bool) {
	a, p := c.Agent, c.Predator
	values := []namedValue{
		{"worldSize", c.WorldSize},
		{"agent.speed", a.Speed},
		{"agent.separationDistance", a.SeparationDistance},
		{"agent.alignmentDistance", a.AlignmentDistance},
		{"agent.cohesionMinDistance", a.CohesionMinDistance},
		{"agent.cohesionMaxDistance", a.CohesionMaxDistance},
		{"agent.predatorDistance", a.PredatorDistance},
		{"agent.obstacleReach", a.ObstacleReach},
		{"agent.separationWeight", a.SeparationWeight},
		{"agent.alignmentWeight", a.AlignmentWeight},
		{"agent.cohesionWeight", a.CohesionWeight},
		{"agent.obstacleWeight", a.ObstacleWeight},
		{"agent.predatorWeight", a.PredatorWeight},
		{"agent.restraintRatio", a.RestraintRatio},
		{"agent.restraintCoefficient", a.RestraintCoefficient},
		{"predator.speed", p.Speed},
		{"predator.killDistance", p.KillDistance},
		{"predator.separationDistance", p.SeparationDistance},
		{"predator.separationWeight", p.SeparationWeight},
		{"predator.alignmentDistance", p.AlignmentDistance},
		{"predator.cohesionMinDistance", p.CohesionMinDistance},
		{"predator.cohesionMaxDistance", p.CohesionMaxDistance},
		{"predator.alignmentWeight", p.AlignmentWeight},
		{"predator.cohesionWeight", p.CohesionWeight},
		{"predator.pursuitWeight", p.PursuitWeight},
		{"predator.fieldOfView", p.FieldOfView},
		{"predator.restraintRatio", p.RestraintRatio},
		{"predator.restraintCoefficient", p.RestraintCoefficient},
		{"predator.restraintGain", p.RestraintGain},
	}
	for i, r := range c.Releases {
		values = append(values, namedValue{fmt.Sprintf("releases[%d].spread", i), r.Spread})
		for j, off := range r.Offsets {
			name := fmt.Sprintf("releases[%d].offsets[%d]", i, j)
			values = append(values, namedValue{name + ".x", off.X}, namedValue{name + ".y", off.Y})
		}
	}
	for i, o := range c.Obstacles {
		name := fmt.Sprintf("obstacles[%d]", i)
		values = append(values,
			namedValue{name + ".position.x", o.Position.X},
			namedValue{name + ".position.y", o.Position.Y},
			namedValue{name + ".radius", o.Radius})
	}

	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return v.name, true
		}
	}
	return "", false
}

// LoadConfig loads a JSON, YAML or TOML file, validates it against the
// embedded schema and overlays it on DefaultConfig.
func LoadConfig(configFile string) (*Config, error) {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(b, strings.TrimPrefix(filepath.Ext(configFile), "."))
}

// ParseConfig decodes data in the given format ("json", "yaml", "yml" or "toml").
func ParseConfig(data []byte, format string) (*Config, error) {
	// 1. Decode into a generic document
	var doc interface{}
	var err error
	switch strings.ToLower(format) {
	case "json":
		err = json.Unmarshal(data, &doc)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &doc)
	case "toml":
		var m map[string]interface{}
		err = toml.Unmarshal(data, &m)
		doc = m
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s config: %w", format, err)
	}

	// 2. Normalize to JSON so every format is validated the same way
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize config: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(normalized, &v); err != nil {
		return nil, fmt.Errorf("failed to decode normalized config: %w", err)
	}

	// 3. Validate against the schema
	sch, err := configSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// 4. Overlay on the defaults
	cfg := DefaultConfig()
	if m, ok := v.(map[string]interface{}); ok {
		// a release list replaces the default schedule instead of merging into it
		if _, ok := m["releases"]; ok {
			cfg.Releases = nil
		}
	}
	if err := json.Unmarshal(normalized, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
