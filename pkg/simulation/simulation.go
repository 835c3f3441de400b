package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	golog "github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle position of a Simulation.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// seedStream is the second PCG word; the configured seed is the first.
const seedStream = 0x5eed_f10c

// Option customizes a Simulation at construction.
type Option func(*Simulation)

// WithLogger routes run events to logger.
func WithLogger(logger golog.Logger) Option {
	return func(s *Simulation) {
		s.logger = logger
	}
}

// Simulation owns the world state and advances it tick by tick. Step and Run
// must not be called concurrently with each other; a concurrent call is a
// no-op. Progress, State, Frames and Cancel are safe from any goroutine.
type Simulation struct {
	cfg    *Config
	runID  uuid.UUID
	logger golog.Logger

	agents    []Agent
	predators []Predator
	obstacles *ObstacleField
	releases  map[int][]geometry.Vector2D
	frames    *FrameStore

	// next is the tick the stepper executes next; only the stepper touches it.
	next int

	state    atomic.Int32
	progress atomic.Uint64 // math.Float64bits of the completed fraction

	mu            sync.Mutex
	cancel        context.CancelFunc
	cancelPending bool // Cancel called while no Run was in flight

	// buffered mode
	grid        *agentGrid
	agentBuf    []Agent
	predatorBuf []Predator
	workers     int
}

// New validates cfg, seeds the initial population and allocates the frame store.
func New(cfg *Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	obstacles, err := NewObstacleField(cfg.Obstacles, cfg.Agent.ObstacleReach)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg:       cfg,
		runID:     uuid.New(),
		logger:    golog.DiscardLogger,
		obstacles: obstacles,
		releases:  make(map[int][]geometry.Vector2D),
		frames:    NewFrameStore(cfg.Steps),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, r := range cfg.Releases {
		s.releases[r.Tick] = append(s.releases[r.Tick], r.Formation()...)
	}

	s.seed()

	if cfg.UpdateMode == ModeBuffered {
		s.grid = newAgentGrid(agentNeighborRadius(cfg.Agent))
		s.workers = cfg.Workers
		if s.workers == 0 {
			s.workers = runtime.GOMAXPROCS(0)
		}
	}
	return s, nil
}

// seed places agents, then initial predators, uniformly on the integer grid
// of the arena. The same seed always yields the same placement.
func (s *Simulation) seed() {
	rng := rand.New(rand.NewPCG(uint64(s.cfg.Seed), seedStream))
	size := int(s.cfg.WorldSize)
	next := func() geometry.Vector2D {
		x := rng.IntN(size)
		y := rng.IntN(size)
		return geometry.NewVector(float64(x), float64(y))
	}

	s.agents = make([]Agent, s.cfg.AgentCount)
	for i := range s.agents {
		s.agents[i] = NewAgent(next())
	}
	s.predators = make([]Predator, 0, s.cfg.PredatorCount)
	for range s.cfg.PredatorCount {
		s.predators = append(s.predators, NewPredator(next()))
	}
}

// RunID identifies this simulation in logs and output paths.
func (s *Simulation) RunID() uuid.UUID {
	return s.runID
}

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() *Config {
	return s.cfg
}

// Frames returns the frame store. It is readable while the run continues.
func (s *Simulation) Frames() *FrameStore {
	return s.frames
}

// State returns the current lifecycle state.
func (s *Simulation) State() State {
	return State(s.state.Load())
}

// Progress returns the completed fraction of ticks in [0, 1]. It never blocks
// and never decreases.
func (s *Simulation) Progress() float64 {
	return math.Float64frombits(s.progress.Load())
}

// Cancel asks a Run in progress to stop at the next tick boundary. When no
// Run is in flight, the request is kept and the next Run stops before its
// first tick.
func (s *Simulation) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		return
	}
	s.cancelPending = true
}

// Step executes exactly one tick. It is a no-op when the simulation is
// running elsewhere or already finished.
func (s *Simulation) Step() error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil
	}
	err := s.tick()
	s.settle()
	return err
}

// Run executes every remaining tick. It is a no-op when the simulation is
// running elsewhere or already finished. Cancellation is checked between
// ticks only; a cancelled run returns the context error, keeps every frame
// captured so far and may be resumed by calling Run again.
func (s *Simulation) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil
	}
	defer s.settle()

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	if s.cancelPending {
		s.cancelPending = false
		cancel()
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	start := time.Now()
	s.logger.Infof("run %s: starting at tick %d of %d (%d agents, mode %s)",
		s.runID, s.next, s.cfg.Steps, len(s.agents), s.cfg.UpdateMode)

	for s.next < s.cfg.Steps {
		if err := ctx.Err(); err != nil {
			s.logger.Infof("run %s: cancelled before tick %d", s.runID, s.next)
			return err
		}
		if err := s.tick(); err != nil {
			return err
		}
	}

	s.logger.Infof("run %s: finished %d ticks in %s, %d agents left",
		s.runID, s.cfg.Steps, time.Since(start), len(s.agents))
	return nil
}

// settle leaves the Running state for Finished or back to Idle.
func (s *Simulation) settle() {
	if s.next >= s.cfg.Steps {
		s.state.Store(int32(StateFinished))
		return
	}
	s.state.Store(int32(StateIdle))
}

// tick executes tick s.next. Tick 0 only records the seeded world.
func (s *Simulation) tick() error {
	step := s.next
	if step > 0 {
		s.release(step)
		s.updateAgents()
		s.updatePredators()
		if killed := ResolveKills(s.agents, s.predators, s.cfg.Predator.EffectiveKillDistance()); len(killed) > 0 {
			s.logger.Debugf("run %s: tick %d: %d agents killed", s.runID, step, len(killed))
			s.agents = compactAgents(s.agents)
		}
	}

	if err := s.frames.Append(s.capture(step)); err != nil {
		return err
	}
	s.next = step + 1
	s.progress.Store(math.Float64bits(float64(s.next) / float64(s.cfg.Steps)))
	return nil
}

func (s *Simulation) release(step int) {
	offsets, ok := s.releases[step]
	if !ok {
		return
	}
	center := s.cfg.Center()
	for _, off := range offsets {
		s.predators = append(s.predators, NewPredator(center.Add(off)))
	}
	s.logger.Infof("run %s: tick %d: released %d predators", s.runID, step, len(offsets))
}

func (s *Simulation) surroundings() Surroundings {
	return Surroundings{
		Agents:    s.agents,
		Predators: s.predators,
		Obstacles: s.obstacles,
		Center:    s.cfg.Center(),
		WorldSize: s.cfg.WorldSize,
	}
}

func (s *Simulation) updateAgents() {
	if s.cfg.UpdateMode == ModeBuffered {
		s.updateAgentsBuffered()
		return
	}
	// in place: later agents see the new state of earlier ones
	env := s.surroundings()
	p := s.cfg.Agent
	for i := range s.agents {
		a := &s.agents[i]
		r := AgentResultant(env, i, p)
		a.Position, a.Heading = Advance(a.Position, a.Heading, r, p.Speed)
	}
}

// updateAgentsBuffered evaluates every agent against the state of the
// previous phase and swaps the results in once all workers are done.
func (s *Simulation) updateAgentsBuffered() {
	n := len(s.agents)
	s.agentBuf = slices.Grow(s.agentBuf[:0], n)[:n]
	s.grid.rebuild(s.agents)

	env := s.surroundings()
	p := s.cfg.Agent
	out := s.agentBuf

	chunk := (n + s.workers - 1) / s.workers
	var g errgroup.Group
	g.SetLimit(s.workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			var idx []int
			var local []Agent
			for i := lo; i < hi; i++ {
				me := env.Agents[i]
				idx = s.grid.nearby(idx[:0], me.Position)
				local = local[:0]
				self := -1
				for _, j := range idx {
					if j == i {
						self = len(local)
					}
					local = append(local, env.Agents[j])
				}
				view := env
				view.Agents = local
				r := AgentResultant(view, self, p)
				pos, heading := Advance(me.Position, me.Heading, r, p.Speed)
				out[i] = Agent{Position: pos, Heading: heading, Alive: me.Alive}
			}
			return nil
		})
	}
	_ = g.Wait()

	s.agents, s.agentBuf = s.agentBuf, s.agents
}

func (s *Simulation) updatePredators() {
	env := s.surroundings()
	p := s.cfg.Predator
	if s.cfg.UpdateMode == ModeBuffered {
		n := len(s.predators)
		s.predatorBuf = slices.Grow(s.predatorBuf[:0], n)[:n]
		for i, me := range s.predators {
			r := PredatorResultant(env, i, p)
			pos, heading := Advance(me.Position, me.Heading, r, p.Speed)
			s.predatorBuf[i] = Predator{Position: pos, Heading: heading}
		}
		s.predators, s.predatorBuf = s.predatorBuf, s.predators
		return
	}
	for i := range s.predators {
		me := &s.predators[i]
		r := PredatorResultant(env, i, p)
		me.Position, me.Heading = Advance(me.Position, me.Heading, r, p.Speed)
	}
}

// capture copies the current world into a new frame.
func (s *Simulation) capture(step int) Frame {
	f := Frame{
		Step:      step,
		Agents:    make([]Pose, len(s.agents)),
		Predators: make([]Pose, len(s.predators)),
		Obstacles: s.obstacles.All(),
	}
	for i := range s.agents {
		f.Agents[i] = s.agents[i].Pose()
	}
	for i := range s.predators {
		f.Predators[i] = s.predators[i].Pose()
	}
	return f
}
