package simulation

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Pose is what a frame keeps of a moving entity: where it is and where it points.
type Pose struct {
	Position geometry.Vector2D `json:"position"`
	Angle    float64           `json:"angle"` // radians, atan2 of the heading
}

// Frame is the immutable snapshot captured at the end of a tick.
type Frame struct {
	Step      int        `json:"step"`
	Agents    []Pose     `json:"agents"`
	Predators []Pose     `json:"predators"`
	Obstacles []Obstacle `json:"obstacles"`
}

// FrameStore is an append-only, pre-sized sequence of frames. One goroutine
// appends; any number of goroutines may read published frames concurrently.
// A frame becomes visible only after it is completely written.
type FrameStore struct {
	frames    []Frame
	published atomic.Int64
}

// NewFrameStore allocates room for exactly n frames.
func NewFrameStore(n int) *FrameStore {
	return &FrameStore{frames: make([]Frame, n)}
}

// Append publishes f as the next frame. Its Step must equal Len().
func (s *FrameStore) Append(f Frame) error {
	next := int(s.published.Load())
	if next >= len(s.frames) {
		return fmt.Errorf("%w: store is full (%d frames)", ErrFrameOutOfRange, len(s.frames))
	}
	if f.Step != next {
		return fmt.Errorf("%w: got step %d, want %d", ErrFrameOutOfOrder, f.Step, next)
	}
	s.frames[next] = f
	s.published.Store(int64(next + 1))
	return nil
}

// Get returns frame i. The returned frame must not be modified.
func (s *FrameStore) Get(i int) (Frame, error) {
	if i < 0 || i >= len(s.frames) {
		return Frame{}, fmt.Errorf("%w: %d not in [0, %d)", ErrFrameOutOfRange, i, len(s.frames))
	}
	if i >= s.Len() {
		return Frame{}, fmt.Errorf("%w: frame %d", ErrFrameNotReady, i)
	}
	return s.frames[i], nil
}

// Len returns the number of published frames.
func (s *FrameStore) Len() int {
	return int(s.published.Load())
}

// Cap returns the number of frames the store was sized for.
func (s *FrameStore) Cap() int {
	return len(s.frames)
}

// Completed reports whether every frame has been published.
func (s *FrameStore) Completed() bool {
	return s.Len() == len(s.frames)
}

// Population returns the number of living agents of every published frame.
func (s *FrameStore) Population() []int {
	n := s.Len()
	out := make([]int, n)
	for i := range n {
		out[i] = len(s.frames[i].Agents)
	}
	return out
}

// WritePopulation writes the agent count of every published frame, one per line.
func (s *FrameStore) WritePopulation(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, count := range s.Population() {
		if _, err := fmt.Fprintln(bw, count); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Digest hashes the exact bits of every published pose. Two runs with the
// same configuration produce the same digest.
func (s *FrameStore) Digest() uint64 {
	h := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	poses := func(ps []Pose) {
		put(uint64(len(ps)))
		for _, p := range ps {
			put(math.Float64bits(p.Position.X))
			put(math.Float64bits(p.Position.Y))
			put(math.Float64bits(p.Angle))
		}
	}
	n := s.Len()
	for i := range n {
		f := &s.frames[i]
		put(uint64(f.Step))
		poses(f.Agents)
		poses(f.Predators)
	}
	return h.Sum64()
}
