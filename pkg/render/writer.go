package render

import (
	"bufio"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	golog "github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers = 2
	pollInterval   = 5 * time.Millisecond
)

// Writer exports every Every-th frame of a store as a PNG file while the
// simulation is still producing frames.
type Writer struct {
	Dir       string
	Every     int
	Workers   int
	WorldSize float64
	Size      int
	Style     Style
	Logger    golog.Logger

	pool sync.Pool
}

// NewWriter writes size × size images of a world of edge worldSize into dir.
func NewWriter(dir string, every, size int, worldSize float64) *Writer {
	return &Writer{
		Dir:       dir,
		Every:     max(every, 1),
		Workers:   defaultWorkers,
		WorldSize: worldSize,
		Size:      size,
		Style:     DefaultStyle(),
		Logger:    golog.DiscardLogger,
	}
}

// FileName returns the name of the image of a given step.
func FileName(step int) string {
	return fmt.Sprintf("frame_%05d.png", step)
}

// Follow exports frames as they are published. It returns once every frame
// has been handled or, after done is closed, once the frames published so far
// have been written. It reports how many files were written.
func (w *Writer) Follow(ctx context.Context, store *simulation.FrameStore, done <-chan struct{}) (int, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create frame directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(w.Workers, 1))

	written := 0
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

loop:
	for i := 0; i < store.Cap(); i += w.Every {
		for store.Len() <= i {
			select {
			case <-ctx.Done():
				break loop
			case <-done:
				if store.Len() <= i {
					break loop
				}
			case <-ticker.C:
			}
		}
		f, err := store.Get(i)
		if err != nil {
			return written, err
		}
		g.Go(func() error {
			return w.writeFrame(f)
		})
		written++
	}

	if err := g.Wait(); err != nil {
		return written, err
	}
	if err := ctx.Err(); err != nil {
		return written, err
	}
	w.Logger.Infof("wrote %d frames to %s", written, w.Dir)
	return written, nil
}

// WritePublished exports the frames already in the store.
func (w *Writer) WritePublished(ctx context.Context, store *simulation.FrameStore) (int, error) {
	done := make(chan struct{})
	close(done)
	return w.Follow(ctx, store, done)
}

func (w *Writer) writeFrame(f simulation.Frame) error {
	r, _ := w.pool.Get().(*Rasterizer)
	if r == nil {
		r = NewRasterizer(w.WorldSize, w.Size, w.Style)
	}
	defer w.pool.Put(r)

	img := r.Render(f)

	path := filepath.Join(w.Dir, FileName(f.Step))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	bw := bufio.NewWriter(file)
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(bw, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	w.Logger.Debugf("wrote %s", path)
	return nil
}
