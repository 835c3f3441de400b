package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/render"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/runner"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	golog "github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configFile     = flag.String("config", "", "JSON, YAML or TOML configuration file (defaults when empty)")
		framesDir      = flag.String("frames", "", "directory receiving PNG frames, one sub-directory per run")
		every          = flag.Int("every", 10, "export one frame out of every N")
		imageSize      = flag.Int("size", 1024, "edge length of exported images in pixels")
		populationFile = flag.String("population", "result.txt", "file receiving the agent count of every step (empty to skip)")
		quiet          = flag.Bool("quiet", false, "hide the progress bar")
		verbose        = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := golog.InfoLevel
	if *verbose {
		level = golog.DebugLevel
	}
	logger := golog.New(level, os.Stderr)

	cfg := simulation.DefaultConfig()
	if *configFile != "" {
		loaded, err := simulation.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("💥 %v", err)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger, options{
		framesDir:      *framesDir,
		every:          *every,
		imageSize:      *imageSize,
		populationFile: *populationFile,
		quiet:          *quiet,
	}); err != nil {
		log.Fatalf("💥 %v", err)
	}
}

type options struct {
	framesDir      string
	every          int
	imageSize      int
	populationFile string
	quiet          bool
}

func run(ctx context.Context, cfg *simulation.Config, logger golog.Logger, opts options) error {
	sim, err := simulation.New(cfg, simulation.WithLogger(logger))
	if err != nil {
		return err
	}

	r, err := runner.Start(ctx, sim, logger)
	if err != nil {
		return err
	}
	shutdown := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.Stop(stopCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}
	defer shutdown()

	start := time.Now()
	if err := r.RunAsync(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if opts.framesDir != "" {
		dir := filepath.Join(opts.framesDir, sim.RunID().String())
		w := render.NewWriter(dir, opts.every, opts.imageSize, cfg.WorldSize)
		w.Logger = logger
		g.Go(func() error {
			_, err := w.Follow(gctx, sim.Frames(), r.Done())
			return err
		})
	}

	g.Go(func() error {
		return watch(gctx, r, cfg.Steps, opts.quiet)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		// interrupted: let the driver stop at a tick boundary before reading frames
		shutdown()
		logger.Warnf("run %s interrupted after %d of %d steps", sim.RunID(), sim.Frames().Len(), cfg.Steps)
	} else if err := r.Err(); err != nil {
		return err
	}
	if sim.Frames().Len() == 0 {
		return r.Err()
	}

	if opts.populationFile != "" {
		if err := writePopulation(opts.populationFile, sim.Frames()); err != nil {
			return err
		}
	}

	frames := sim.Frames()
	last, err := frames.Get(frames.Len() - 1)
	if err != nil {
		return err
	}
	fmt.Printf("run       %s\n", sim.RunID())
	fmt.Printf("steps     %d/%d\n", frames.Len(), cfg.Steps)
	fmt.Printf("agents    %d -> %d\n", cfg.AgentCount, len(last.Agents))
	fmt.Printf("predators %d\n", len(last.Predators))
	fmt.Printf("digest    %016x\n", frames.Digest())
	fmt.Printf("elapsed   %s\n", elapsed.Round(time.Millisecond))
	return nil
}

// watch mirrors the run progress on a terminal bar until the run is over.
func watch(ctx context.Context, r *runner.Runner, steps int, quiet bool) error {
	var bar *pb.ProgressBar
	if !quiet {
		bar = pb.New(steps)
		bar.SetWidth(80)
		bar.Start()
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-r.Done():
			if bar != nil {
				bar.Set(int(r.Progress() * float64(steps)))
				bar.Finish()
			}
			return nil
		case <-ctx.Done():
			if bar != nil {
				bar.Finish()
			}
			return ctx.Err()
		case <-ticker.C:
			if bar != nil {
				bar.Set(int(r.Progress() * float64(steps)))
			}
		}
	}
}

func writePopulation(path string, frames *simulation.FrameStore) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create population file: %w", err)
	}
	if err := frames.WritePopulation(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write population file: %w", err)
	}
	return f.Close()
}
