// Command gradedemo runs the grading pipeline against a synthetic
// capture stream and reports scheduler statistics. With -output it
// also saves the last graded frame as a PNG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gogpu/grade"
	"github.com/gogpu/grade/backend"
	"github.com/gogpu/grade/capture"
	"github.com/gogpu/grade/frame"

	// Register the GPU backend; selection falls back to software when
	// no adapter opens.
	_ "github.com/gogpu/grade/backend/wgpu"
)

func main() {
	var (
		width       = flag.Int("width", 1280, "frame width")
		height      = flag.Int("height", 720, "frame height")
		formatName  = flag.String("format", "nv12-video", "pixel format: bgra8, p210, nv12-video, nv12-full")
		cycle       = flag.Int("cycle", 0, "rotate through all formats every N frames (0 = fixed format)")
		duration    = flag.Duration("duration", 3*time.Second, "how long to run")
		interval    = flag.Duration("interval", 0, "frame pacing (0 = as fast as possible)")
		backendName = flag.String("backend", "", "force a backend: wgpu or software (default: auto)")
		lutPath     = flag.String("lut", "", "load a .cube LUT")
		logPreview  = flag.Bool("log-preview", false, "enable the log-footage tone lift")
		statePath   = flag.String("state", "", "persist session state to this TOML file")
		output      = flag.String("output", "", "save the last graded frame as PNG")
		verbose     = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	grade.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	format, err := parseFormat(*formatName)
	if err != nil {
		log.Fatal(err)
	}

	display := &lastFrameDisplay{}
	opts := []grade.Option{
		grade.WithDisplay(display),
		grade.WithLogPreview(*logPreview),
	}
	if *backendName != "" {
		opts = append(opts, grade.WithBackend(*backendName))
	}
	if *statePath != "" {
		opts = append(opts, grade.WithStatePath(*statePath))
	}
	if *lutPath != "" {
		opts = append(opts, grade.WithHotReload())
	}

	p, err := grade.New(opts...)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer p.Close()
	log.Printf("Backend: %s", p.BackendName())

	if *lutPath != "" {
		if err := p.LoadLUT(*lutPath); err != nil {
			log.Fatalf("Failed to load LUT: %v", err)
		}
		log.Printf("LUT: %s", p.LUTPath())
	}

	src, err := capture.NewSynthetic(capture.Config{
		Width: *width, Height: *height,
		Format: format, Interval: *interval, CycleEvery: *cycle,
	})
	if err != nil {
		log.Fatalf("Failed to build source: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	if err := src.Run(ctx, p.Publish); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Fatalf("Capture failed: %v", err)
	}

	// Let in-flight frames drain before reading the counters.
	time.Sleep(100 * time.Millisecond)
	s := p.Stats()
	log.Printf("Submitted %d, presented %d, superseded %d, dropped %d",
		s.Submitted, s.Presented, s.Superseded, s.Dropped)

	if *output != "" {
		if err := savePNG(*output, display.Last()); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Last frame saved to %s", *output)
	}
}

func parseFormat(name string) (frame.Format, error) {
	switch name {
	case "bgra8":
		return frame.FormatBGRA8, nil
	case "p210":
		return frame.FormatP210, nil
	case "nv12-video":
		return frame.FormatNV12Video, nil
	case "nv12-full":
		return frame.FormatNV12Full, nil
	default:
		return frame.FormatUnknown, fmt.Errorf("unknown format %q", name)
	}
}

// lastFrameDisplay keeps the most recently presented drawable so the
// demo can save it.
type lastFrameDisplay struct {
	mu   sync.Mutex
	last *backend.ImageDrawable
}

func (d *lastFrameDisplay) AcquireDrawable(w, h int) (backend.Drawable, error) {
	return &recordingDrawable{ImageDrawable: backend.NewImageDrawable(w, h), display: d}, nil
}

func (d *lastFrameDisplay) Last() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	return d.last.Image()
}

type recordingDrawable struct {
	*backend.ImageDrawable
	display *lastFrameDisplay
}

func (r *recordingDrawable) Present(done func()) {
	r.display.mu.Lock()
	r.display.last = r.ImageDrawable
	r.display.mu.Unlock()
	r.ImageDrawable.Present(done)
}

func savePNG(path string, img *image.RGBA) error {
	if img == nil {
		return fmt.Errorf("no frame was presented")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
