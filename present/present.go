// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package present schedules captured frames onto a display with
// latest-frame-wins semantics. Capture outruns rendering on purpose:
// the presenter keeps a one-slot inbox that new frames overwrite, and
// a bounded in-flight counter that caps how many frames sit between
// kernel dispatch and display confirmation.
package present

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/grade/backend"
	"github.com/gogpu/grade/frame"
)

// DefaultDepth is the default in-flight cap. Three frames absorb
// display jitter without adding visible latency.
const DefaultDepth = 3

// Stats is a snapshot of presenter counters.
type Stats struct {
	// Submitted counts frames handed to Submit.
	Submitted uint64
	// Presented counts frames whose presentation was confirmed.
	Presented uint64
	// Superseded counts frames overwritten in the inbox before the
	// render loop picked them up.
	Superseded uint64
	// Dropped counts frames discarded after pickup: classification
	// failures, bind failures, dispatch failures.
	Dropped uint64
	// InFlight is the number of frames currently between dispatch and
	// display confirmation.
	InFlight int
}

// Config configures a Presenter.
type Config struct {
	// Backend supplies the binder, kernel and LUT textures.
	Backend backend.Backend
	// Display hands out drawables.
	Display backend.Display
	// LUT returns the currently published LUT texture. Called once per
	// frame on the render loop; the returned texture must stay valid
	// for the duration of the dispatch.
	LUT func() backend.LUTTexture
	// Depth caps in-flight frames. Zero means DefaultDepth.
	Depth int
	// Logger receives per-frame warnings. Nil disables logging.
	Logger *slog.Logger
}

// Presenter runs the render loop. Frames enter through Submit from the
// capture goroutine; the loop classifies, binds, dispatches and
// presents them one at a time, always preferring the newest frame.
type Presenter struct {
	backend backend.Backend
	display backend.Display
	lut     func() backend.LUTTexture
	depth   int32
	log     *slog.Logger

	mu       sync.Mutex
	inboxCnd *sync.Cond
	slotCnd  *sync.Cond
	inbox    *frame.Descriptor
	closed   bool
	started  bool

	inFlight atomic.Int32

	logPreview atomic.Bool

	submitted  atomic.Uint64
	presented  atomic.Uint64
	superseded atomic.Uint64
	dropped    atomic.Uint64

	// lastFormat memoizes the classified format; a change flushes the
	// binder's view cache before binding the new geometry.
	lastFormat frame.Format
	haveFormat bool

	loopDone chan struct{}
}

// New creates a presenter. Backend, Display and LUT are required.
func New(cfg Config) (*Presenter, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("present: backend is required")
	}
	if cfg.Display == nil {
		return nil, fmt.Errorf("present: display is required")
	}
	if cfg.LUT == nil {
		return nil, fmt.Errorf("present: LUT provider is required")
	}
	depth := cfg.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}
	log := cfg.Logger
	if log == nil {
		log = nopLogger()
	}
	p := &Presenter{
		backend:  cfg.Backend,
		display:  cfg.Display,
		lut:      cfg.LUT,
		depth:    int32(depth),
		log:      log,
		loopDone: make(chan struct{}),
	}
	p.inboxCnd = sync.NewCond(&p.mu)
	p.slotCnd = sync.NewCond(&p.mu)
	return p, nil
}

// Start launches the render loop. Starting twice is a no-op.
func (p *Presenter) Start() {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()
	go p.run()
}

// Submit hands a frame to the presenter. It never blocks: if the loop
// has not consumed the previous frame, the new one replaces it and the
// old one counts as superseded.
func (p *Presenter) Submit(d *frame.Descriptor) {
	p.submitted.Add(1)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.dropped.Add(1)
		return
	}
	if p.inbox != nil {
		p.superseded.Add(1)
	}
	p.inbox = d
	p.inboxCnd.Signal()
	p.mu.Unlock()
}

// SetLogPreview toggles the display-only tone lift for subsequent
// frames. Safe to call from any goroutine.
func (p *Presenter) SetLogPreview(on bool) {
	p.logPreview.Store(on)
}

// Stats returns a snapshot of the presenter counters.
func (p *Presenter) Stats() Stats {
	return Stats{
		Submitted:  p.submitted.Load(),
		Presented:  p.presented.Load(),
		Superseded: p.superseded.Load(),
		Dropped:    p.dropped.Load(),
		InFlight:   int(p.inFlight.Load()),
	}
}

// Close stops the render loop and waits for it to exit. In-flight
// frames complete; the inbox frame, if any, is discarded.
func (p *Presenter) Close() error {
	p.mu.Lock()
	if p.closed {
		started := p.started
		p.mu.Unlock()
		if started {
			<-p.loopDone
		}
		return nil
	}
	p.closed = true
	started := p.started
	if p.inbox != nil {
		p.inbox = nil
		p.dropped.Add(1)
	}
	p.inboxCnd.Broadcast()
	p.slotCnd.Broadcast()
	p.mu.Unlock()
	if started {
		<-p.loopDone
	}
	return nil
}

func (p *Presenter) run() {
	defer close(p.loopDone)
	for {
		d := p.nextFrame()
		if d == nil {
			return
		}
		if !p.acquireSlot() {
			p.dropped.Add(1)
			return
		}
		// A newer frame may have arrived while waiting for a slot.
		if newer := p.takeInbox(); newer != nil {
			p.superseded.Add(1)
			d = newer
		}
		p.process(d)
	}
}

// nextFrame blocks until a frame is available or the presenter closes.
func (p *Presenter) nextFrame() *frame.Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.inbox == nil && !p.closed {
		p.inboxCnd.Wait()
	}
	if p.closed {
		return nil
	}
	d := p.inbox
	p.inbox = nil
	return d
}

// takeInbox grabs the pending frame without blocking.
func (p *Presenter) takeInbox() *frame.Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.inbox
	p.inbox = nil
	return d
}

// acquireSlot claims one in-flight slot, blocking while the counter is
// at depth. Returns false when the presenter closes. The CAS loop
// keeps the counter within [0, depth] against concurrent releases
// from presentation callbacks.
func (p *Presenter) acquireSlot() bool {
	for {
		n := p.inFlight.Load()
		if n < p.depth {
			if p.inFlight.CompareAndSwap(n, n+1) {
				return true
			}
			continue
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return false
		}
		if p.inFlight.Load() >= p.depth {
			p.slotCnd.Wait()
		}
		p.mu.Unlock()
	}
}

// releaseSlot returns one in-flight slot and wakes a blocked acquire.
func (p *Presenter) releaseSlot() {
	p.inFlight.Add(-1)
	p.mu.Lock()
	p.slotCnd.Signal()
	p.mu.Unlock()
}

// process renders one frame. Every failure drops the frame, releases
// the slot and leaves the loop running; a malformed frame must never
// take the pipeline down.
func (p *Presenter) process(d *frame.Descriptor) {
	layout, err := frame.Classify(d)
	if err != nil {
		p.drop("classify", d, err)
		return
	}

	// A format change invalidates every cached view.
	if p.haveFormat && layout.Format != p.lastFormat {
		p.backend.Binder().FlushViews()
	}
	p.lastFormat = layout.Format
	p.haveFormat = true

	views := make([]backend.TextureView, len(layout.Planes))
	for i, kind := range layout.Planes {
		v, err := p.backend.Binder().AcquireView(d.Planes[i], kind)
		if err != nil {
			p.drop("bind", d, err)
			return
		}
		views[i] = v
	}

	lut := p.lut()
	if lut == nil {
		p.drop("lut", d, fmt.Errorf("present: no LUT published"))
		return
	}

	drawable, err := p.display.AcquireDrawable(d.Width, d.Height)
	if err != nil {
		p.drop("acquire drawable", d, err)
		return
	}

	opts := backend.DispatchOptions{LogPreview: p.logPreview.Load()}
	if err := p.backend.Kernel().Dispatch(drawable, layout, views, lut, opts); err != nil {
		p.drop("dispatch", d, err)
		return
	}

	drawable.Present(func() {
		p.presented.Add(1)
		p.releaseSlot()
	})
}

func (p *Presenter) drop(stage string, d *frame.Descriptor, err error) {
	p.dropped.Add(1)
	p.releaseSlot()
	p.log.Warn("present: frame dropped",
		slog.String("stage", stage),
		slog.Uint64("seq", d.Seq),
		slog.String("format", d.Format.String()),
		slog.Any("error", err))
}

// nopHandler discards all records; Enabled returns false so disabled
// logging skips formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func nopLogger() *slog.Logger { return slog.New(nopHandler{}) }
