package grade

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/grade/backend"
	"github.com/gogpu/grade/frame"
	"github.com/gogpu/grade/present"
)

// Pipeline is the top-level object tying capture input to a graded
// display output: a backend, a LUT store and a presenter, plus
// optional session persistence and LUT hot reload.
//
// Frames enter through Publish, typically straight from a capture
// callback. Publish never blocks.
type Pipeline struct {
	backend     backend.Backend
	ownsBackend bool
	store       *Store
	presenter   *present.Presenter
	watcher     *lutWatcher
	log         *slog.Logger

	statePath string

	mu         sync.Mutex
	logPreview bool
	closed     bool
}

// New builds a pipeline. With no options it picks the best available
// backend, publishes the identity LUT and presents to an in-memory
// display.
func New(opts ...Option) (*Pipeline, error) {
	var o pipelineOptions
	for _, opt := range opts {
		opt(&o)
	}
	log := Logger()

	b := o.backendInstance
	ownsBackend := false
	var err error
	switch {
	case b != nil:
	case o.backendName != "":
		b, err = backend.New(o.backendName)
		ownsBackend = true
	default:
		b, err = backend.Default()
		ownsBackend = true
	}
	if err != nil {
		return nil, fmt.Errorf("grade: select backend: %w", err)
	}
	log.Info("grade: backend selected", slog.String("name", b.Name()))

	display := o.display
	if display == nil {
		display = backend.ImageDisplay{}
	}

	p := &Pipeline{
		backend:     b,
		ownsBackend: ownsBackend,
		log:         log,
		statePath:   o.statePath,
	}

	p.store, err = NewStore(b, log)
	if err != nil {
		p.closePartial()
		return nil, err
	}

	p.presenter, err = present.New(present.Config{
		Backend: b,
		Display: display,
		LUT:     p.store.Current,
		Depth:   o.depth,
		Logger:  log,
	})
	if err != nil {
		p.closePartial()
		return nil, err
	}

	if o.hotReload {
		p.watcher, err = newLUTWatcher(log, func(path string) {
			if err := p.store.Load(path); err != nil {
				log.Warn("grade: LUT reload failed, keeping active LUT",
					slog.String("path", path), slog.Any("error", err))
			}
		})
		if err != nil {
			p.closePartial()
			return nil, err
		}
	}

	p.logPreview = o.logPreview
	if o.statePath != "" {
		p.restoreState(o.logPreviewSet)
	}
	p.presenter.SetLogPreview(p.logPreview)

	p.presenter.Start()
	return p, nil
}

// restoreState applies the persisted session. A stale LUT path is a
// warning, not a failure: the identity LUT stays published.
func (p *Pipeline) restoreState(logPreviewOverridden bool) {
	st, err := LoadState(p.statePath)
	if err != nil {
		p.log.Warn("grade: state restore failed", slog.Any("error", err))
		return
	}
	if !logPreviewOverridden {
		p.logPreview = st.LogPreview
	}
	if st.LUTPath == "" {
		return
	}
	if err := p.store.Load(st.LUTPath); err != nil {
		p.log.Warn("grade: persisted LUT unavailable",
			slog.String("path", st.LUTPath), slog.Any("error", err))
		return
	}
	if p.watcher != nil {
		if err := p.watcher.Watch(st.LUTPath); err != nil {
			p.log.Warn("grade: LUT watch failed", slog.Any("error", err))
		}
	}
}

// Publish hands one captured frame to the presenter. Never blocks;
// when rendering lags, older frames are superseded.
func (p *Pipeline) Publish(d *frame.Descriptor) {
	p.presenter.Submit(d)
}

// LoadLUT parses, builds and publishes the .cube file at path. On
// error the previous LUT stays active.
func (p *Pipeline) LoadLUT(path string) error {
	if err := p.store.Load(path); err != nil {
		return err
	}
	if p.watcher != nil {
		if err := p.watcher.Watch(path); err != nil {
			p.log.Warn("grade: LUT watch failed", slog.Any("error", err))
		}
	}
	p.saveState()
	return nil
}

// ClearLUT reverts to the identity LUT.
func (p *Pipeline) ClearLUT() error {
	if err := p.store.Clear(); err != nil {
		return err
	}
	if p.watcher != nil {
		p.watcher.Unwatch()
	}
	p.saveState()
	return nil
}

// LUTPath returns the source path of the active LUT, or the empty
// string for the identity LUT.
func (p *Pipeline) LUTPath() string {
	return p.store.CurrentPath()
}

// SetLogPreview toggles the display-only tone lift.
func (p *Pipeline) SetLogPreview(on bool) {
	p.mu.Lock()
	p.logPreview = on
	p.mu.Unlock()
	p.presenter.SetLogPreview(on)
	p.saveState()
}

// LogPreview reports whether the tone lift is enabled.
func (p *Pipeline) LogPreview() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logPreview
}

// BackendName returns the name of the backend in use.
func (p *Pipeline) BackendName() string { return p.backend.Name() }

// Stats returns a snapshot of the presenter counters.
func (p *Pipeline) Stats() present.Stats { return p.presenter.Stats() }

func (p *Pipeline) saveState() {
	if p.statePath == "" {
		return
	}
	p.mu.Lock()
	st := State{LUTPath: p.store.CurrentPath(), LogPreview: p.logPreview}
	p.mu.Unlock()
	if err := SaveState(p.statePath, st); err != nil {
		p.log.Warn("grade: state save failed", slog.Any("error", err))
	}
}

// Close stops the presenter and releases every owned resource.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	if p.presenter != nil {
		errs = append(errs, p.presenter.Close())
	}
	errs = append(errs, p.closeShared())
	return errors.Join(errs...)
}

// closePartial tears down a half-built pipeline during New.
func (p *Pipeline) closePartial() {
	_ = p.closeShared()
}

func (p *Pipeline) closeShared() error {
	var errs []error
	if p.watcher != nil {
		errs = append(errs, p.watcher.Close())
		p.watcher = nil
	}
	if p.store != nil {
		errs = append(errs, p.store.Close())
		p.store = nil
	}
	if p.ownsBackend && p.backend != nil {
		errs = append(errs, p.backend.Close())
	}
	return errors.Join(errs...)
}
