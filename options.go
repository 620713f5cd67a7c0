package grade

import (
	"github.com/gogpu/grade/backend"
)

// Option configures a Pipeline during creation.
//
// Example:
//
//	// Default backend selection, in-memory display
//	p, err := grade.New()
//
//	// Explicit backend and a persisted session
//	p, err := grade.New(
//	    grade.WithBackend(backend.NameSoftware),
//	    grade.WithStatePath("~/.config/grade/state.toml"),
//	)
type Option func(*pipelineOptions)

// pipelineOptions holds optional configuration for Pipeline creation.
type pipelineOptions struct {
	backendName     string
	backendInstance backend.Backend
	display         backend.Display
	depth           int
	statePath       string
	hotReload       bool
	logPreview      bool
	logPreviewSet   bool
}

// WithBackend selects a registered backend by name. The default is the
// registry's priority order: wgpu when available, software otherwise.
func WithBackend(name string) Option {
	return func(o *pipelineOptions) {
		o.backendName = name
	}
}

// WithBackendInstance injects an already constructed backend. The
// pipeline does not close it; the caller keeps ownership. Use this to
// share a GPU device with a host application.
func WithBackendInstance(b backend.Backend) Option {
	return func(o *pipelineOptions) {
		o.backendInstance = b
	}
}

// WithDisplay sets the presentation surface. The default is an
// in-memory display suitable for tests and headless runs.
func WithDisplay(d backend.Display) Option {
	return func(o *pipelineOptions) {
		o.display = d
	}
}

// WithDepth caps the number of frames in flight between kernel
// dispatch and display confirmation. Zero keeps the default.
func WithDepth(n int) Option {
	return func(o *pipelineOptions) {
		o.depth = n
	}
}

// WithStatePath enables session persistence: the active LUT path and
// log-preview switch are saved to the TOML file at path and restored
// on the next construction.
func WithStatePath(path string) Option {
	return func(o *pipelineOptions) {
		o.statePath = path
	}
}

// WithHotReload watches the active LUT file and republishes it when it
// changes on disk.
func WithHotReload() Option {
	return func(o *pipelineOptions) {
		o.hotReload = true
	}
}

// WithLogPreview sets the initial log-preview state, overriding any
// persisted value.
func WithLogPreview(on bool) Option {
	return func(o *pipelineOptions) {
		o.logPreview = on
		o.logPreviewSet = true
	}
}
