// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package backend defines the pluggable execution backends of the
// grading pipeline: the texture bridge, the color kernel, and the LUT
// texture builder. Two implementations exist: a WebGPU backend
// (backend/wgpu) and a CPU software backend in this package that also
// serves as the reference for tests.
package backend

import (
	"errors"

	"github.com/gogpu/grade/cubelut"
	"github.com/gogpu/grade/frame"
)

// Backend name constants.
const (
	// NameSoftware is the CPU-based reference backend.
	NameSoftware = "software"
	// NameWGPU is the GPU backend built on gogpu/wgpu.
	NameWGPU = "wgpu"
)

// Common backend errors.
var (
	// ErrNotAvailable is returned when a requested backend is not registered.
	ErrNotAvailable = errors.New("backend: not available")

	// ErrClosed is returned when operating on a closed backend.
	ErrClosed = errors.New("backend: closed")
)

// TextureView is a GPU-readable view aliasing one frame plane. Views
// never copy pixel memory; they are valid only for the pass that
// acquired them unless retained through the binder's cache.
type TextureView interface {
	Kind() frame.PlaneKind
	Width() int
	Height() int

	// Release drops the view. The underlying plane memory stays owned
	// by the capture subsystem.
	Release()
}

// LUTTexture is a volumetric lookup-table texture. The store owns
// exactly one published LUTTexture at any time; render code treats it
// as read-only.
type LUTTexture interface {
	// Dimension is the cube edge length N of the N³ table.
	Dimension() int
	Release()
}

// Drawable is the destination surface for one presented frame. The
// pipeline is its sole writer during the pass.
type Drawable interface {
	Width() int
	Height() int

	// Present schedules the drawable for display. done is invoked once
	// the presentation is confirmed, possibly from another goroutine;
	// it must be safe to call exactly once.
	Present(done func())
}

// PixelTarget is a Drawable whose packed RGBA storage is reachable from
// the CPU. Kernels that resolve on the GPU and read back require one.
type PixelTarget interface {
	Drawable

	// Pix returns the packed RGBA pixel storage, row-major, 4 bytes per
	// pixel.
	Pix() []byte
}

// Display hands out drawables in step with the display refresh.
type Display interface {
	AcquireDrawable(width, height int) (Drawable, error)
}

// TextureBinder binds frame plane memory as texture views. A binder
// keeps a cache of views keyed by plane identity; FlushViews empties it
// when the incoming format changes, since cached views for a different
// geometry are invalid.
type TextureBinder interface {
	AcquireView(p frame.Plane, kind frame.PlaneKind) (TextureView, error)
	FlushViews()
}

// DispatchOptions carries per-dispatch kernel switches.
type DispatchOptions struct {
	// LogPreview enables the display-only tone lift after LUT sampling.
	LogPreview bool
}

// Kernel executes one of the two color programs, selected by the
// layout's plane count. Passing a view slice whose length does not
// match the layout is a programming error and panics: classification
// upstream already resolved the layout.
type Kernel interface {
	Dispatch(dst Drawable, layout frame.Layout, planes []TextureView, lut LUTTexture, opts DispatchOptions) error
}

// Backend bundles the device-specific pieces of the pipeline.
type Backend interface {
	Name() string

	Binder() TextureBinder
	Kernel() Kernel

	// BuildLUT uploads the table as an N×N×N RGBA float32 volumetric
	// texture. The caller publishes the result atomically.
	BuildLUT(t cubelut.Table) (LUTTexture, error)

	// Close releases all backend resources.
	Close() error
}
