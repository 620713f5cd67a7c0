// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/grade/backend"
	"github.com/gogpu/grade/cubelut"
)

// init registers the GPU backend. Construction fails when no adapter
// can be opened, letting the registry fall back to software.
func init() {
	backend.Register(backend.NameWGPU, func() (backend.Backend, error) {
		return New()
	})
}

// Backend runs the color programs as wgpu compute dispatches.
type Backend struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	binder *planeBinder
	kernel *kernel

	adapterName    string
	externalDevice bool
	closed         bool
}

var _ backend.Backend = (*Backend)(nil)

// New opens its own device on the first usable Vulkan adapter and
// builds the compute pipelines.
func New() (*Backend, error) {
	instance, device, queue, name, err := openDevice()
	if err != nil {
		return nil, err
	}
	b, err := newBackend(device, queue, false)
	if err != nil {
		device.Destroy()
		instance.Destroy()
		return nil, err
	}
	b.instance = instance
	b.adapterName = name
	return b, nil
}

// NewWithDevice builds a backend on a device owned by the host
// application. Close leaves the device alive.
func NewWithDevice(device hal.Device, queue hal.Queue) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("wgpu: device and queue are required")
	}
	return newBackend(device, queue, true)
}

func newBackend(device hal.Device, queue hal.Queue, external bool) (*Backend, error) {
	k, err := newKernel(device, queue)
	if err != nil {
		return nil, err
	}
	return &Backend{
		device:         device,
		queue:          queue,
		binder:         newPlaneBinder(device, queue),
		kernel:         k,
		externalDevice: external,
	}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.NameWGPU }

// AdapterName returns the name of the adapter the backend opened, or
// the empty string when running on a host-provided device.
func (b *Backend) AdapterName() string { return b.adapterName }

// Binder returns the texture binder.
func (b *Backend) Binder() backend.TextureBinder { return b.binder }

// Kernel returns the color kernel.
func (b *Backend) Kernel() backend.Kernel { return b.kernel }

// BuildLUT uploads the table as an N³ RGBA float32 volume in a storage
// buffer, red index fastest, matching the shaders' lut binding.
func (b *Backend) BuildLUT(t cubelut.Table) (backend.LUTTexture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, backend.ErrClosed
	}
	if t.Size < 2 {
		return nil, fmt.Errorf("wgpu: LUT dimension %d below minimum 2", t.Size)
	}
	if want := t.Size * t.Size * t.Size * 3; len(t.Data) != want {
		return nil, fmt.Errorf("wgpu: LUT has %d floats, want %d", len(t.Data), want)
	}

	data := float32Bytes(t.RGBA())
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "grade_lut", Size: uint64(len(data)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create LUT buffer: %w", err)
	}
	b.queue.WriteBuffer(buf, 0, data)
	return &lutTexture{device: b.device, buf: buf, size: uint64(len(data)), dim: t.Size}, nil
}

// Close releases pipelines, cached plane buffers and, for self-opened
// devices, the device and instance.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.binder.FlushViews()
	b.kernel.destroy()
	if !b.externalDevice {
		if b.device != nil {
			b.device.Destroy()
			b.device = nil
		}
		if b.instance != nil {
			b.instance.Destroy()
			b.instance = nil
		}
	}
	return nil
}

// lutTexture is a LUT volume resident in a storage buffer.
type lutTexture struct {
	device  hal.Device
	buf     hal.Buffer
	size    uint64
	dim     int
	release sync.Once
}

func (l *lutTexture) Dimension() int { return l.dim }

func (l *lutTexture) Release() {
	l.release.Do(func() {
		l.device.DestroyBuffer(l.buf)
	})
}
