// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package wgpu

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/grade/backend"
	"github.com/gogpu/grade/cache"
	"github.com/gogpu/grade/frame"
)

// planeBuffer is one frame plane resident in a storage buffer. The
// buffer object is cached by plane identity; its contents are
// refreshed on every acquire since capture recycles the backing
// memory frame to frame.
type planeBuffer struct {
	buf    hal.Buffer
	kind   frame.PlaneKind
	width  int
	height int
	size   uint64
}

func (v *planeBuffer) Kind() frame.PlaneKind { return v.kind }
func (v *planeBuffer) Width() int            { return v.width }
func (v *planeBuffer) Height() int           { return v.height }

// Release is a no-op; the binder's cache owns the buffer and destroys
// it on eviction or flush.
func (v *planeBuffer) Release() {}

// planeBinder maps frame planes onto cached storage buffers. The DMA
// upload in AcquireView is the only data movement between the capture
// buffer and the GPU.
type planeBinder struct {
	device hal.Device
	queue  hal.Queue
	views  *cache.Views[*planeBuffer]
}

func newPlaneBinder(device hal.Device, queue hal.Queue) *planeBinder {
	b := &planeBinder{device: device, queue: queue}
	b.views = cache.NewViews(0, func(v *planeBuffer) {
		device.DestroyBuffer(v.buf)
	})
	return b
}

func (b *planeBinder) AcquireView(p frame.Plane, kind frame.PlaneKind) (backend.TextureView, error) {
	if len(p.Data) == 0 || p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("wgpu: empty plane %dx%d", p.Width, p.Height)
	}
	v, err := b.views.GetOrCreate(bufferKey(p, kind), func() (*planeBuffer, error) {
		buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "grade_plane", Size: uint64(len(p.Data)),
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu: create plane buffer: %w", err)
		}
		return &planeBuffer{
			buf: buf, kind: kind,
			width: p.Width, height: p.Height,
			size: uint64(len(p.Data)),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	b.queue.WriteBuffer(v.buf, 0, p.Data)
	return v, nil
}

func (b *planeBinder) FlushViews() {
	b.views.Flush()
}

// bufferKey derives the cache identity of a plane binding from the
// backing memory address, the bind kind and the byte size. Capture
// subsystems recycle a small pool of buffers, so addresses are stable
// keys; folding in the size keeps an entry from outliving a geometry
// change at the same address.
func bufferKey(p frame.Plane, kind frame.PlaneKind) uint64 {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(p.Data)))
	return uint64(addr) ^ uint64(kind+1)<<56 ^ uint64(len(p.Data))<<32
}
