// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// DeviceProvider is an alias for gpucontext.DeviceProvider, the
// integration point for host applications that already own a GPU
// device. The backend receives the device from the host rather than
// opening a second one, so the grading pass shares resources with the
// host's own rendering.
type DeviceProvider = gpucontext.DeviceProvider

// NewWithProvider builds a backend on the host's device. The provider
// must also expose the underlying HAL types, as gogpu contexts do.
// Close leaves the device alive.
func NewWithProvider(provider DeviceProvider) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	return NewWithDevice(device, queue)
}
