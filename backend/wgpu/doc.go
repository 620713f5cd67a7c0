// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wgpu implements the grading backend on gogpu/wgpu compute
// pipelines. Frame planes and the LUT live in storage buffers; the two
// color programs are WGSL compute shaders compiled to SPIR-V with naga
// and dispatched one workgroup per 8x8 pixel tile.
//
// The backend can open its own device (Vulkan, first discrete or
// integrated adapter) or share one provided by the host application.
// If no device can be opened the registry falls back to the software
// backend.
package wgpu
