// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package frame defines the descriptors for captured video frames and the
// classifier that resolves them to one of the supported plane layouts.
//
// The supported set is closed: a packed 4-channel 8-bit layout, a
// two-plane 10-bit 4:2:2 layout, and two two-plane 8-bit 4:2:0 layouts
// that differ only in the color matrix they require. Everything else is
// rejected by Classify and dropped by the pipeline.
package frame

// Format tags an incoming frame's pixel layout as reported by the
// capture subsystem.
type Format uint8

const (
	// FormatUnknown is the zero value; never supported.
	FormatUnknown Format = iota

	// FormatBGRA8 is a single packed plane of 8-bit BGRA pixels.
	FormatBGRA8

	// FormatP210 is two-plane 10-bit 4:2:2: a 16-bit-per-sample luma
	// plane and an interleaved 16-bit CbCr plane at half width.
	FormatP210

	// FormatNV12Video is two-plane 8-bit 4:2:0 with video-range
	// BT.709 encoding.
	FormatNV12Video

	// FormatNV12Full is two-plane 8-bit 4:2:0 with full-range
	// BT.601 encoding.
	FormatNV12Full
)

// String returns the tag name for logging.
func (f Format) String() string {
	switch f {
	case FormatBGRA8:
		return "bgra8"
	case FormatP210:
		return "p210"
	case FormatNV12Video:
		return "nv12-video"
	case FormatNV12Full:
		return "nv12-full"
	default:
		return "unknown"
	}
}

// Plane is one memory region of a frame. Data aliases capture-owned
// memory and must not be written or retained past the processing pass.
type Plane struct {
	Data   []byte
	Width  int
	Height int
}

// Descriptor describes one captured frame. It is ephemeral: the pipeline
// borrows it for a single pass and never retains plane memory.
type Descriptor struct {
	Format Format
	Width  int
	Height int
	Planes []Plane

	// Seq is a monotonically increasing sequence number assigned by the
	// capture source. Used for drop accounting, not for ordering.
	Seq uint64
}
