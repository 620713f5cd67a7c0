// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package frame

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by Classify for any frame the pipeline
// cannot process: an unrecognized tag, a wrong plane count, or plane
// geometry inconsistent with the tag. Callers drop such frames.
var ErrUnsupported = errors.New("frame: unsupported layout")

// Matrix selects the color matrix a layout requires for YCbCr
// conversion. Packed RGB layouts need none.
type Matrix uint8

const (
	// MatrixNone means the layout is already RGB.
	MatrixNone Matrix = iota

	// MatrixBT709Video is BT.709 with video-range (16..235) scaling.
	MatrixBT709Video

	// MatrixBT601Full is BT.601 with full-range (0..255) scaling.
	MatrixBT601Full
)

// PlaneKind describes how one plane's memory is to be bound as a
// texture view.
type PlaneKind uint8

const (
	// PlanePackedRGBA8 is a 4-channel 8-bit packed plane.
	PlanePackedRGBA8 PlaneKind = iota

	// PlaneLuma8 is a single-channel 8-bit luma plane.
	PlaneLuma8

	// PlaneChroma8 is a two-channel 8-bit interleaved CbCr plane.
	PlaneChroma8

	// PlaneLuma16 is a single-channel 16-bit-container luma plane.
	PlaneLuma16

	// PlaneChroma16 is a two-channel 16-bit-container CbCr plane.
	PlaneChroma16
)

// bytesPerSample returns the per-pixel byte width of a plane of this kind.
func (k PlaneKind) bytesPerSample() int {
	switch k {
	case PlanePackedRGBA8:
		return 4
	case PlaneLuma8:
		return 1
	case PlaneChroma8:
		return 2
	case PlaneLuma16:
		return 2
	case PlaneChroma16:
		return 4
	default:
		return 0
	}
}

// Layout is the resolved classification of a frame: which kernel path
// applies (by plane count), how each plane binds, and which color matrix
// the conversion uses. Layout values are immutable.
type Layout struct {
	Format Format
	Matrix Matrix
	Planes []PlaneKind

	// TenBit marks layouts whose samples occupy the top 10 bits of a
	// 16-bit container and need range expansion in the kernel.
	TenBit bool
}

// Biplanar reports whether the layout uses the dual-plane kernel path.
func (l Layout) Biplanar() bool { return len(l.Planes) == 2 }

// layouts is the closed table of supported classifications.
var layouts = map[Format]Layout{
	FormatBGRA8: {
		Format: FormatBGRA8,
		Matrix: MatrixNone,
		Planes: []PlaneKind{PlanePackedRGBA8},
	},
	FormatP210: {
		Format: FormatP210,
		Matrix: MatrixBT709Video,
		Planes: []PlaneKind{PlaneLuma16, PlaneChroma16},
		TenBit: true,
	},
	FormatNV12Video: {
		Format: FormatNV12Video,
		Matrix: MatrixBT709Video,
		Planes: []PlaneKind{PlaneLuma8, PlaneChroma8},
	},
	FormatNV12Full: {
		Format: FormatNV12Full,
		Matrix: MatrixBT601Full,
		Planes: []PlaneKind{PlaneLuma8, PlaneChroma8},
	},
}

// Matrix returns the color matrix implied by the format tag, or
// MatrixNone when the tag is unknown or needs no conversion.
func (f Format) Matrix() Matrix {
	return layouts[f].Matrix
}

// Supported reports whether the format tag has a classification.
func (f Format) Supported() bool {
	_, ok := layouts[f]
	return ok
}

// Classify resolves d to a supported layout, validating plane count and
// geometry against the tag. Any mismatch returns an error matching
// ErrUnsupported; Classify never panics on hostile descriptors.
func Classify(d *Descriptor) (Layout, error) {
	if d == nil {
		return Layout{}, fmt.Errorf("%w: nil descriptor", ErrUnsupported)
	}
	layout, ok := layouts[d.Format]
	if !ok {
		return Layout{}, fmt.Errorf("%w: tag %s", ErrUnsupported, d.Format)
	}
	if d.Width <= 0 || d.Height <= 0 {
		return Layout{}, fmt.Errorf("%w: %s frame is %dx%d",
			ErrUnsupported, d.Format, d.Width, d.Height)
	}
	if len(d.Planes) != len(layout.Planes) {
		return Layout{}, fmt.Errorf("%w: %s expects %d planes, got %d",
			ErrUnsupported, d.Format, len(layout.Planes), len(d.Planes))
	}

	for i, kind := range layout.Planes {
		p := d.Planes[i]
		wantW, wantH, err := planeDims(d, i)
		if err != nil {
			return Layout{}, err
		}
		if p.Width != wantW || p.Height != wantH {
			return Layout{}, fmt.Errorf("%w: %s plane %d is %dx%d, want %dx%d",
				ErrUnsupported, d.Format, i, p.Width, p.Height, wantW, wantH)
		}
		if need := wantW * wantH * kind.bytesPerSample(); len(p.Data) < need {
			return Layout{}, fmt.Errorf("%w: %s plane %d holds %d bytes, need %d",
				ErrUnsupported, d.Format, i, len(p.Data), need)
		}
	}
	return layout, nil
}

// planeDims returns the required dimensions of plane i for the frame's
// tag. Chroma subsampling demands exact halves; odd frame dimensions on
// subsampled axes are rejected rather than rounded.
func planeDims(d *Descriptor, i int) (int, int, error) {
	if i == 0 {
		return d.Width, d.Height, nil
	}
	switch d.Format {
	case FormatP210:
		if d.Width%2 != 0 {
			return 0, 0, fmt.Errorf("%w: %s width %d is odd",
				ErrUnsupported, d.Format, d.Width)
		}
		return d.Width / 2, d.Height, nil
	case FormatNV12Video, FormatNV12Full:
		if d.Width%2 != 0 || d.Height%2 != 0 {
			return 0, 0, fmt.Errorf("%w: %s dimensions %dx%d are odd",
				ErrUnsupported, d.Format, d.Width, d.Height)
		}
		return d.Width / 2, d.Height / 2, nil
	default:
		return 0, 0, fmt.Errorf("%w: tag %s", ErrUnsupported, d.Format)
	}
}
