// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package frame

import (
	"errors"
	"testing"
)

// makeFrame builds a well-formed descriptor for a supported tag.
func makeFrame(format Format, w, h int) *Descriptor {
	d := &Descriptor{Format: format, Width: w, Height: h}
	switch format {
	case FormatBGRA8:
		d.Planes = []Plane{{Data: make([]byte, w*h*4), Width: w, Height: h}}
	case FormatP210:
		d.Planes = []Plane{
			{Data: make([]byte, w*h*2), Width: w, Height: h},
			{Data: make([]byte, w/2*h*4), Width: w / 2, Height: h},
		}
	case FormatNV12Video, FormatNV12Full:
		d.Planes = []Plane{
			{Data: make([]byte, w*h), Width: w, Height: h},
			{Data: make([]byte, w/2*h/2*2), Width: w / 2, Height: h / 2},
		}
	}
	return d
}

func TestClassify_SupportedLayouts(t *testing.T) {
	tests := []struct {
		format   Format
		planes   int
		matrix   Matrix
		tenBit   bool
		biplanar bool
	}{
		{FormatBGRA8, 1, MatrixNone, false, false},
		{FormatP210, 2, MatrixBT709Video, true, true},
		{FormatNV12Video, 2, MatrixBT709Video, false, true},
		{FormatNV12Full, 2, MatrixBT601Full, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			layout, err := Classify(makeFrame(tt.format, 64, 48))
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if len(layout.Planes) != tt.planes {
				t.Errorf("planes = %d, want %d", len(layout.Planes), tt.planes)
			}
			if layout.Matrix != tt.matrix {
				t.Errorf("matrix = %d, want %d", layout.Matrix, tt.matrix)
			}
			if layout.TenBit != tt.tenBit {
				t.Errorf("tenBit = %v, want %v", layout.TenBit, tt.tenBit)
			}
			if layout.Biplanar() != tt.biplanar {
				t.Errorf("Biplanar() = %v, want %v", layout.Biplanar(), tt.biplanar)
			}
		})
	}
}

func TestClassify_Rejections(t *testing.T) {
	tests := []struct {
		name string
		d    *Descriptor
	}{
		{"nil descriptor", nil},
		{"unknown tag", &Descriptor{Format: FormatUnknown, Width: 4, Height: 4}},
		{"unrecognized tag value", &Descriptor{Format: Format(99), Width: 4, Height: 4}},
		{"zero dimensions", &Descriptor{Format: FormatBGRA8}},
		{
			"missing plane",
			&Descriptor{Format: FormatNV12Video, Width: 4, Height: 4,
				Planes: []Plane{{Data: make([]byte, 16), Width: 4, Height: 4}}},
		},
		{
			"chroma width not half",
			func() *Descriptor {
				d := makeFrame(FormatNV12Video, 8, 8)
				d.Planes[1].Width = 8
				return d
			}(),
		},
		{
			"chroma height not half",
			func() *Descriptor {
				d := makeFrame(FormatNV12Full, 8, 8)
				d.Planes[1].Height = 8
				return d
			}(),
		},
		{
			"odd 4:2:0 frame",
			&Descriptor{Format: FormatNV12Video, Width: 7, Height: 8,
				Planes: []Plane{
					{Data: make([]byte, 56), Width: 7, Height: 8},
					{Data: make([]byte, 28), Width: 3, Height: 4},
				}},
		},
		{
			"p210 chroma full width",
			func() *Descriptor {
				d := makeFrame(FormatP210, 8, 8)
				d.Planes[1].Width = 8
				return d
			}(),
		},
		{
			"plane buffer too small",
			func() *Descriptor {
				d := makeFrame(FormatBGRA8, 8, 8)
				d.Planes[0].Data = d.Planes[0].Data[:10]
				return d
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Classify(tt.d); !errors.Is(err, ErrUnsupported) {
				t.Errorf("Classify() error = %v, want ErrUnsupported", err)
			}
		})
	}
}

func TestFormat_String(t *testing.T) {
	if got := FormatNV12Full.String(); got != "nv12-full" {
		t.Errorf("String() = %q", got)
	}
	if got := Format(200).String(); got != "unknown" {
		t.Errorf("String() = %q", got)
	}
}
