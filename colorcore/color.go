// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package colorcore

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/grade/frame"
)

// TenBitScale expands 10-bit samples stored in the top bits of a 16-bit
// container to the full normalized range. A maximal 10-bit value reads
// back as 65472/65535 through a unorm16 view; this factor restores 1.0.
const TenBitScale = 65535.0 / 65472.0

// Tone lift applied when log preview is enabled. A gentle contrast and
// brightness bump that makes log footage viewable; display aid only.
const (
	toneLiftContrast   = 1.12
	toneLiftBrightness = 0.015
)

// YCbCrToRGB converts one normalized YCbCr sample to linear RGB using
// the matrix m, clamping each channel to [0, 1]. Cb and Cr are expected
// in [0, 1] with the neutral point at 128/255.
func YCbCrToRGB(m frame.Matrix, y, cb, cr float32) (float32, float32, float32) {
	var r, g, b float32
	switch m {
	case frame.MatrixBT709Video:
		// Video range: luma 16..235, chroma 16..240 (in 8-bit terms).
		yv := (y - 16.0/255.0) * (255.0 / 219.0)
		cbv := (cb - 128.0/255.0) * (255.0 / 224.0)
		crv := (cr - 128.0/255.0) * (255.0 / 224.0)
		r = yv + 1.5748*crv
		g = yv - 0.1873*cbv - 0.4681*crv
		b = yv + 1.8556*cbv
	case frame.MatrixBT601Full:
		cbf := cb - 128.0/255.0
		crf := cr - 128.0/255.0
		r = y + 1.402*crf
		g = y - 0.344136*cbf - 0.714136*crf
		b = y + 1.772*cbf
	default:
		r, g, b = y, cb, cr
	}
	return Clamp01(r), Clamp01(g), Clamp01(b)
}

// RGBToYCbCr is the forward companion of YCbCrToRGB, used by synthetic
// sources and round-trip tests. Output channels are normalized to
// [0, 1] with the neutral chroma point at 128/255.
func RGBToYCbCr(m frame.Matrix, r, g, b float32) (float32, float32, float32) {
	switch m {
	case frame.MatrixBT709Video:
		yl := 0.2126*r + 0.7152*g + 0.0722*b
		y := (16.0 + 219.0*yl) / 255.0
		cb := 128.0/255.0 + (224.0/255.0)*(b-yl)/1.8556
		cr := 128.0/255.0 + (224.0/255.0)*(r-yl)/1.5748
		return Clamp01(y), Clamp01(cb), Clamp01(cr)
	case frame.MatrixBT601Full:
		yl := 0.299*r + 0.587*g + 0.114*b
		cb := 128.0/255.0 + (b-yl)/1.772
		cr := 128.0/255.0 + (r-yl)/1.402
		return Clamp01(yl), Clamp01(cb), Clamp01(cr)
	default:
		return r, g, b
	}
}

// ToneLift applies the log-preview contrast/brightness lift to one
// channel. The result is clamped to [0, 1].
func ToneLift(v float32) float32 {
	return Clamp01((v-0.5)*toneLiftContrast + 0.5 + toneLiftBrightness)
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float32) float32 {
	return math32.Min(math32.Max(v, 0), 1)
}
