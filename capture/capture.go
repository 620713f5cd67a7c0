// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package capture provides frame sources for the grading pipeline.
//
// The Synthetic source generates an animated test pattern in any of
// the supported pixel formats, recycling a small pool of plane buffers
// the way a real capture driver recycles DMA buffers. That keeps the
// downstream view caches honest: plane addresses repeat frame to
// frame.
package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/grade/colorcore"
	"github.com/gogpu/grade/frame"
)

// poolSize is the number of recycled plane buffer sets. Must exceed
// the presenter's in-flight depth so a buffer is never rewritten while
// a kernel still reads it.
const poolSize = 4

// Source produces frames until the context is cancelled.
type Source interface {
	Run(ctx context.Context, submit func(*frame.Descriptor)) error
}

// Config configures a Synthetic source.
type Config struct {
	Width  int
	Height int

	// Format selects the emitted pixel format. Ignored when CycleEvery
	// is set.
	Format frame.Format

	// Interval paces frame production. Zero emits as fast as the
	// consumer's publish call returns, which is the stress configuration for
	// latest-frame-wins scheduling.
	Interval time.Duration

	// CycleEvery, when positive, rotates through all supported formats
	// every CycleEvery frames, exercising format-transition handling.
	CycleEvery int
}

// cycleFormats is the rotation order when CycleEvery is set.
var cycleFormats = []frame.Format{
	frame.FormatBGRA8,
	frame.FormatNV12Video,
	frame.FormatNV12Full,
	frame.FormatP210,
}

// Synthetic generates an animated gradient pattern.
type Synthetic struct {
	cfg Config
	seq uint64

	rgba       *image.RGBA
	chromaFull *image.RGBA
	chromaHalf *image.RGBA
	scaler     xdraw.Scaler

	pools map[frame.Format]*bufferPool
}

// bufferPool is a recycled ring of plane buffer sets for one format.
type bufferPool struct {
	sets [poolSize][][]byte
	next int
}

// NewSynthetic validates the configuration and builds the source.
// Dimensions must be even: every supported subsampled layout halves at
// least one axis.
func NewSynthetic(cfg Config) (*Synthetic, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("capture: invalid size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		return nil, fmt.Errorf("capture: size %dx%d must be even", cfg.Width, cfg.Height)
	}
	if cfg.CycleEvery == 0 && !cfg.Format.Supported() {
		return nil, fmt.Errorf("capture: unsupported format %s", cfg.Format)
	}
	return &Synthetic{
		cfg:    cfg,
		rgba:   image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
		scaler: xdraw.BiLinear,
		pools:  make(map[frame.Format]*bufferPool),
	}, nil
}

// Run emits frames until ctx is cancelled, returning ctx.Err().
func (s *Synthetic) Run(ctx context.Context, submit func(*frame.Descriptor)) error {
	var ticker *time.Ticker
	if s.cfg.Interval > 0 {
		ticker = time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
	}
	for {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
		submit(s.Frame())
	}
}

// Frame renders the next frame of the pattern. The returned descriptor
// aliases pooled buffers that will be rewritten poolSize frames later.
func (s *Synthetic) Frame() *frame.Descriptor {
	seq := s.seq
	s.seq++

	format := s.cfg.Format
	if s.cfg.CycleEvery > 0 {
		format = cycleFormats[int(seq)/s.cfg.CycleEvery%len(cycleFormats)]
	}

	s.renderPattern(seq)

	w, h := s.cfg.Width, s.cfg.Height
	d := &frame.Descriptor{Format: format, Width: w, Height: h, Seq: seq}
	switch format {
	case frame.FormatBGRA8:
		planes := s.planeSet(format, w*h*4)
		packBGRA(planes[0], s.rgba)
		d.Planes = []frame.Plane{{Data: planes[0], Width: w, Height: h}}
	case frame.FormatNV12Video, frame.FormatNV12Full:
		planes := s.planeSet(format, w*h, w/2*h/2*2)
		s.buildBiplanar(format, planes[0], planes[1], w/2, h/2, false)
		d.Planes = []frame.Plane{
			{Data: planes[0], Width: w, Height: h},
			{Data: planes[1], Width: w / 2, Height: h / 2},
		}
	case frame.FormatP210:
		planes := s.planeSet(format, w*h*2, w/2*h*4)
		s.buildBiplanar(format, planes[0], planes[1], w/2, h, true)
		d.Planes = []frame.Plane{
			{Data: planes[0], Width: w, Height: h},
			{Data: planes[1], Width: w / 2, Height: h},
		}
	}
	return d
}

// planeSet returns the next recycled buffer set for the format,
// allocating on first use.
func (s *Synthetic) planeSet(f frame.Format, sizes ...int) [][]byte {
	pool := s.pools[f]
	if pool == nil {
		pool = &bufferPool{}
		for i := range pool.sets {
			set := make([][]byte, len(sizes))
			for j, n := range sizes {
				set[j] = make([]byte, n)
			}
			pool.sets[i] = set
		}
		s.pools[f] = pool
	}
	set := pool.sets[pool.next]
	pool.next = (pool.next + 1) % poolSize
	return set
}

// renderPattern draws a scrolling gradient into the RGBA scratch image.
func (s *Synthetic) renderPattern(seq uint64) {
	w, h := s.cfg.Width, s.cfg.Height
	tick := int(seq % 256)
	for y := 0; y < h; y++ {
		row := s.rgba.Pix[y*s.rgba.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			row[i] = uint8(x * 255 / w)
			row[i+1] = uint8(y * 255 / h)
			row[i+2] = uint8((x + y + tick) & 0xff)
			row[i+3] = 255
		}
	}
}

// packBGRA converts the RGBA scratch image to packed BGRA bytes.
func packBGRA(dst []byte, src *image.RGBA) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		out := dst[y*w*4:]
		for x := 0; x < w; x++ {
			i := x * 4
			out[i] = row[i+2]
			out[i+1] = row[i+1]
			out[i+2] = row[i]
			out[i+3] = 255
		}
	}
}

// buildBiplanar fills the luma plane at full resolution and the
// interleaved CbCr plane at (cw, ch), downsampling chroma with a
// bilinear scaler. wide selects the 10-in-16-bit container.
func (s *Synthetic) buildBiplanar(f frame.Format, luma, chroma []byte, cw, ch int, wide bool) {
	w, h := s.cfg.Width, s.cfg.Height
	m := f.Matrix()

	if s.chromaFull == nil || s.chromaFull.Rect.Dx() != w || s.chromaFull.Rect.Dy() != h {
		s.chromaFull = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	if s.chromaHalf == nil || s.chromaHalf.Rect.Dx() != cw || s.chromaHalf.Rect.Dy() != ch {
		s.chromaHalf = image.NewRGBA(image.Rect(0, 0, cw, ch))
	}

	for y := 0; y < h; y++ {
		src := s.rgba.Pix[y*s.rgba.Stride:]
		cdst := s.chromaFull.Pix[y*s.chromaFull.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			r := float32(src[i]) / 255
			g := float32(src[i+1]) / 255
			b := float32(src[i+2]) / 255
			yv, cb, cr := colorcore.RGBToYCbCr(m, r, g, b)

			y8 := uint8(yv*255 + 0.5)
			if wide {
				// 10-bit code in the top bits of a 16-bit sample,
				// little endian.
				s16 := uint16(y8) << 8
				luma[(y*w+x)*2] = uint8(s16)
				luma[(y*w+x)*2+1] = uint8(s16 >> 8)
			} else {
				luma[y*w+x] = y8
			}
			cdst[i] = uint8(cb*255 + 0.5)
			cdst[i+1] = uint8(cr*255 + 0.5)
			cdst[i+2] = 0
			cdst[i+3] = 255
		}
	}

	s.scaler.Scale(s.chromaHalf, s.chromaHalf.Rect, s.chromaFull, s.chromaFull.Rect, xdraw.Src, nil)

	for y := 0; y < ch; y++ {
		src := s.chromaHalf.Pix[y*s.chromaHalf.Stride:]
		for x := 0; x < cw; x++ {
			cb8, cr8 := src[x*4], src[x*4+1]
			if wide {
				i := (y*cw + x) * 4
				cb16 := uint16(cb8) << 8
				cr16 := uint16(cr8) << 8
				chroma[i] = uint8(cb16)
				chroma[i+1] = uint8(cb16 >> 8)
				chroma[i+2] = uint8(cr16)
				chroma[i+3] = uint8(cr16 >> 8)
			} else {
				i := (y*cw + x) * 2
				chroma[i] = cb8
				chroma[i+1] = cr8
			}
		}
	}
}
