// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/grade/cache"
	"github.com/gogpu/grade/colorcore"
	"github.com/gogpu/grade/cubelut"
	"github.com/gogpu/grade/frame"
)

// init registers the software backend on package import.
func init() {
	Register(NameSoftware, func() (Backend, error) {
		return NewSoftware(), nil
	})
}

// Software is the CPU reference backend. It implements the same two
// color programs as the wgpu backend, pixel by pixel, and renders into
// image.RGBA-backed drawables. It is the fallback when no GPU device
// can be opened and the oracle the kernel tests compare against.
type Software struct {
	binder *softwareBinder
	kernel *softwareKernel
}

// NewSoftware creates a software backend.
func NewSoftware() *Software {
	b := &Software{kernel: &softwareKernel{}}
	b.binder = &softwareBinder{
		views: cache.NewViews[*softwareView](0, nil),
	}
	return b
}

// Name returns the backend identifier.
func (b *Software) Name() string { return NameSoftware }

// Binder returns the texture binder.
func (b *Software) Binder() TextureBinder { return b.binder }

// Kernel returns the color kernel.
func (b *Software) Kernel() Kernel { return b.kernel }

// BuildLUT wraps the table for CPU sampling. The table is retained by
// reference; the store treats the returned texture as immutable.
func (b *Software) BuildLUT(t cubelut.Table) (LUTTexture, error) {
	if t.Size < 2 {
		return nil, fmt.Errorf("software: LUT dimension %d below minimum 2", t.Size)
	}
	if want := t.Size * t.Size * t.Size * 3; len(t.Data) != want {
		return nil, fmt.Errorf("software: LUT has %d floats, want %d", len(t.Data), want)
	}
	return &softwareLUT{table: t}, nil
}

// Close releases the view cache.
func (b *Software) Close() error {
	b.binder.FlushViews()
	return nil
}

// softwareLUT samples the parsed table directly with CPU trilinear
// interpolation.
type softwareLUT struct {
	table cubelut.Table
}

func (l *softwareLUT) Dimension() int { return l.table.Size }
func (l *softwareLUT) Release()       {}

// softwareView aliases a frame plane without copying.
type softwareView struct {
	plane frame.Plane
	kind  frame.PlaneKind
}

func (v *softwareView) Kind() frame.PlaneKind { return v.kind }
func (v *softwareView) Width() int            { return v.plane.Width }
func (v *softwareView) Height() int           { return v.plane.Height }
func (v *softwareView) Release()              {}

// softwareBinder hands out plane-aliasing views through the shared
// view cache, mirroring the wgpu binder's caching behavior so both
// backends exercise the same transition logic.
type softwareBinder struct {
	views *cache.Views[*softwareView]
}

func (b *softwareBinder) AcquireView(p frame.Plane, kind frame.PlaneKind) (TextureView, error) {
	if len(p.Data) == 0 || p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("software: empty plane %dx%d", p.Width, p.Height)
	}
	return b.views.GetOrCreate(planeKey(p, kind), func() (*softwareView, error) {
		return &softwareView{plane: p, kind: kind}, nil
	})
}

func (b *softwareBinder) FlushViews() {
	b.views.Flush()
}

// planeKey derives the cache identity of a plane binding from the
// plane's backing memory address and the bind kind. Capture subsystems
// recycle a small pool of buffers, so addresses are stable keys.
func planeKey(p frame.Plane, kind frame.PlaneKind) uint64 {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(p.Data)))
	return uint64(addr) ^ uint64(kind+1)<<56
}

// softwareKernel implements the two color programs on the CPU.
type softwareKernel struct{}

// Dispatch runs the program selected by the layout's plane count and
// writes packed RGBA into the drawable. The view slice length must
// match the layout; a mismatch is a programming error upstream of the
// kernel and panics.
func (k *softwareKernel) Dispatch(dst Drawable, layout frame.Layout, planes []TextureView, lut LUTTexture, opts DispatchOptions) error {
	if len(planes) != len(layout.Planes) {
		panic(fmt.Sprintf("software: %d views for %d-plane layout", len(planes), len(layout.Planes)))
	}

	target, ok := dst.(PixelTarget)
	if !ok {
		return fmt.Errorf("software: unsupported drawable %T", dst)
	}
	cube, ok := lut.(*softwareLUT)
	if !ok || cube == nil {
		return fmt.Errorf("software: no LUT texture")
	}

	views := make([]*softwareView, len(planes))
	for i, p := range planes {
		v, ok := p.(*softwareView)
		if !ok {
			panic(fmt.Sprintf("software: foreign texture view %T", p))
		}
		views[i] = v
	}

	w, h := views[0].Width(), views[0].Height()
	if target.Width() != w || target.Height() != h {
		return fmt.Errorf("software: drawable %dx%d does not match frame %dx%d",
			target.Width(), target.Height(), w, h)
	}
	pix := target.Pix()
	if len(pix) < w*h*4 {
		return fmt.Errorf("software: drawable storage %d bytes, want %d", len(pix), w*h*4)
	}

	if layout.Biplanar() {
		k.gradeBiplanar(pix, layout, views[0], views[1], cube, opts)
	} else {
		k.gradePacked(pix, views[0], cube, opts)
	}
	return nil
}

// gradePacked is the single-plane program: sample packed BGRA, LUT,
// optional tone lift.
func (k *softwareKernel) gradePacked(dst []byte, src *softwareView, lut *softwareLUT, opts DispatchOptions) {
	w, h := src.Width(), src.Height()
	data := src.plane.Data
	for y := 0; y < h; y++ {
		row := y * w * 4
		for x := 0; x < w; x++ {
			i := row + x*4
			b := float32(data[i]) / 255
			g := float32(data[i+1]) / 255
			r := float32(data[i+2]) / 255
			writeGraded(dst, i, r, g, b, lut, opts)
		}
	}
}

// gradeBiplanar is the dual-plane program: luma at full resolution,
// chroma bilinear at half resolution, matrix conversion, LUT, optional
// tone lift.
func (k *softwareKernel) gradeBiplanar(dst []byte, layout frame.Layout, luma, chroma *softwareView, lut *softwareLUT, opts DispatchOptions) {
	w, h := luma.Width(), luma.Height()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			yv := sampleLuma(luma, layout, x, y)
			// Normalized coordinate of the pixel center drives the
			// half-resolution chroma sample, matching a GPU sampler.
			u := (float32(x) + 0.5) / float32(w)
			v := (float32(y) + 0.5) / float32(h)
			cb, cr := sampleChromaBilinear(chroma, layout, u, v)

			r, g, b := colorcore.YCbCrToRGB(layout.Matrix, yv, cb, cr)
			writeGraded(dst, (y*w+x)*4, r, g, b, lut, opts)
		}
	}
}

// writeGraded applies the LUT and optional tone lift, then stores the
// pixel as packed RGBA at byte offset i.
func writeGraded(dst []byte, i int, r, g, b float32, lut *softwareLUT, opts DispatchOptions) {
	r, g, b = lut.table.Lookup(r, g, b)
	if opts.LogPreview {
		r = colorcore.ToneLift(r)
		g = colorcore.ToneLift(g)
		b = colorcore.ToneLift(b)
	}
	dst[i] = uint8(colorcore.Clamp01(r)*255 + 0.5)
	dst[i+1] = uint8(colorcore.Clamp01(g)*255 + 0.5)
	dst[i+2] = uint8(colorcore.Clamp01(b)*255 + 0.5)
	dst[i+3] = 255
}

// sampleLuma reads the luma plane at pixel (x, y), normalizing 8-bit or
// 10-in-16-bit containers to [0, 1].
func sampleLuma(v *softwareView, layout frame.Layout, x, y int) float32 {
	switch v.kind {
	case frame.PlaneLuma8:
		return float32(v.plane.Data[y*v.plane.Width+x]) / 255
	case frame.PlaneLuma16:
		i := (y*v.plane.Width + x) * 2
		s := uint16(v.plane.Data[i]) | uint16(v.plane.Data[i+1])<<8
		val := float32(s) / 65535
		if layout.TenBit {
			val *= colorcore.TenBitScale
		}
		return colorcore.Clamp01(val)
	default:
		panic(fmt.Sprintf("software: plane kind %d is not luma", v.kind))
	}
}

// sampleChromaBilinear samples the interleaved CbCr plane at the
// normalized coordinate (u, v) with bilinear filtering, the CPU
// equivalent of a linear GPU sampler on the half-resolution plane.
func sampleChromaBilinear(view *softwareView, layout frame.Layout, u, v float32) (float32, float32) {
	cw, ch := view.plane.Width, view.plane.Height

	fx := u*float32(cw) - 0.5
	fy := v*float32(ch) - 0.5
	x0 := int(fx)
	y0 := int(fy)
	if fx < 0 {
		x0 = -1
	}
	if fy < 0 {
		y0 = -1
	}
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	cb00, cr00 := chromaTexel(view, layout, x0, y0)
	cb10, cr10 := chromaTexel(view, layout, x0+1, y0)
	cb01, cr01 := chromaTexel(view, layout, x0, y0+1)
	cb11, cr11 := chromaTexel(view, layout, x0+1, y0+1)

	cb := mix(mix(cb00, cb10, tx), mix(cb01, cb11, tx), ty)
	cr := mix(mix(cr00, cr10, tx), mix(cr01, cr11, tx), ty)
	return cb, cr
}

// chromaTexel reads one CbCr pair with clamp-to-edge addressing.
func chromaTexel(v *softwareView, layout frame.Layout, x, y int) (float32, float32) {
	cw, ch := v.plane.Width, v.plane.Height
	if x < 0 {
		x = 0
	} else if x >= cw {
		x = cw - 1
	}
	if y < 0 {
		y = 0
	} else if y >= ch {
		y = ch - 1
	}

	switch v.kind {
	case frame.PlaneChroma8:
		i := (y*cw + x) * 2
		return float32(v.plane.Data[i]) / 255, float32(v.plane.Data[i+1]) / 255
	case frame.PlaneChroma16:
		i := (y*cw + x) * 4
		cb := uint16(v.plane.Data[i]) | uint16(v.plane.Data[i+1])<<8
		cr := uint16(v.plane.Data[i+2]) | uint16(v.plane.Data[i+3])<<8
		fcb := float32(cb) / 65535
		fcr := float32(cr) / 65535
		if layout.TenBit {
			fcb = colorcore.Clamp01(fcb * colorcore.TenBitScale)
			fcr = colorcore.Clamp01(fcr * colorcore.TenBitScale)
		}
		return fcb, fcr
	default:
		panic(fmt.Sprintf("software: plane kind %d is not chroma", v.kind))
	}
}

func mix(a, b, t float32) float32 {
	return a + (b-a)*t
}

// ImageDrawable is a drawable backed by an image.RGBA, produced by
// ImageDisplay. Present confirms asynchronously, mimicking a real
// swapchain's completion callback.
type ImageDrawable struct {
	img *image.RGBA
}

// NewImageDrawable creates a drawable of the given size.
func NewImageDrawable(width, height int) *ImageDrawable {
	return &ImageDrawable{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Width returns the drawable width.
func (d *ImageDrawable) Width() int { return d.img.Rect.Dx() }

// Height returns the drawable height.
func (d *ImageDrawable) Height() int { return d.img.Rect.Dy() }

// Image exposes the rendered pixels.
func (d *ImageDrawable) Image() *image.RGBA { return d.img }

// Pix returns the packed RGBA storage, implementing PixelTarget.
func (d *ImageDrawable) Pix() []byte { return d.img.Pix }

// Present schedules the drawable and confirms completion on a separate
// goroutine.
func (d *ImageDrawable) Present(done func()) {
	if done != nil {
		go done()
	}
}

// ImageDisplay produces ImageDrawables on demand. It stands in for a
// real presentation surface in tests and headless runs.
type ImageDisplay struct{}

// AcquireDrawable returns a fresh drawable of the requested size.
func (ImageDisplay) AcquireDrawable(width, height int) (Drawable, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("software: invalid drawable size %dx%d", width, height)
	}
	return NewImageDrawable(width, height), nil
}
