// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package wgpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/grade/backend"
	"github.com/gogpu/grade/frame"
)

//go:embed shaders/grade_packed.wgsl
var packedShaderWGSL string

//go:embed shaders/grade_biplanar.wgsl
var biplanarShaderWGSL string

const (
	flagLogPreview = 1 << 0
	flagWideRange  = 1 << 1

	configSize = 32
)

// program bundles the compiled pipeline of one color program.
type program struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

func (p *program) destroy(device hal.Device) {
	if p.pipeline != nil {
		device.DestroyComputePipeline(p.pipeline)
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
	}
	*p = program{}
}

// kernel dispatches the packed and biplanar compute programs. The
// output and staging buffers persist across dispatches and grow to the
// largest frame seen.
type kernel struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue

	packed   program
	biplanar program

	configBuf  hal.Buffer
	outBuf     hal.Buffer
	stagingBuf hal.Buffer
	outSize    uint64
}

func newKernel(device hal.Device, queue hal.Queue) (*kernel, error) {
	k := &kernel{device: device, queue: queue}

	// Packed program: config, pixels, lut, output.
	if err := k.buildProgram(&k.packed, "grade_packed", packedShaderWGSL, 2); err != nil {
		k.destroy()
		return nil, err
	}
	// Biplanar program: config, luma, chroma, lut, output.
	if err := k.buildProgram(&k.biplanar, "grade_biplanar", biplanarShaderWGSL, 3); err != nil {
		k.destroy()
		return nil, err
	}

	configBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "grade_config", Size: configSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		k.destroy()
		return nil, fmt.Errorf("wgpu: create config buffer: %w", err)
	}
	k.configBuf = configBuf
	return k, nil
}

// buildProgram compiles one WGSL program to SPIR-V and creates its
// pipeline. readStorage is the number of read-only storage bindings
// between the config uniform and the read_write output.
func (k *kernel) buildProgram(p *program, label, wgsl string, readStorage int) error {
	spirv, err := compileSPIRV(wgsl)
	if err != nil {
		return fmt.Errorf("wgpu: compile %s: %w", label, err)
	}
	shader, err := k.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create %s shader module: %w", label, err)
	}
	p.shader = shader

	entries := []gputypes.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{
			Type: gputypes.BufferBindingTypeUniform, MinBindingSize: configSize,
		}},
	}
	for i := 0; i < readStorage; i++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding: uint32(1 + i), Visibility: gputypes.ShaderStageCompute,
			Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding: uint32(1 + readStorage), Visibility: gputypes.ShaderStageCompute,
		Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
	})

	bindLayout, err := k.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_bind_layout", Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create %s bind group layout: %w", label, err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := k.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: label + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create %s pipeline layout: %w", label, err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := k.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: label + "_pipeline", Layout: pipeLayout,
		Compute: hal.ComputeState{Module: shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create %s pipeline: %w", label, err)
	}
	p.pipeline = pipeline
	return nil
}

// Dispatch runs the program selected by the layout's plane count and
// reads the graded pixels back into the drawable. The view slice
// length must match the layout; a mismatch is a programming error
// upstream of the kernel and panics.
func (k *kernel) Dispatch(dst backend.Drawable, layout frame.Layout, planes []backend.TextureView, lut backend.LUTTexture, opts backend.DispatchOptions) error {
	if len(planes) != len(layout.Planes) {
		panic(fmt.Sprintf("wgpu: %d views for %d-plane layout", len(planes), len(layout.Planes)))
	}

	target, ok := dst.(backend.PixelTarget)
	if !ok {
		return fmt.Errorf("wgpu: unsupported drawable %T", dst)
	}
	cube, ok := lut.(*lutTexture)
	if !ok || cube == nil {
		return fmt.Errorf("wgpu: no LUT texture")
	}

	views := make([]*planeBuffer, len(planes))
	for i, p := range planes {
		v, ok := p.(*planeBuffer)
		if !ok {
			panic(fmt.Sprintf("wgpu: foreign texture view %T", p))
		}
		views[i] = v
	}

	w, h := views[0].Width(), views[0].Height()
	if target.Width() != w || target.Height() != h {
		return fmt.Errorf("wgpu: drawable %dx%d does not match frame %dx%d",
			target.Width(), target.Height(), w, h)
	}
	pix := target.Pix()
	pixSize := uint64(w) * uint64(h) * 4
	if uint64(len(pix)) < pixSize {
		return fmt.Errorf("wgpu: drawable storage %d bytes, want %d", len(pix), pixSize)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.ensureOutput(pixSize); err != nil {
		return err
	}
	k.queue.WriteBuffer(k.configBuf, 0, encodeConfig(layout, views, cube.dim, opts))

	prog := &k.packed
	if layout.Biplanar() {
		prog = &k.biplanar
	}

	entries := []gputypes.BindGroupEntry{
		{Binding: 0, Resource: gputypes.BufferBinding{Buffer: k.configBuf.NativeHandle(), Offset: 0, Size: configSize}},
	}
	for i, v := range views {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(1 + i),
			Resource: gputypes.BufferBinding{Buffer: v.buf.NativeHandle(), Offset: 0, Size: v.size},
		})
	}
	entries = append(entries,
		gputypes.BindGroupEntry{
			Binding:  uint32(1 + len(views)),
			Resource: gputypes.BufferBinding{Buffer: cube.buf.NativeHandle(), Offset: 0, Size: cube.size},
		},
		gputypes.BindGroupEntry{
			Binding:  uint32(2 + len(views)),
			Resource: gputypes.BufferBinding{Buffer: k.outBuf.NativeHandle(), Offset: 0, Size: pixSize},
		},
	)
	bg, err := k.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "grade_bind", Layout: prog.bindLayout, Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}
	defer k.device.DestroyBindGroup(bg)

	if err := k.encode(prog, bg, uint32(w), uint32(h), pixSize); err != nil {
		return err
	}
	return k.queue.ReadBuffer(k.stagingBuf, 0, pix[:pixSize])
}

// encode records one compute pass plus the staging copy, submits it
// and waits on the fence.
func (k *kernel) encode(prog *program, bg hal.BindGroup, w, h uint32, pixSize uint64) error {
	encoder, err := k.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "grade_encoder"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("grade"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "grade_pass"})
	pass.SetPipeline(prog.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch((w+7)/8, (h+7)/8, 1)
	pass.End()

	encoder.CopyBufferToBuffer(k.outBuf, k.stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: pixSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer k.device.FreeCommandBuffer(cmdBuf)

	fence, err := k.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer k.device.DestroyFence(fence)
	if err := k.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	fenceOK, err := k.device.Wait(fence, 1, 5*time.Second)
	if err != nil || !fenceOK {
		return fmt.Errorf("wgpu: wait for GPU: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

// ensureOutput sizes the output and staging buffers for a frame of
// size bytes, reallocating only on growth.
func (k *kernel) ensureOutput(size uint64) error {
	if k.outBuf != nil && k.outSize >= size {
		return nil
	}
	if k.outBuf != nil {
		k.device.DestroyBuffer(k.outBuf)
		k.outBuf = nil
	}
	if k.stagingBuf != nil {
		k.device.DestroyBuffer(k.stagingBuf)
		k.stagingBuf = nil
	}
	outBuf, err := k.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "grade_out", Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create output buffer: %w", err)
	}
	stagingBuf, err := k.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "grade_staging", Size: size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		k.device.DestroyBuffer(outBuf)
		return fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	k.outBuf = outBuf
	k.stagingBuf = stagingBuf
	k.outSize = size
	return nil
}

func (k *kernel) destroy() {
	k.packed.destroy(k.device)
	k.biplanar.destroy(k.device)
	if k.configBuf != nil {
		k.device.DestroyBuffer(k.configBuf)
		k.configBuf = nil
	}
	if k.outBuf != nil {
		k.device.DestroyBuffer(k.outBuf)
		k.outBuf = nil
	}
	if k.stagingBuf != nil {
		k.device.DestroyBuffer(k.stagingBuf)
		k.stagingBuf = nil
	}
}

// encodeConfig packs the shader Config uniform. Both programs share
// the layout; the packed program ignores the chroma fields.
func encodeConfig(layout frame.Layout, views []*planeBuffer, lutDim int, opts backend.DispatchOptions) []byte {
	var chromaW, chromaH uint32
	sampleBits := uint32(8)
	if len(views) > 1 {
		chromaW = uint32(views[1].Width())
		chromaH = uint32(views[1].Height())
	}
	if layout.Planes[0] == frame.PlaneLuma16 {
		sampleBits = 16
	}
	var flags uint32
	if opts.LogPreview {
		flags |= flagLogPreview
	}
	if layout.TenBit {
		flags |= flagWideRange
	}

	buf := make([]byte, configSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(views[0].Width()))
	binary.LittleEndian.PutUint32(buf[4:], uint32(views[0].Height()))
	binary.LittleEndian.PutUint32(buf[8:], chromaW)
	binary.LittleEndian.PutUint32(buf[12:], chromaH)
	binary.LittleEndian.PutUint32(buf[16:], uint32(layout.Matrix))
	binary.LittleEndian.PutUint32(buf[20:], uint32(lutDim))
	binary.LittleEndian.PutUint32(buf[24:], flags)
	binary.LittleEndian.PutUint32(buf[28:], sampleBits)
	return buf
}

// compileSPIRV compiles WGSL to the uint32 SPIR-V words the shader
// module descriptor expects.
func compileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

// float32Bytes encodes float32 samples little-endian for buffer upload.
func float32Bytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}
