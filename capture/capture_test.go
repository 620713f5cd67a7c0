// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/grade/frame"
)

func TestSyntheticEmitsClassifiableFrames(t *testing.T) {
	for _, f := range cycleFormats {
		t.Run(f.String(), func(t *testing.T) {
			s, err := NewSynthetic(Config{Width: 32, Height: 16, Format: f})
			if err != nil {
				t.Fatalf("NewSynthetic: %v", err)
			}
			for i := 0; i < 3; i++ {
				d := s.Frame()
				if d.Format != f {
					t.Fatalf("frame format = %s, want %s", d.Format, f)
				}
				if d.Seq != uint64(i) {
					t.Errorf("seq = %d, want %d", d.Seq, i)
				}
				layout, err := frame.Classify(d)
				if err != nil {
					t.Fatalf("Classify: %v", err)
				}
				if layout.Format != f {
					t.Errorf("layout format = %s, want %s", layout.Format, f)
				}
			}
		})
	}
}

func TestSyntheticCyclesFormats(t *testing.T) {
	s, err := NewSynthetic(Config{Width: 16, Height: 8, CycleEvery: 2})
	if err != nil {
		t.Fatalf("NewSynthetic: %v", err)
	}
	var got []frame.Format
	for i := 0; i < 2*len(cycleFormats); i++ {
		got = append(got, s.Frame().Format)
	}
	for i, f := range got {
		want := cycleFormats[i/2%len(cycleFormats)]
		if f != want {
			t.Errorf("frame %d format = %s, want %s", i, f, want)
		}
	}
}

func TestSyntheticRecyclesBuffers(t *testing.T) {
	s, err := NewSynthetic(Config{Width: 16, Height: 8, Format: frame.FormatNV12Full})
	if err != nil {
		t.Fatalf("NewSynthetic: %v", err)
	}
	first := s.Frame()
	for i := 0; i < poolSize-1; i++ {
		s.Frame()
	}
	again := s.Frame()
	if &first.Planes[0].Data[0] != &again.Planes[0].Data[0] {
		t.Error("luma buffer not recycled after one pool cycle")
	}
	if &first.Planes[1].Data[0] != &again.Planes[1].Data[0] {
		t.Error("chroma buffer not recycled after one pool cycle")
	}
}

func TestSyntheticTenBitContainer(t *testing.T) {
	s, err := NewSynthetic(Config{Width: 16, Height: 8, Format: frame.FormatP210})
	if err != nil {
		t.Fatalf("NewSynthetic: %v", err)
	}
	d := s.Frame()
	luma := d.Planes[0].Data
	// Samples sit in the top bits of each little-endian 16-bit
	// container, so the low six bits are always zero.
	for i := 0; i < len(luma); i += 2 {
		if luma[i]&0x3f != 0 {
			t.Fatalf("luma sample %d has low container bits set: %#x", i/2, luma[i])
		}
	}
}

func TestSyntheticRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{Width: 0, Height: 8, Format: frame.FormatBGRA8},
		{Width: 15, Height: 8, Format: frame.FormatBGRA8},
		{Width: 16, Height: 9, Format: frame.FormatBGRA8},
		{Width: 16, Height: 8, Format: frame.FormatUnknown},
	}
	for _, cfg := range cases {
		if _, err := NewSynthetic(cfg); err == nil {
			t.Errorf("NewSynthetic(%+v) accepted invalid config", cfg)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := NewSynthetic(Config{
		Width: 16, Height: 8, Format: frame.FormatBGRA8,
		Interval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSynthetic: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan *frame.Descriptor, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- s.Run(ctx, func(d *frame.Descriptor) {
			select {
			case frames <- d:
			default:
			}
		})
	}()

	<-frames
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
