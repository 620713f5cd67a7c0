// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cubelut parses textual 3D LUT descriptions (Adobe .cube style)
// into dense float32 tables and provides CPU-side trilinear sampling.
//
// The format is free-form text: blank lines and lines beginning with '#'
// are ignored, a case-insensitive LUT_3D_SIZE directive sets the cube
// dimension, and every following line with exactly three floating-point
// tokens contributes one RGB sample in raster order (red fastest).
package cubelut

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// sizeKeyword is the directive that declares the cube dimension.
// Matching is case-insensitive.
const sizeKeyword = "LUT_3D_SIZE"

// ErrFormat is the base error for malformed LUT text. All parse errors
// match ErrFormat via errors.Is, so callers can distinguish a bad file
// from an unreadable one and fall back only on the former.
var ErrFormat = errors.New("cubelut: malformed LUT")

// Specific format errors. Each wraps ErrFormat.
var (
	// ErrNoSize indicates the text never declared a cube dimension.
	ErrNoSize = fmt.Errorf("%w: missing %s directive", ErrFormat, sizeKeyword)

	// ErrNoSamples indicates a declared size with zero sample lines.
	ErrNoSamples = fmt.Errorf("%w: no samples", ErrFormat)

	// ErrSizeRange indicates a declared dimension below the minimum of 2.
	ErrSizeRange = fmt.Errorf("%w: dimension must be at least 2", ErrFormat)

	// ErrSampleCount indicates the sample count does not equal size cubed.
	ErrSampleCount = fmt.Errorf("%w: sample count mismatch", ErrFormat)
)

// Table is a dense volumetric lookup table. Data holds Size³ RGB triples
// in raster order: red varies fastest, then green, then blue.
type Table struct {
	Size int
	Data []float32
}

// Parse reads LUT text from r and returns the parsed table.
//
// Lines that are blank, start with '#', or do not contain exactly three
// float tokens are skipped. The returned error matches ErrFormat for any
// structural problem (no size, no samples, count mismatch, size < 2);
// read failures from r are returned unwrapped from the format taxonomy.
func Parse(r io.Reader) (Table, error) {
	var (
		size    int
		samples []float32
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 2 && strings.EqualFold(fields[0], sizeKeyword) {
			n, err := strconv.Atoi(fields[1])
			if err == nil && n > 0 {
				size = n
			}
			continue
		}

		if len(fields) != 3 {
			continue
		}
		var rgb [3]float32
		ok := true
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				ok = false
				break
			}
			rgb[i] = float32(v)
		}
		if !ok {
			continue
		}
		samples = append(samples, rgb[0], rgb[1], rgb[2])
	}
	if err := sc.Err(); err != nil {
		return Table{}, fmt.Errorf("cubelut: read: %w", err)
	}

	switch {
	case size == 0:
		return Table{}, ErrNoSize
	case size < 2:
		return Table{}, ErrSizeRange
	case len(samples) == 0:
		return Table{}, ErrNoSamples
	case len(samples) != size*size*size*3:
		return Table{}, fmt.Errorf("%w: declared %d³ (%d triples), got %d",
			ErrSampleCount, size, size*size*size, len(samples)/3)
	}

	return Table{Size: size, Data: samples}, nil
}

// ParseString parses LUT text held in memory.
func ParseString(s string) (Table, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile reads and parses the LUT file at path. I/O errors (missing
// file, permissions) are returned as-is wrapped, distinguishable from
// ErrFormat parse errors.
func ParseFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("cubelut: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Identity returns an n³ table mapping every grid coordinate to itself.
func Identity(n int) Table {
	data := make([]float32, 0, n*n*n*3)
	scale := 1 / float32(n-1)
	for b := 0; b < n; b++ {
		for g := 0; g < n; g++ {
			for r := 0; r < n; r++ {
				data = append(data,
					float32(r)*scale,
					float32(g)*scale,
					float32(b)*scale)
			}
		}
	}
	return Table{Size: n, Data: data}
}

// RGBA returns the table padded to four float32 channels per sample with
// alpha fixed at 1, suitable for upload as an RGBA32Float 3D texture.
func (t Table) RGBA() []float32 {
	n := t.Size * t.Size * t.Size
	out := make([]float32, 0, n*4)
	for i := 0; i < n; i++ {
		out = append(out, t.Data[i*3], t.Data[i*3+1], t.Data[i*3+2], 1)
	}
	return out
}

// at returns the triple stored at grid coordinate (ri, gi, bi).
func (t Table) at(ri, gi, bi int) (float32, float32, float32) {
	idx := ((bi*t.Size+gi)*t.Size + ri) * 3
	return t.Data[idx], t.Data[idx+1], t.Data[idx+2]
}

// Lookup samples the table at the normalized color (r, g, b) with
// trilinear interpolation. Inputs are clamped to [0, 1].
func (t Table) Lookup(r, g, b float32) (float32, float32, float32) {
	n := t.Size
	scale := float32(n - 1)

	rp := clamp01(r) * scale
	gp := clamp01(g) * scale
	bp := clamp01(b) * scale

	ri := cellIndex(rp, n)
	gi := cellIndex(gp, n)
	bi := cellIndex(bp, n)

	fr := rp - float32(ri)
	fg := gp - float32(gi)
	fb := bp - float32(bi)

	// 8 cube corners, collapsed pairwise along r, then g, then b.
	var c [2][2][2][3]float32
	for db := 0; db < 2; db++ {
		for dg := 0; dg < 2; dg++ {
			for dr := 0; dr < 2; dr++ {
				cr, cg, cb := t.at(ri+dr, gi+dg, bi+db)
				c[db][dg][dr] = [3]float32{cr, cg, cb}
			}
		}
	}

	var out [3]float32
	for ch := 0; ch < 3; ch++ {
		c00 := lerp(c[0][0][0][ch], c[0][0][1][ch], fr)
		c01 := lerp(c[0][1][0][ch], c[0][1][1][ch], fr)
		c10 := lerp(c[1][0][0][ch], c[1][0][1][ch], fr)
		c11 := lerp(c[1][1][0][ch], c[1][1][1][ch], fr)
		c0 := lerp(c00, c01, fg)
		c1 := lerp(c10, c11, fg)
		out[ch] = lerp(c0, c1, fb)
	}
	return out[0], out[1], out[2]
}

// cellIndex returns the lower grid index for a scaled position, keeping
// the cell fully inside the grid so index+1 is always valid.
func cellIndex(pos float32, n int) int {
	i := int(math32.Floor(pos))
	if i < 0 {
		return 0
	}
	if i > n-2 {
		return n - 2
	}
	return i
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
