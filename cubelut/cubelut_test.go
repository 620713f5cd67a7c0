// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cubelut

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_TwoPointCube(t *testing.T) {
	const src = "LUT_3D_SIZE 2\n" +
		"0 0 0\n" +
		"1 0 0\n" +
		"0 1 0\n" +
		"1 1 0\n" +
		"0 0 1\n" +
		"1 0 1\n" +
		"0 1 1\n" +
		"1 1 1\n"

	tbl, err := ParseString(src)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if tbl.Size != 2 {
		t.Fatalf("Size = %d, want 2", tbl.Size)
	}

	// All combinations of {0,1}³ with red varying fastest.
	want := []float32{
		0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0,
		0, 0, 1, 1, 0, 1, 0, 1, 1, 1, 1, 1,
	}
	if len(tbl.Data) != len(want) {
		t.Fatalf("len(Data) = %d, want %d", len(tbl.Data), len(want))
	}
	for i, v := range want {
		if tbl.Data[i] != v {
			t.Errorf("Data[%d] = %v, want %v", i, tbl.Data[i], v)
		}
	}
}

func TestParse_RoundTrip(t *testing.T) {
	// Generate a LUT file for a known table and parse it back.
	src := Identity(4)

	var sb strings.Builder
	sb.WriteString("# generated\n\nLUT_3D_SIZE 4\n")
	for i := 0; i < len(src.Data); i += 3 {
		fmt.Fprintf(&sb, "%g %g %g\n", src.Data[i], src.Data[i+1], src.Data[i+2])
	}

	got, err := ParseString(sb.String())
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if got.Size != src.Size {
		t.Fatalf("Size = %d, want %d", got.Size, src.Size)
	}
	for i := range src.Data {
		if got.Data[i] != src.Data[i] {
			t.Fatalf("Data[%d] = %v, want %v", i, got.Data[i], src.Data[i])
		}
	}
}

func TestParse_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "no size directive",
			src:  "0 0 0\n1 1 1\n",
			want: ErrNoSize,
		},
		{
			name: "size without samples",
			src:  "LUT_3D_SIZE 2\n# nothing else\n",
			want: ErrNoSamples,
		},
		{
			name: "size below minimum",
			src:  "LUT_3D_SIZE 1\n0 0 0\n",
			want: ErrSizeRange,
		},
		{
			name: "too few samples",
			src:  "LUT_3D_SIZE 4\n0 0 0\n1 1 1\n",
			want: ErrSampleCount,
		},
		{
			name: "too many samples",
			src:  "LUT_3D_SIZE 2\n" + strings.Repeat("0.5 0.5 0.5\n", 9),
			want: ErrSampleCount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.src)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrFormat) {
				t.Errorf("error %v does not match ErrFormat", err)
			}
		})
	}
}

func TestParse_IgnoresNoise(t *testing.T) {
	const src = "TITLE \"test\"\n" +
		"# comment line\n" +
		"\n" +
		"lut_3d_size 2\n" + // case-insensitive
		"DOMAIN_MIN 0 0 0 0\n" + // four tokens, skipped
		"0 0 0\n1 0 0\n0 1 0\n1 1 0\n0 0 1\n1 0 1\n0 1 1\n1 1 1\n" +
		"not numbers here\n"

	tbl, err := ParseString(src)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if tbl.Size != 2 || len(tbl.Data) != 24 {
		t.Fatalf("got size %d with %d floats, want 2 with 24", tbl.Size, len(tbl.Data))
	}
}

func TestParseFile_IOErrorIsNotFormatError(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.cube"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrFormat) {
		t.Errorf("I/O error %v must not match ErrFormat", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error %v does not match fs.ErrNotExist", err)
	}
}

func TestParseFile_ReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.cube")
	id := Identity(2)
	var sb strings.Builder
	sb.WriteString("LUT_3D_SIZE 2\n")
	for i := 0; i < len(id.Data); i += 3 {
		fmt.Fprintf(&sb, "%g %g %g\n", id.Data[i], id.Data[i+1], id.Data[i+2])
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if tbl.Size != 2 {
		t.Fatalf("Size = %d, want 2", tbl.Size)
	}
}

func TestIdentity_GridLookup(t *testing.T) {
	for _, n := range []int{2, 4, 32} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			tbl := Identity(n)
			if len(tbl.Data) != n*n*n*3 {
				t.Fatalf("len(Data) = %d, want %d", len(tbl.Data), n*n*n*3)
			}
			// Sampling the identity cube at any grid coordinate must
			// return that coordinate.
			for bi := 0; bi < n; bi++ {
				for gi := 0; gi < n; gi++ {
					for ri := 0; ri < n; ri++ {
						r := float32(ri) / float32(n-1)
						g := float32(gi) / float32(n-1)
						b := float32(bi) / float32(n-1)
						or, og, ob := tbl.Lookup(r, g, b)
						if !near(or, r) || !near(og, g) || !near(ob, b) {
							t.Fatalf("Lookup(%v,%v,%v) = (%v,%v,%v)",
								r, g, b, or, og, ob)
						}
					}
				}
			}
		})
	}
}

func TestLookup_InterpolatesAndClamps(t *testing.T) {
	tbl := Identity(2)

	r, g, b := tbl.Lookup(0.25, 0.5, 0.75)
	if !near(r, 0.25) || !near(g, 0.5) || !near(b, 0.75) {
		t.Errorf("midpoint lookup = (%v,%v,%v)", r, g, b)
	}

	r, g, b = tbl.Lookup(-1, 2, 0.5)
	if !near(r, 0) || !near(g, 1) || !near(b, 0.5) {
		t.Errorf("clamped lookup = (%v,%v,%v)", r, g, b)
	}
}

func TestRGBA_PadsAlpha(t *testing.T) {
	tbl := Identity(2)
	rgba := tbl.RGBA()
	if len(rgba) != 8*4 {
		t.Fatalf("len = %d, want 32", len(rgba))
	}
	for i := 0; i < len(rgba); i += 4 {
		if rgba[i+3] != 1 {
			t.Fatalf("alpha at %d = %v, want 1", i, rgba[i+3])
		}
		if rgba[i] != tbl.Data[i/4*3] {
			t.Fatalf("red at %d = %v, want %v", i, rgba[i], tbl.Data[i/4*3])
		}
	}
}

func near(got, want float32) bool {
	return math.Abs(float64(got-want)) <= 1e-5
}
