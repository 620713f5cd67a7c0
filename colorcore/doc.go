// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package colorcore holds the backend-independent color math of the
// grading pipeline: YCbCr-to-RGB matrices, range normalization, and the
// display-only tone lift.
//
// The GPU kernels in backend/wgpu implement the same math in WGSL; the
// functions here are the reference used by the software backend and by
// tests. Keeping one numeric definition in a leaf package is what makes
// the two kernel implementations comparable.
package colorcore
