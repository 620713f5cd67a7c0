// Package grade provides a real-time color grading preview pipeline
// for Go.
//
// # Overview
//
// grade applies a 3D lookup table (LUT) to a live stream of video
// frames and presents the result with latest-frame-wins scheduling.
// It is built for the monitoring path of a capture workflow: frames
// arrive faster than they can always be rendered, and the newest frame
// always wins over a backlog.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/grade"
//	    _ "github.com/gogpu/grade/backend/wgpu" // GPU backend, optional
//	)
//
//	p, err := grade.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	p.LoadLUT("look.cube")
//	p.Publish(frameFromCapture) // from the capture callback
//
// # Pixel Formats
//
// Four capture layouts are supported: packed 8-bit BGRA, 10-bit 4:2:2
// biplanar (P210-style), and 8-bit 4:2:0 biplanar in both video-range
// BT.709 and full-range BT.601 flavors. Classification is a closed
// table; unknown formats drop the frame and the pipeline keeps
// running.
//
// # Backends
//
// Rendering backends register like database drivers: importing
// backend/wgpu registers the GPU backend, and the software reference
// backend is always present. The default selection prefers the GPU
// and falls back to software when no adapter opens.
//
// # Architecture
//
// The module is organized into:
//   - Public API: Pipeline, Store, options (this package)
//   - cubelut: .cube parsing and trilinear sampling
//   - frame: pixel-format classification
//   - backend, backend/wgpu: texture binding and the two color programs
//   - present: latest-frame-wins scheduling with bounded in-flight
//   - capture: synthetic frame sources for tests and demos
package grade
