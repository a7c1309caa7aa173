// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package device defines what a kernel cache and launcher need from an
// accelerator: buffers, compilation of an ir.IRFunction into a Kernel and
// synchronous launches over a grid of program instances.
//
// CPU is the reference backend. It runs every program instance on a
// persistent worker pool, one tile of lanes at a time.
package device

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ajroetker/fusedsoftmax/jit/ir"
)

var (
	// ErrCompile is returned when a device cannot compile a kernel.
	ErrCompile = errors.New("kernel compilation failed")

	// ErrOutOfMemory is returned when an allocation exceeds the device's
	// memory limit.
	ErrOutOfMemory = errors.New("device out of memory")

	// ErrInvalidLaunch is returned when launch arguments do not match the
	// kernel's parameters or the grid is not supported.
	ErrInvalidLaunch = errors.New("invalid kernel launch")

	// ErrFreed is returned when a buffer is used after Free.
	ErrFreed = errors.New("buffer already freed")

	// ErrOutOfBounds is returned when a host copy does not fit a buffer.
	ErrOutOfBounds = errors.New("copy out of buffer bounds")
)

// Device is an accelerator that owns memory and compiles kernels.
// Implementations must be safe for concurrent use.
type Device interface {
	// ID identifies the device; kernels compiled for one ID only run there.
	ID() string

	// Alloc returns a zeroed buffer of n float32 elements.
	Alloc(n int) (*Buffer, error)

	// Compile lowers fn for this device.
	Compile(fn *ir.IRFunction, opts CompileOptions) (Kernel, error)
}

// Kernel is a compiled, immutable kernel. Launch may be called
// concurrently.
type Kernel interface {
	Name() string

	// Source is the rendered kernel text (ir.Emit).
	Source() string

	TileWidth() int
	NumWarps() int

	// Launch runs one program instance per grid index and returns once all
	// of them have finished. args bind positionally to the kernel's
	// parameters: *Buffer for pointers, int/int32/int64 for integers.
	Launch(grid Grid, args ...any) error
}

// CompileOptions are the compile-time launch parameters of a kernel.
type CompileOptions struct {
	// NumWarps is the number of cooperating lane groups per program
	// instance. Block reductions combine one partial per warp.
	NumWarps int
}

// Grid is the number of program instances along each axis.
type Grid struct {
	X, Y, Z int
}

// Grid1D returns a grid of x instances along axis 0.
func Grid1D(x int) Grid {
	return Grid{X: x, Y: 1, Z: 1}
}

// Size returns the total number of program instances. Zero Y and Z count
// as one.
func (g Grid) Size() int {
	return g.X * max(g.Y, 1) * max(g.Z, 1)
}

func (g Grid) String() string {
	return fmt.Sprintf("(%d, %d, %d)", g.X, max(g.Y, 1), max(g.Z, 1))
}
