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

package device

import (
	"fmt"
	stdmath "math"
	"sync"

	"github.com/pkg/errors"

	"github.com/ajroetker/fusedsoftmax/hwy"
	"github.com/ajroetker/fusedsoftmax/hwy/contrib/math"
	"github.com/ajroetker/fusedsoftmax/jit/ir"
)

// step executes one IR node for one program instance.
type step func(f *frame, a *launchArgs)

// frame holds the values of one program instance, indexed by node ID.
type frame struct {
	pid    int
	ints   []int
	floats []float32
	idx    []hwy.Vec[int32]
	tiles  []hwy.Vec[float32]
	masks  []hwy.Mask[float32]
}

func newFrame(n int) *frame {
	return &frame{
		ints:   make([]int, n),
		floats: make([]float32, n),
		idx:    make([]hwy.Vec[int32], n),
		tiles:  make([]hwy.Vec[float32], n),
		masks:  make([]hwy.Mask[float32], n),
	}
}

// launchArgs are the bound arguments, indexed by parameter position.
type launchArgs struct {
	bufs [][]float32
	ints []int
}

type cpuKernel struct {
	dev     *CPU
	fn      *ir.IRFunction
	source  string
	warps   int
	nvalues int
	steps   []step
	frames  sync.Pool
}

func (k *cpuKernel) Name() string   { return k.fn.Name }
func (k *cpuKernel) Source() string { return k.source }
func (k *cpuKernel) TileWidth() int { return k.fn.TileWidth }
func (k *cpuKernel) NumWarps() int  { return k.warps }

func (k *cpuKernel) String() string {
	return fmt.Sprintf("%s[BLOCK=%d,num_warps=%d]@%s", k.fn.Name, k.fn.TileWidth, k.warps, k.dev.ID())
}

// Launch binds args, then runs grid.X program instances on the device's
// worker pool and waits for all of them.
func (k *cpuKernel) Launch(grid Grid, args ...any) error {
	if grid.X < 0 || grid.Y < 0 || grid.Z < 0 || grid.Y > 1 || grid.Z > 1 {
		return errors.Wrapf(ErrInvalidLaunch, "Launch %s: grid %s: the CPU device runs 1-D grids only", k.fn.Name, grid)
	}
	a, err := k.bind(args)
	if err != nil {
		return err
	}
	err = k.dev.pool.Dispatch(grid.X, func(pid int) {
		f := k.frames.Get().(*frame)
		f.pid = pid
		for _, s := range k.steps {
			s(f, a)
		}
		k.frames.Put(f)
	})
	if err != nil {
		return errors.Wrapf(err, "Launch %s", k.fn.Name)
	}
	return nil
}

// bind checks args positionally against the kernel parameters, like
// setting kernel arguments by index on a driver.
func (k *cpuKernel) bind(args []any) (*launchArgs, error) {
	params := k.fn.Params
	if len(args) != len(params) {
		return nil, errors.Wrapf(ErrInvalidLaunch, "Launch %s: got %d arguments, want %d",
			k.fn.Name, len(args), len(params))
	}
	a := &launchArgs{
		bufs: make([][]float32, len(params)),
		ints: make([]int, len(params)),
	}
	for i, p := range params {
		switch p.Kind {
		case ir.ParamFloatPtr:
			buf, ok := args[i].(*Buffer)
			if !ok || buf == nil {
				return nil, errors.Wrapf(ErrInvalidLaunch, "Launch %s: argument %d (%s): want *Buffer, got %T",
					k.fn.Name, i, p.Name, args[i])
			}
			if buf.Device() != Device(k.dev) {
				return nil, errors.Wrapf(ErrInvalidLaunch, "Launch %s: argument %d (%s): buffer belongs to another device",
					k.fn.Name, i, p.Name)
			}
			data, err := buf.Float32s()
			if err != nil {
				return nil, errors.Wrapf(err, "Launch %s: argument %d (%s)", k.fn.Name, i, p.Name)
			}
			a.bufs[i] = data
		case ir.ParamInt:
			v, ok := toInt32(args[i])
			if !ok {
				return nil, errors.Wrapf(ErrInvalidLaunch, "Launch %s: argument %d (%s): want a 32-bit integer, got %T(%v)",
					k.fn.Name, i, p.Name, args[i], args[i])
			}
			a.ints[i] = v
		default:
			return nil, errors.Wrapf(ErrInvalidLaunch, "Launch %s: argument %d (%s): unsupported parameter kind %s",
				k.fn.Name, i, p.Name, p.Kind)
		}
	}
	return a, nil
}

func toInt32(arg any) (int, bool) {
	var v int64
	switch x := arg.(type) {
	case int:
		v = int64(x)
	case int32:
		v = int64(x)
	case int64:
		v = x
	default:
		return 0, false
	}
	if v < stdmath.MinInt32 || v > stdmath.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

// rowSlice returns buf from off on, or nil when off is outside buf. Masked
// loads and stores never touch lanes past the end of the slice.
func rowSlice(buf []float32, off int) []float32 {
	if off < 0 || off > len(buf) {
		return nil
	}
	return buf[off:]
}

// lower returns the step executing node.
func (k *cpuKernel) lower(node *ir.IRNode) (step, error) {
	id := node.ID
	w := k.fn.TileWidth
	warps := k.warps
	in := func(i int) int { return node.Inputs[i].ID }
	param := func(i int) int {
		_, idx, _ := k.fn.Param(node.ParamNames[i])
		return idx
	}

	switch node.Op {
	case ir.OpProgramID:
		return func(f *frame, _ *launchArgs) {
			f.ints[id] = f.pid
		}, nil

	case ir.OpIota:
		lanes := hwy.Iota[int32](w)
		return func(f *frame, _ *launchArgs) {
			f.idx[id] = lanes
		}, nil

	case ir.OpLessThanN:
		src, n := in(0), param(0)
		return func(f *frame, a *launchArgs) {
			f.masks[id] = hwy.RebindMask[float32](hwy.LessThanN(f.idx[src], int32(a.ints[n])))
		}, nil

	case ir.OpMaskLoad:
		row, mask := in(0), in(2)
		ptr, stride := param(0), param(1)
		fill := float32(node.Fill)
		return func(f *frame, a *launchArgs) {
			src := rowSlice(a.bufs[ptr], f.ints[row]*a.ints[stride])
			f.tiles[id] = hwy.MaskLoadOr(f.masks[mask], src, fill)
		}, nil

	case ir.OpReduceMax:
		src := in(0)
		return func(f *frame, _ *launchArgs) {
			f.floats[id] = hwy.ReduceMaxBlocked(f.tiles[src], warps)
		}, nil

	case ir.OpReduceSum:
		src := in(0)
		return func(f *frame, _ *launchArgs) {
			f.floats[id] = hwy.ReduceSumBlocked(f.tiles[src], warps)
		}, nil

	case ir.OpSub:
		t, s := in(0), in(1)
		return func(f *frame, _ *launchArgs) {
			f.tiles[id] = hwy.Sub(f.tiles[t], hwy.Set(w, f.floats[s]))
		}, nil

	case ir.OpDiv:
		t, s := in(0), in(1)
		return func(f *frame, _ *launchArgs) {
			f.tiles[id] = hwy.Div(f.tiles[t], hwy.Set(w, f.floats[s]))
		}, nil

	case ir.OpExp:
		src := in(0)
		return func(f *frame, _ *launchArgs) {
			f.tiles[id] = math.BaseExpVec(f.tiles[src])
		}, nil

	case ir.OpMaskStore:
		row, mask, val := in(0), in(2), in(3)
		ptr, stride := param(0), param(1)
		return func(f *frame, a *launchArgs) {
			dst := rowSlice(a.bufs[ptr], f.ints[row]*a.ints[stride])
			hwy.MaskStore(f.masks[mask], f.tiles[val], dst)
		}, nil

	default:
		return nil, fmt.Errorf("no CPU lowering for %s", node.Op)
	}
}
