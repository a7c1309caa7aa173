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

// Package softmax computes row-wise softmax of float32 matrices with a
// fused, shape-specialized kernel.
//
// Every row is read once and written once: a program instance loads the
// row into a tile of TileWidth lanes (the next power of two of the column
// count), masks the lanes past the end with -inf, and computes
// exp(x - max(x)) / sum(exp(x - max(x))) before storing the valid lanes.
// Kernels are built per shape class and kept in a KernelCache.
//
// Basic usage:
//
//	cpu := device.NewCPU(device.DefaultCPUConfig())
//	defer cpu.Close()
//
//	op, err := softmax.New()
//	x, err := softmax.Upload(cpu, data, rows, cols, cols)
//	y, err := op.Softmax(x)
//	defer y.Free()
package softmax

import (
	"log/slog"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/ajroetker/fusedsoftmax/jit/device"
)

// Operator launches softmax kernels. Safe for concurrent use.
type Operator struct {
	cache   *KernelCache
	table   ParallelismTable
	logger  *slog.Logger
	metrics *launchMetrics
}

// New returns an Operator. Without WithCache it owns a fresh KernelCache
// configured with the same logger and registerer.
func New(opts ...Option) (*Operator, error) {
	o := newOptions(opts)
	if err := o.parallelism.Validate(); err != nil {
		return nil, errors.Wrap(err, "New")
	}
	cache := o.cache
	if cache == nil {
		cache = NewKernelCache(WithLogger(o.logger), WithRegisterer(o.registerer))
	}
	return &Operator{
		cache:   cache,
		table:   o.parallelism,
		logger:  o.logger,
		metrics: newLaunchMetrics(o.registerer),
	}, nil
}

// Cache returns the operator's kernel cache.
func (op *Operator) Cache() *KernelCache {
	return op.cache
}

// Softmax returns a new contiguous matrix holding the row-wise softmax of
// in, allocated on in's device. The caller owns the result and must Free
// it. in is not modified.
//
// Errors: ErrInvalidInput or ErrInvalidShape for bad inputs (checked
// before any allocation), ErrResourceExhausted when the output cannot be
// allocated and ErrKernelBuild when the kernel cannot be built.
func (op *Operator) Softmax(in *Matrix) (out *Matrix, err error) {
	start := time.Now()
	defer func() {
		op.metrics.launches.WithLabelValues(statusLabel(err)).Inc()
		if err == nil {
			op.metrics.rows.Add(float64(out.Rows()))
			op.metrics.launchDuration.Observe(time.Since(start).Seconds())
		}
	}()

	rows, cols, stride, err := validate(in)
	if err != nil {
		return nil, err
	}
	spec, err := op.table.Specialize(cols)
	if err != nil {
		return nil, err
	}

	dev := in.Buffer.Device()
	out, err = NewMatrix(dev, rows, cols)
	if err != nil {
		return nil, errors.Wrapf(ErrResourceExhausted, "Softmax: allocating %dx%d output: %v", rows, cols, err)
	}

	kernel, err := op.cache.GetOrBuild(spec, dev)
	if err != nil {
		_ = out.Free()
		return nil, err
	}

	op.logger.Debug("softmax launch",
		"rows", rows, "cols", cols, "stride", stride, "key", spec.Key(dev).String())
	if err := kernel.Launch(device.Grid1D(rows), out.Buffer, in.Buffer, cols, stride, rows, cols); err != nil {
		_ = out.Free()
		return nil, errors.Wrap(err, "Softmax")
	}
	return out, nil
}

// validate checks in and returns its rows, columns and row stride.
func validate(in *Matrix) (rows, cols, stride int, err error) {
	fail := func(format string, args ...any) (int, int, int, error) {
		return 0, 0, 0, errors.Wrapf(ErrInvalidInput, "Softmax: "+format, args...)
	}
	if in == nil || in.Buffer == nil {
		return fail("nil matrix or buffer")
	}
	if len(in.Shape) != 2 || len(in.Strides) != 2 {
		return fail("want rank 2, got shape %v strides %v", in.Shape, in.Strides)
	}
	if in.DType != Float32 {
		return fail("want float32, got %s", in.DType)
	}
	rows, cols, stride = in.Shape[0], in.Shape[1], in.Strides[0]
	if rows <= 0 {
		return fail("%d rows", rows)
	}
	if cols < 0 {
		return fail("%d columns", cols)
	}
	if cols == 0 {
		return 0, 0, 0, errors.Wrap(ErrInvalidShape, "Softmax: 0 columns")
	}
	if in.Strides[1] != 1 {
		return fail("column stride %d, want 1", in.Strides[1])
	}
	if stride < cols {
		return fail("row stride %d smaller than %d columns", stride, cols)
	}
	if rows > math.MaxInt32 || stride > math.MaxInt32 {
		return fail("%d rows with stride %d do not fit 32-bit kernel arguments", rows, stride)
	}
	if _, err := in.Buffer.Float32s(); err != nil {
		return fail("%v", err)
	}
	if need := int64(rows-1)*int64(stride) + int64(cols); need > int64(in.Buffer.Len()) {
		return fail("buffer holds %d elements, shape needs %d", in.Buffer.Len(), need)
	}
	return rows, cols, stride, nil
}
