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

package softmax

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/fusedsoftmax/jit/device"
)

func newTestCPU(t testing.TB, cfg device.CPUConfig) *device.CPU {
	t.Helper()
	cpu := device.NewCPU(cfg)
	t.Cleanup(cpu.Close)
	return cpu
}

func newTestOperator(t testing.TB, opts ...Option) *Operator {
	t.Helper()
	op, err := New(opts...)
	require.NoError(t, err)
	return op
}

func normalMatrix(seed uint64, rows, cols, stride int) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	data := make([]float32, (rows-1)*stride+cols)
	for i := range rows {
		for j := range cols {
			data[i*stride+j] = float32(rng.NormFloat64())
		}
	}
	return data
}

func TestSoftmaxMatchesReference(t *testing.T) {
	cpu := newTestCPU(t, device.DefaultCPUConfig())
	op := newTestOperator(t)

	const rows, cols = 1823, 781
	data := normalMatrix(1, rows, cols, cols)
	x, err := Upload(cpu, data, rows, cols, cols)
	require.NoError(t, err)
	defer x.Free()

	y, err := op.Softmax(x)
	require.NoError(t, err)
	defer y.Free()
	assert.Equal(t, []int{rows, cols}, y.Shape)
	assert.Equal(t, []int{cols, 1}, y.Strides)

	got, err := y.Float32s()
	require.NoError(t, err)
	want := Reference(data, rows, cols, cols)

	var maxRel float64
	for i := range got {
		maxRel = math.Max(maxRel, math.Abs(float64(got[i])-want[i])/want[i])
	}
	assert.LessOrEqual(t, maxRel, 1e-3, "max relative error")

	for i := range rows {
		var sum float64
		for _, v := range got[i*cols : (i+1)*cols] {
			sum += float64(v)
		}
		if math.Abs(sum-1) > 1e-4 {
			t.Fatalf("row %d sums to %v", i, sum)
		}
	}
}

func TestSoftmaxIrregularWidths(t *testing.T) {
	cpu := newTestCPU(t, device.DefaultCPUConfig())
	op := newTestOperator(t)

	for _, cols := range []int{1, 2, 3, 7, 31, 33, 127, 1000, 2047, 2049, 4097} {
		t.Run(fmt.Sprint(cols), func(t *testing.T) {
			const rows = 5
			stride := cols + 3
			data := normalMatrix(uint64(cols), rows, cols, stride)
			x, err := Upload(cpu, data, rows, cols, stride)
			require.NoError(t, err)
			defer x.Free()

			y, err := op.Softmax(x)
			require.NoError(t, err)
			defer y.Free()

			got, _ := y.Float32s()
			want := Reference(data, rows, cols, stride)
			for i := range got {
				require.InDelta(t, want[i], float64(got[i]), 1e-6, "element %d", i)
			}
		})
	}
}

// TestSoftmaxIgnoresPadding checks that padding columns are never read:
// garbage padding and a buffer ending at the last valid element give the
// same output as clean, fully padded input.
func TestSoftmaxIgnoresPadding(t *testing.T) {
	cpu := newTestCPU(t, device.DefaultCPUConfig())
	op := newTestOperator(t)

	const rows, cols, stride = 3, 5, 8
	values := [][]float32{
		{0.5, -1, 2, 3, -0.25},
		{10, 10, 10, 10, 10},
		{-3, 0, 3, 6, 9},
	}
	nan, inf := float32(math.NaN()), float32(math.Inf(1))

	clean := make([]float32, rows*stride)
	garbage := make([]float32, (rows-1)*stride+cols)
	for i, row := range values {
		copy(clean[i*stride:], row)
		copy(garbage[i*stride:], row)
		if i < rows-1 {
			copy(garbage[i*stride+cols:(i+1)*stride], []float32{nan, inf, 1e30})
		}
	}

	run := func(data []float32) []float32 {
		x, err := Upload(cpu, data, rows, cols, stride)
		require.NoError(t, err)
		defer x.Free()
		y, err := op.Softmax(x)
		require.NoError(t, err)
		defer y.Free()
		out, err := y.Float32s()
		require.NoError(t, err)
		return out
	}

	want := run(clean)
	got := run(garbage)
	assert.Equal(t, want, got)
	for _, v := range got {
		assert.False(t, math.IsNaN(float64(v)))
	}
}

func TestSoftmaxDeterministic(t *testing.T) {
	cpu := newTestCPU(t, device.CPUConfig{Workers: 8})
	op := newTestOperator(t)

	const rows, cols = 257, 3000
	data := normalMatrix(7, rows, cols, cols)
	x, err := Upload(cpu, data, rows, cols, cols)
	require.NoError(t, err)
	defer x.Free()

	first, err := op.Softmax(x)
	require.NoError(t, err)
	defer first.Free()
	second, err := op.Softmax(x)
	require.NoError(t, err)
	defer second.Free()

	a, _ := first.Float32s()
	b, _ := second.Float32s()
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			t.Fatalf("element %d differs between calls: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSoftmaxSingleColumn(t *testing.T) {
	cpu := newTestCPU(t, device.DefaultCPUConfig())
	op := newTestOperator(t)

	data := []float32{-1e6, 0, 3.5, 1e6}
	x, err := Upload(cpu, data, 4, 1, 1)
	require.NoError(t, err)
	defer x.Free()

	y, err := op.Softmax(x)
	require.NoError(t, err)
	defer y.Free()
	got, _ := y.Float32s()
	assert.Equal(t, []float32{1, 1, 1, 1}, got)
}

func TestSoftmaxInputUnchanged(t *testing.T) {
	cpu := newTestCPU(t, device.DefaultCPUConfig())
	op := newTestOperator(t)

	data := normalMatrix(3, 4, 10, 10)
	x, err := Upload(cpu, data, 4, 10, 10)
	require.NoError(t, err)
	defer x.Free()
	y, err := op.Softmax(x)
	require.NoError(t, err)
	defer y.Free()

	after, _ := x.Float32s()
	assert.Equal(t, data, after)
}

func TestSoftmaxValidation(t *testing.T) {
	cpu := newTestCPU(t, device.DefaultCPUConfig())
	op := newTestOperator(t)

	buf, err := cpu.Alloc(12)
	require.NoError(t, err)
	defer buf.Free()
	freed, err := cpu.Alloc(12)
	require.NoError(t, err)
	require.NoError(t, freed.Free())

	matrix := func(shape, strides []int, dtype DType) *Matrix {
		return &Matrix{Buffer: buf, Shape: shape, Strides: strides, DType: dtype}
	}
	tests := []struct {
		name string
		in   *Matrix
		want error
	}{
		{"nil matrix", nil, ErrInvalidInput},
		{"nil buffer", &Matrix{Shape: []int{3, 4}, Strides: []int{4, 1}}, ErrInvalidInput},
		{"rank 1", matrix([]int{12}, []int{1}, Float32), ErrInvalidInput},
		{"rank 3", matrix([]int{1, 3, 4}, []int{12, 4, 1}, Float32), ErrInvalidInput},
		{"float16", matrix([]int{3, 4}, []int{4, 1}, Float16), ErrInvalidInput},
		{"float64", matrix([]int{3, 4}, []int{4, 1}, Float64), ErrInvalidInput},
		{"zero rows", matrix([]int{0, 4}, []int{4, 1}, Float32), ErrInvalidInput},
		{"negative rows", matrix([]int{-1, 4}, []int{4, 1}, Float32), ErrInvalidInput},
		{"negative cols", matrix([]int{3, -4}, []int{4, 1}, Float32), ErrInvalidInput},
		{"zero cols", matrix([]int{3, 0}, []int{4, 1}, Float32), ErrInvalidShape},
		{"column stride", matrix([]int{3, 4}, []int{4, 2}, Float32), ErrInvalidInput},
		{"row stride too small", matrix([]int{3, 4}, []int{3, 1}, Float32), ErrInvalidInput},
		{"buffer too short", matrix([]int{4, 4}, []int{4, 1}, Float32), ErrInvalidInput},
		{"padded buffer too short", matrix([]int{3, 4}, []int{5, 1}, Float32), ErrInvalidInput},
		{"freed buffer", &Matrix{Buffer: freed, Shape: []int{3, 4}, Strides: []int{4, 1}}, ErrInvalidInput},
	}

	before := cpu.MemStats()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := op.Softmax(tt.in)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	after := cpu.MemStats()
	assert.Equal(t, before.Allocs, after.Allocs, "validation failures must not allocate")
	assert.Equal(t, 0, op.Cache().Len(), "validation failures must not build kernels")
}

func TestSoftmaxResourceExhausted(t *testing.T) {
	// Room for the 4x4 input and not for the output.
	cpu := newTestCPU(t, device.CPUConfig{MemoryLimit: 80})
	op := newTestOperator(t)

	x, err := Upload(cpu, normalMatrix(1, 4, 4, 4), 4, 4, 4)
	require.NoError(t, err)
	defer x.Free()

	_, err = op.Softmax(x)
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.ErrorContains(t, err, device.ErrOutOfMemory.Error())
}

func TestSoftmaxBuildFailure(t *testing.T) {
	cpu := newTestCPU(t, device.CPUConfig{MaxTileWidth: 16})
	op := newTestOperator(t)

	wide, err := Upload(cpu, normalMatrix(1, 2, 20, 20), 2, 20, 20)
	require.NoError(t, err)
	defer wide.Free()
	live := cpu.MemStats().Live

	_, err = op.Softmax(wide)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKernelBuild)
	assert.ErrorIs(t, err, device.ErrCompile)
	assert.Equal(t, live, cpu.MemStats().Live, "output must be freed after a failed build")

	narrow, err := Upload(cpu, normalMatrix(2, 2, 5, 5), 2, 5, 5)
	require.NoError(t, err)
	defer narrow.Free()
	y, err := op.Softmax(narrow)
	require.NoError(t, err, "a failed key must not affect other keys")
	require.NoError(t, y.Free())
}

func TestSoftmaxConcurrent(t *testing.T) {
	cpu := newTestCPU(t, device.DefaultCPUConfig())
	op := newTestOperator(t)

	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			rows, cols := 3+i, 1+37*i
			data := normalMatrix(uint64(i), rows, cols, cols)
			x, err := Upload(cpu, data, rows, cols, cols)
			if err != nil {
				return err
			}
			defer x.Free()
			y, err := op.Softmax(x)
			if err != nil {
				return err
			}
			defer y.Free()
			got, err := y.Float32s()
			if err != nil {
				return err
			}
			want := Reference(data, rows, cols, cols)
			for j := range got {
				if math.Abs(float64(got[j])-want[j]) > 1e-6 {
					return fmt.Errorf("shape %dx%d element %d: got %v want %v", rows, cols, j, got[j], want[j])
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestSoftmaxSharedCache(t *testing.T) {
	cpu := newTestCPU(t, device.DefaultCPUConfig())
	cache := NewKernelCache()
	a := newTestOperator(t, WithCache(cache))
	b := newTestOperator(t, WithCache(cache))

	x, err := Upload(cpu, normalMatrix(1, 2, 100, 100), 2, 100, 100)
	require.NoError(t, err)
	defer x.Free()
	for _, op := range []*Operator{a, b} {
		y, err := op.Softmax(x)
		require.NoError(t, err)
		require.NoError(t, y.Free())
	}
	assert.Same(t, cache, a.Cache())
	assert.Equal(t, 1, cache.Len())
}

func TestNewRejectsBadParallelism(t *testing.T) {
	_, err := New(WithParallelism(ParallelismTable{{MinTileWidth: 0, Level: 8}, {MinTileWidth: 64, Level: 2}}))
	assert.Error(t, err)
}

func TestSoftmaxCustomParallelism(t *testing.T) {
	cpu := newTestCPU(t, device.DefaultCPUConfig())
	op := newTestOperator(t, WithParallelism(ParallelismTable{{MinTileWidth: 0, Level: 1}, {MinTileWidth: 64, Level: 2}}))

	x, err := Upload(cpu, normalMatrix(1, 2, 100, 100), 2, 100, 100)
	require.NoError(t, err)
	defer x.Free()
	y, err := op.Softmax(x)
	require.NoError(t, err)
	defer y.Free()

	assert.Equal(t, []Key{{TileWidth: 128, Parallelism: 2, Device: cpu.ID()}}, op.Cache().Keys())
}

func TestSoftmaxMetricsAndLogging(t *testing.T) {
	cpu := newTestCPU(t, device.DefaultCPUConfig())
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	op := newTestOperator(t, WithRegisterer(reg), WithLogger(logger))

	x, err := Upload(cpu, normalMatrix(1, 6, 10, 10), 6, 10, 10)
	require.NoError(t, err)
	defer x.Free()
	for range 2 {
		y, err := op.Softmax(x)
		require.NoError(t, err)
		require.NoError(t, y.Free())
	}
	_, err = op.Softmax(nil)
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(op.metrics.launches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(op.metrics.launches.WithLabelValues("error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(op.metrics.rows))
	assert.Equal(t, 1.0, testutil.ToFloat64(op.cache.metrics.builds.WithLabelValues("ok")))

	n, err := testutil.GatherAndCount(reg, "softmax_launch_duration_seconds", "softmax_kernel_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n) // one histogram, hit and miss series

	assert.Contains(t, logs.String(), "kernel built")
	assert.Contains(t, logs.String(), "softmax launch")
}

func BenchmarkSoftmax(b *testing.B) {
	cpu := newTestCPU(b, device.DefaultCPUConfig())
	op := newTestOperator(b, WithLogger(slog.New(slog.DiscardHandler)))

	const rows = 4096
	for _, cols := range []int{256, 1024, 4096} {
		data := normalMatrix(1, rows, cols, cols)
		bytesMoved := float64(2 * rows * cols * 4)

		b.Run(fmt.Sprintf("fused/N=%d", cols), func(b *testing.B) {
			x, err := Upload(cpu, data, rows, cols, cols)
			require.NoError(b, err)
			defer x.Free()
			for b.Loop() {
				y, err := op.Softmax(x)
				if err != nil {
					b.Fatal(err)
				}
				_ = y.Free()
			}
			b.ReportMetric(bytesMoved*float64(b.N)/b.Elapsed().Seconds()/1e9, "GB/s")
		})

		b.Run(fmt.Sprintf("naive/N=%d", cols), func(b *testing.B) {
			for b.Loop() {
				_ = NaiveSoftmax(data, rows, cols, cols)
			}
			b.ReportMetric(bytesMoved*float64(b.N)/b.Elapsed().Seconds()/1e9, "GB/s")
		})
	}
}
