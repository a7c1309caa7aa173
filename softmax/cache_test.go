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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/fusedsoftmax/jit/device"
	"github.com/ajroetker/fusedsoftmax/jit/ir"
)

// countingDevice counts Compile calls, optionally slows them down and
// fails a number of compiles per tile width.
type countingDevice struct {
	device.Device
	compiles atomic.Int32
	delay    time.Duration

	mu       sync.Mutex
	failures map[int]int
}

func newCountingDevice(t *testing.T) *countingDevice {
	t.Helper()
	cpu := device.NewCPU(device.DefaultCPUConfig())
	t.Cleanup(cpu.Close)
	return &countingDevice{Device: cpu, failures: make(map[int]int)}
}

func (d *countingDevice) failNext(tileWidth, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[tileWidth] = n
}

func (d *countingDevice) Compile(fn *ir.IRFunction, opts device.CompileOptions) (device.Kernel, error) {
	d.compiles.Add(1)
	time.Sleep(d.delay)
	d.mu.Lock()
	if d.failures[fn.TileWidth] > 0 {
		d.failures[fn.TileWidth]--
		d.mu.Unlock()
		return nil, errors.Wrapf(device.ErrCompile, "injected failure for BLOCK=%d", fn.TileWidth)
	}
	d.mu.Unlock()
	return d.Device.Compile(fn, opts)
}

func TestGetOrBuildConcurrentSingleBuild(t *testing.T) {
	dev := newCountingDevice(t)
	dev.delay = 20 * time.Millisecond
	cache := NewKernelCache()
	spec, err := Specialize(781)
	require.NoError(t, err)

	const callers = 64
	kernels := make([]device.Kernel, callers)
	var g errgroup.Group
	for i := range callers {
		g.Go(func() error {
			k, err := cache.GetOrBuild(spec, dev)
			kernels[i] = k
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), dev.compiles.Load(), "concurrent misses must share one build")
	assert.Equal(t, 1, cache.Len())
	for i := range callers {
		assert.Same(t, kernels[0], kernels[i])
	}
}

func TestGetOrBuildDistinctKeys(t *testing.T) {
	dev := newCountingDevice(t)
	cache := NewKernelCache()

	for _, n := range []int{5, 8, 700, 1000, 2049, 3000} {
		spec, err := Specialize(n)
		require.NoError(t, err)
		_, err = cache.GetOrBuild(spec, dev)
		require.NoError(t, err)
	}
	// 5, 8 -> 8; 700, 1000 -> 1024; 2049, 3000 -> 4096
	assert.Equal(t, int32(3), dev.compiles.Load())

	keys := cache.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, Key{TileWidth: 8, Parallelism: 4, Device: dev.ID()}, keys[0])
	assert.Equal(t, Key{TileWidth: 1024, Parallelism: 4, Device: dev.ID()}, keys[1])
	assert.Equal(t, Key{TileWidth: 4096, Parallelism: 16, Device: dev.ID()}, keys[2])
}

func TestGetOrBuildFailureIsolation(t *testing.T) {
	dev := newCountingDevice(t)
	cache := NewKernelCache()
	failing, _ := Specialize(50) // BLOCK=64
	healthy, _ := Specialize(5)  // BLOCK=8
	dev.failNext(64, 1)

	_, err := cache.GetOrBuild(failing, dev)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKernelBuild)
	assert.ErrorIs(t, err, device.ErrCompile)
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, failing.Key(dev), buildErr.Key)
	assert.Equal(t, 0, cache.Len(), "failed builds are not cached")

	k, err := cache.GetOrBuild(healthy, dev)
	require.NoError(t, err)
	assert.Equal(t, 8, k.TileWidth())

	// The failed key is retried on the next call.
	k, err = cache.GetOrBuild(failing, dev)
	require.NoError(t, err)
	assert.Equal(t, 64, k.TileWidth())
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, int32(3), dev.compiles.Load())
}

func TestGetOrBuildNilDevice(t *testing.T) {
	spec, _ := Specialize(5)
	_, err := NewKernelCache().GetOrBuild(spec, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	dev := newCountingDevice(t)
	cache := NewKernelCache(WithRegisterer(reg))
	spec, _ := Specialize(100)
	dev.failNext(128, 1)

	_, err := cache.GetOrBuild(spec, dev)
	require.Error(t, err)
	for range 3 {
		_, err = cache.GetOrBuild(spec, dev)
		require.NoError(t, err)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(cache.metrics.lookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(cache.metrics.lookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cache.metrics.builds.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cache.metrics.builds.WithLabelValues("error")))

	n, err := testutil.GatherAndCount(reg, "softmax_kernel_build_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
