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
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/ajroetker/fusedsoftmax/jit/device"
	"github.com/ajroetker/fusedsoftmax/jit/ir"
)

// KernelCache maps specialization keys to compiled kernels. Each key is
// built at most once and never replaced or evicted. Safe for concurrent
// use.
type KernelCache struct {
	mu      sync.RWMutex
	kernels map[Key]device.Kernel

	group   singleflight.Group
	logger  *slog.Logger
	metrics *cacheMetrics
}

// NewKernelCache returns an empty cache. It honours WithLogger and
// WithRegisterer.
func NewKernelCache(opts ...Option) *KernelCache {
	o := newOptions(opts)
	return &KernelCache{
		kernels: make(map[Key]device.Kernel),
		logger:  o.logger,
		metrics: newCacheMetrics(o.registerer),
	}
}

func (c *KernelCache) lookup(key Key) (device.Kernel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.kernels[key]
	return k, ok
}

// GetOrBuild returns the kernel for spec on dev, building it on first use.
//
// Concurrent callers missing on the same key share one build. Builds run
// outside the table lock, so a slow build never blocks lookups or builds of
// other keys. A failed build returns a *BuildError and caches nothing.
func (c *KernelCache) GetOrBuild(spec Specialization, dev device.Device) (device.Kernel, error) {
	if dev == nil {
		return nil, errors.Wrap(ErrInvalidInput, "GetOrBuild: nil device")
	}
	key := spec.Key(dev)
	if k, ok := c.lookup(key); ok {
		c.metrics.lookups.WithLabelValues("hit").Inc()
		return k, nil
	}
	c.metrics.lookups.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A flight for this key may have finished between lookup and Do.
		if k, ok := c.lookup(key); ok {
			return k, nil
		}
		start := time.Now()
		k, err := build(spec, dev)
		elapsed := time.Since(start)
		c.metrics.builds.WithLabelValues(statusLabel(err)).Inc()
		if err != nil {
			c.logger.Warn("kernel build failed", "key", key.String(), "error", err)
			return nil, &BuildError{Key: key, Err: err}
		}
		c.metrics.buildDuration.Observe(elapsed.Seconds())
		c.logger.Debug("kernel built", "key", key.String(), "duration", elapsed)
		return c.insert(key, k), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(device.Kernel), nil
}

// insert stores k unless key is already present; the first kernel wins.
func (c *KernelCache) insert(key Key, k device.Kernel) device.Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.kernels[key]; ok {
		return existing
	}
	c.kernels[key] = k
	return k
}

func build(spec Specialization, dev device.Device) (device.Kernel, error) {
	fn, err := ir.BuildSoftmax(spec.TileWidth)
	if err != nil {
		return nil, err
	}
	return dev.Compile(fn, device.CompileOptions{NumWarps: spec.Parallelism})
}

// Len returns the number of cached kernels.
func (c *KernelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kernels)
}

// Keys returns the cached keys ordered by device, tile width and
// parallelism.
func (c *KernelCache) Keys() []Key {
	c.mu.RLock()
	keys := make([]Key, 0, len(c.kernels))
	for k := range c.kernels {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	slices.SortFunc(keys, func(a, b Key) int {
		return cmp.Or(
			cmp.Compare(a.Device, b.Device),
			cmp.Compare(a.TileWidth, b.TileWidth),
			cmp.Compare(a.Parallelism, b.Parallelism),
		)
	})
	return keys
}
