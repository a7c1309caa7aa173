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
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ajroetker/fusedsoftmax/hwy"
	"github.com/ajroetker/fusedsoftmax/hwy/contrib/workerpool"
	"github.com/ajroetker/fusedsoftmax/jit/ir"
)

var cpuOrdinal atomic.Int64

// CPU is the host reference device. Buffers live in Go memory and program
// instances run on a persistent worker pool.
type CPU struct {
	id   string
	cfg  CPUConfig
	pool *workerpool.Pool
	mem  memoryTracker
}

var _ Device = (*CPU)(nil)

// NewCPU creates a CPU device. Call Close to stop its workers.
func NewCPU(cfg CPUConfig) *CPU {
	if cfg.MaxTileWidth <= 0 {
		cfg.MaxTileWidth = DefaultMaxTileWidth
	}
	c := &CPU{
		id:   fmt.Sprintf("cpu%d:%s", cpuOrdinal.Add(1)-1, hwy.CurrentName()),
		cfg:  cfg,
		pool: workerpool.New(cfg.Workers),
	}
	c.mem.limit = cfg.MemoryLimit
	return c
}

// ID returns "cpu<ordinal>:<dispatch level>", e.g. "cpu0:avx2".
func (c *CPU) ID() string {
	return c.id
}

// Workers returns the number of pool workers running program instances.
func (c *CPU) Workers() int {
	return c.pool.NumWorkers()
}

// Config returns the device configuration.
func (c *CPU) Config() CPUConfig {
	return c.cfg
}

// MemStats returns the current allocation accounting.
func (c *CPU) MemStats() MemStats {
	return c.mem.stats()
}

// Close stops the worker pool. Launches after Close run sequentially on
// the calling goroutine.
func (c *CPU) Close() {
	c.pool.Close()
}

// Alloc returns a zeroed buffer of n float32 elements.
func (c *CPU) Alloc(n int) (*Buffer, error) {
	if n < 0 {
		return nil, errors.Errorf("Alloc: negative size %d", n)
	}
	if err := c.mem.reserve(int64(n) * float32Size); err != nil {
		return nil, err
	}
	return &Buffer{data: make([]float32, n), owner: c, mem: &c.mem}, nil
}

// Compile verifies fn and lowers every node to a step over a per-instance
// register frame.
func (c *CPU) Compile(fn *ir.IRFunction, opts CompileOptions) (Kernel, error) {
	if err := ir.Verify(fn); err != nil {
		return nil, errors.Wrapf(ErrCompile, "Compile: %v", err)
	}
	if fn.TileWidth > c.cfg.MaxTileWidth {
		return nil, errors.Wrapf(ErrCompile, "Compile %s: tile width %d exceeds device maximum %d",
			fn.Name, fn.TileWidth, c.cfg.MaxTileWidth)
	}
	if opts.NumWarps < 1 {
		return nil, errors.Wrapf(ErrCompile, "Compile %s: num_warps must be positive, got %d", fn.Name, opts.NumWarps)
	}

	k := &cpuKernel{
		dev:     c,
		fn:      fn,
		source:  ir.Emit(fn),
		warps:   opts.NumWarps,
		nvalues: fn.NumValues(),
	}
	for _, node := range fn.Operations {
		s, err := k.lower(node)
		if err != nil {
			return nil, errors.Wrapf(ErrCompile, "Compile %s: node %d (%s): %v", fn.Name, node.ID, node.Op, err)
		}
		k.steps = append(k.steps, s)
	}
	k.frames.New = func() any { return newFrame(k.nvalues) }
	return k, nil
}
