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
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

const float32Size = 4

// Buffer is a device allocation of float32 elements. The allocating
// device owns the memory until Free is called.
type Buffer struct {
	data  []float32
	owner Device
	mem   *memoryTracker
	freed atomic.Bool
}

// Len returns the number of float32 elements in the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Device returns the device that allocated the buffer.
func (b *Buffer) Device() Device {
	return b.owner
}

// Float32s returns a host view of the buffer. Only host-visible devices
// such as CPU can hand out a view; the slice is invalid after Free.
func (b *Buffer) Float32s() ([]float32, error) {
	if b.freed.Load() {
		return nil, ErrFreed
	}
	return b.data, nil
}

// Write copies src to the start of the buffer.
func (b *Buffer) Write(src []float32) error {
	if b.freed.Load() {
		return ErrFreed
	}
	if len(src) > len(b.data) {
		return errors.Wrapf(ErrOutOfBounds, "Write: %d elements into buffer of %d", len(src), len(b.data))
	}
	copy(b.data, src)
	return nil
}

// Read copies the start of the buffer into dst.
func (b *Buffer) Read(dst []float32) error {
	if b.freed.Load() {
		return ErrFreed
	}
	if len(dst) > len(b.data) {
		return errors.Wrapf(ErrOutOfBounds, "Read: %d elements from buffer of %d", len(dst), len(b.data))
	}
	copy(dst, b.data)
	return nil
}

// Free releases the buffer. Freeing twice returns ErrFreed.
func (b *Buffer) Free() error {
	if b.freed.Swap(true) {
		return ErrFreed
	}
	if b.mem != nil {
		b.mem.release(int64(len(b.data)) * float32Size)
	}
	return nil
}

// MemStats reports a device's allocation accounting.
type MemStats struct {
	// Live is the number of bytes currently allocated.
	Live int64
	// Peak is the largest Live value seen.
	Peak int64
	// Limit is the configured limit in bytes, 0 when unlimited.
	Limit int64

	Allocs int64
	Frees  int64
}

// memoryTracker enforces a limit on live bytes.
type memoryTracker struct {
	mu     sync.Mutex
	limit  int64
	live   int64
	peak   int64
	allocs int64
	frees  int64
}

func (m *memoryTracker) reserve(bytes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 && m.live+bytes > m.limit {
		return errors.Wrapf(ErrOutOfMemory, "Alloc: %d bytes requested, %d of %d in use", bytes, m.live, m.limit)
	}
	m.live += bytes
	m.allocs++
	if m.live > m.peak {
		m.peak = m.live
	}
	return nil
}

func (m *memoryTracker) release(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live -= bytes
	m.frees++
}

func (m *memoryTracker) stats() MemStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemStats{Live: m.live, Peak: m.peak, Limit: m.limit, Allocs: m.allocs, Frees: m.frees}
}
