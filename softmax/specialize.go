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
	"fmt"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/ajroetker/fusedsoftmax/jit/device"
)

// MaxColumns is the widest row that can be specialized: the largest power
// of two tile representable by a 32-bit kernel argument.
const MaxColumns = 1 << 30

// NextPowerOfTwo returns the smallest power of two >= n. Values below 2
// return 1.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Specialization is the compile-time shape class of a row width.
type Specialization struct {
	// TileWidth is the number of lanes per program instance (BLOCK).
	TileWidth int
	// Parallelism is the number of warps cooperating on one row.
	Parallelism int
}

// Key returns the cache key of this specialization on dev.
func (s Specialization) Key(dev device.Device) Key {
	return Key{TileWidth: s.TileWidth, Parallelism: s.Parallelism, Device: dev.ID()}
}

// Key identifies one compiled kernel. Two keys are the same kernel when
// all fields are equal.
type Key struct {
	TileWidth   int
	Parallelism int
	Device      string
}

func (k Key) String() string {
	return fmt.Sprintf("BLOCK=%d/num_warps=%d/%s", k.TileWidth, k.Parallelism, k.Device)
}

// ParallelismStep maps tiles of at least MinTileWidth lanes to Level warps.
type ParallelismStep struct {
	MinTileWidth int
	Level        int
}

// ParallelismTable is an ascending step function from tile width to
// warps per program instance.
type ParallelismTable []ParallelismStep

// DefaultParallelism uses 4 warps below 2048 lanes, 8 from 2048 and 16
// from 4096.
var DefaultParallelism = ParallelismTable{
	{MinTileWidth: 0, Level: 4},
	{MinTileWidth: 2048, Level: 8},
	{MinTileWidth: 4096, Level: 16},
}

// Validate checks that the table starts at 0, has strictly increasing
// thresholds and positive, non-decreasing levels.
func (t ParallelismTable) Validate() error {
	if len(t) == 0 {
		return errors.New("parallelism table is empty")
	}
	if t[0].MinTileWidth != 0 {
		return errors.Errorf("parallelism table must start at tile width 0, starts at %d", t[0].MinTileWidth)
	}
	for i, s := range t {
		if s.Level < 1 {
			return errors.Errorf("parallelism step %d: level %d must be positive", i, s.Level)
		}
		if i == 0 {
			continue
		}
		prev := t[i-1]
		if s.MinTileWidth <= prev.MinTileWidth {
			return errors.Errorf("parallelism step %d: threshold %d not above %d", i, s.MinTileWidth, prev.MinTileWidth)
		}
		if s.Level < prev.Level {
			return errors.Errorf("parallelism step %d: level %d below previous %d", i, s.Level, prev.Level)
		}
	}
	return nil
}

// Level returns the warp count for tileWidth: the level of the last step
// whose threshold is <= tileWidth.
func (t ParallelismTable) Level(tileWidth int) int {
	level := 1
	for _, s := range t {
		if tileWidth < s.MinTileWidth {
			break
		}
		level = s.Level
	}
	return level
}

// Specialize derives the shape class for rows of n columns.
func (t ParallelismTable) Specialize(n int) (Specialization, error) {
	if n <= 0 {
		return Specialization{}, errors.Wrapf(ErrInvalidShape, "Specialize: %d columns", n)
	}
	if n > MaxColumns {
		return Specialization{}, errors.Wrapf(ErrInvalidShape, "Specialize: %d columns exceeds maximum %d", n, MaxColumns)
	}
	w := NextPowerOfTwo(n)
	return Specialization{TileWidth: w, Parallelism: t.Level(w)}, nil
}

// Specialize derives the shape class for rows of n columns using
// DefaultParallelism.
func Specialize(n int) (Specialization, error) {
	return DefaultParallelism.Specialize(n)
}
