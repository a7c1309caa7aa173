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
	"testing"

	"github.com/pkg/errors"

	"github.com/ajroetker/fusedsoftmax/jit/device"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{-3, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {5, 8}, {8, 8},
		{781, 1024}, {1024, 1024}, {1025, 2048}, {100000, 131072},
		{1<<30 - 1, 1 << 30}, {1 << 30, 1 << 30},
	}
	for _, tt := range tests {
		if got := NextPowerOfTwo(tt.n); got != tt.want {
			t.Errorf("NextPowerOfTwo(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

// TestSpecializeTileWidth checks that every width in [1, 100000] gets the
// smallest power of two covering it.
func TestSpecializeTileWidth(t *testing.T) {
	for n := 1; n <= 100000; n++ {
		s, err := Specialize(n)
		if err != nil {
			t.Fatalf("Specialize(%d): %v", n, err)
		}
		w := s.TileWidth
		if w&(w-1) != 0 || w < n || (w > 1 && w/2 >= n) {
			t.Fatalf("Specialize(%d).TileWidth = %d", n, w)
		}
	}
}

func TestSpecializeParallelism(t *testing.T) {
	tests := []struct {
		n, tile, warps int
	}{
		{1, 1, 4},
		{781, 1024, 4},
		{1025, 2048, 8},
		{2048, 2048, 8},
		{2049, 4096, 16},
		{100000, 131072, 16},
	}
	for _, tt := range tests {
		s, err := Specialize(tt.n)
		if err != nil {
			t.Fatalf("Specialize(%d): %v", tt.n, err)
		}
		if s.TileWidth != tt.tile || s.Parallelism != tt.warps {
			t.Errorf("Specialize(%d) = %+v, want tile %d warps %d", tt.n, s, tt.tile, tt.warps)
		}
	}
}

func TestSpecializeInvalid(t *testing.T) {
	for _, n := range []int{0, -1, MaxColumns + 1} {
		if _, err := Specialize(n); !errors.Is(err, ErrInvalidShape) {
			t.Errorf("Specialize(%d) error = %v, want ErrInvalidShape", n, err)
		}
	}
	if s, err := Specialize(MaxColumns); err != nil || s.TileWidth != MaxColumns {
		t.Errorf("Specialize(MaxColumns) = %+v, %v", s, err)
	}
}

func TestParallelismTableValidate(t *testing.T) {
	if err := DefaultParallelism.Validate(); err != nil {
		t.Fatalf("DefaultParallelism.Validate(): %v", err)
	}
	bad := map[string]ParallelismTable{
		"empty":            {},
		"nonzero start":    {{MinTileWidth: 16, Level: 4}},
		"zero level":       {{MinTileWidth: 0, Level: 0}},
		"thresholds equal": {{0, 4}, {1024, 8}, {1024, 16}},
		"level decreasing": {{0, 8}, {1024, 4}},
	}
	for name, table := range bad {
		if err := table.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", name)
		}
	}
}

func TestParallelismTableLevel(t *testing.T) {
	table := ParallelismTable{{0, 1}, {64, 2}, {256, 4}}
	for tile, want := range map[int]int{1: 1, 32: 1, 64: 2, 128: 2, 256: 4, 1 << 20: 4} {
		if got := table.Level(tile); got != want {
			t.Errorf("Level(%d) = %d, want %d", tile, got, want)
		}
	}
}

func TestKeyEquality(t *testing.T) {
	cpu := device.NewCPU(device.DefaultCPUConfig())
	defer cpu.Close()

	a, _ := Specialize(700)
	b, _ := Specialize(1000)
	c, _ := Specialize(1100)
	if a.Key(cpu) != b.Key(cpu) {
		t.Errorf("700 and 1000 columns should share a key: %v vs %v", a.Key(cpu), b.Key(cpu))
	}
	if a.Key(cpu) == c.Key(cpu) {
		t.Errorf("700 and 1100 columns should not share a key")
	}
}
