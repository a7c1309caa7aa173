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

package hwy

import (
	"math"
	"testing"
)

func TestLoadStore(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5}
	v := Load(data)
	if v.NumLanes() != len(data) {
		t.Fatalf("Load: NumLanes() = %d, want %d", v.NumLanes(), len(data))
	}

	out := make([]float32, 3)
	Store(v, out)
	for i := range out {
		if out[i] != data[i] {
			t.Errorf("Store: lane %d: got %v, want %v", i, out[i], data[i])
		}
	}
}

func TestSetZeroIota(t *testing.T) {
	v := Set[float32](16, 42.0)
	if v.NumLanes() != 16 {
		t.Fatalf("Set: NumLanes() = %d, want 16", v.NumLanes())
	}
	for i := 0; i < v.NumLanes(); i++ {
		if v.data[i] != 42.0 {
			t.Errorf("Set: lane %d: got %v, want %v", i, v.data[i], 42.0)
		}
	}

	z := Zero[int32](8)
	for i := 0; i < z.NumLanes(); i++ {
		if z.data[i] != 0 {
			t.Errorf("Zero: lane %d: got %v, want 0", i, z.data[i])
		}
	}

	idx := Iota[int32](8)
	for i := 0; i < idx.NumLanes(); i++ {
		if idx.data[i] != int32(i) {
			t.Errorf("Iota: lane %d: got %v, want %d", i, idx.data[i], i)
		}
	}
}

func TestArithmetic(t *testing.T) {
	a := Set[float32](8, 10.0)
	b := Set[float32](8, 4.0)

	tests := []struct {
		name string
		got  Vec[float32]
		want float32
	}{
		{"Add", Add(a, b), 14},
		{"Sub", Sub(a, b), 6},
		{"Mul", Mul(a, b), 40},
		{"Div", Div(a, b), 2.5},
		{"MulAdd", MulAdd(a, b, b), 44},
		{"Min", Min(a, b), 4},
		{"Max", Max(a, b), 10},
	}
	for _, tt := range tests {
		for i := 0; i < tt.got.NumLanes(); i++ {
			if tt.got.data[i] != tt.want {
				t.Errorf("%s: lane %d: got %v, want %v", tt.name, i, tt.got.data[i], tt.want)
			}
		}
	}
}

func TestReductions(t *testing.T) {
	v := Load([]float32{3, -1, 7, 2, 0, 5})
	if got := ReduceSum(v); got != 16 {
		t.Errorf("ReduceSum = %v, want 16", got)
	}
	if got := ReduceMax(v); got != 7 {
		t.Errorf("ReduceMax = %v, want 7", got)
	}
	if got := ReduceMax(Zero[float32](0)); got != 0 {
		t.Errorf("ReduceMax(empty) = %v, want 0", got)
	}

	negInf := float32(math.Inf(-1))
	allMasked := Set(4, negInf)
	if got := ReduceMax(allMasked); !math.IsInf(float64(got), -1) {
		t.Errorf("ReduceMax(-inf lanes) = %v, want -Inf", got)
	}
}

func TestBlockedReductions(t *testing.T) {
	data := make([]float32, 64)
	for i := range data {
		data[i] = float32(i%7) - 2.5
	}
	data[37] = 100
	v := Load(data)

	for _, parts := range []int{0, 1, 2, 4, 8, 16, 64, 3, 128} {
		if got, want := ReduceMaxBlocked(v, parts), float32(100); got != want {
			t.Errorf("ReduceMaxBlocked(parts=%d) = %v, want %v", parts, got, want)
		}
		got := ReduceSumBlocked(v, parts)
		want := ReduceSum(v)
		if math.Abs(float64(got-want)) > 1e-4 {
			t.Errorf("ReduceSumBlocked(parts=%d) = %v, want %v", parts, got, want)
		}
		// Same inputs, same partitioning: same bits.
		if again := ReduceSumBlocked(v, parts); math.Float32bits(again) != math.Float32bits(got) {
			t.Errorf("ReduceSumBlocked(parts=%d) not deterministic: %v then %v", parts, got, again)
		}
	}
}

func TestIfThenElse(t *testing.T) {
	a := Set[float32](4, 1)
	b := Set[float32](4, -1)
	mask := FirstN[float32](4, 2)

	got := IfThenElse(mask, a, b)
	want := []float32{1, 1, -1, -1}
	for i := range want {
		if got.data[i] != want[i] {
			t.Errorf("IfThenElse: lane %d: got %v, want %v", i, got.data[i], want[i])
		}
	}

	merged := Merge(a, b, mask)
	for i := range want {
		if merged.data[i] != want[i] {
			t.Errorf("Merge: lane %d: got %v, want %v", i, merged.data[i], want[i])
		}
	}

	zeroed := IfThenElseZero(mask, a)
	if zeroed.data[0] != 1 || zeroed.data[3] != 0 {
		t.Errorf("IfThenElseZero = %v, want [1 1 0 0]", zeroed.data)
	}
}

func TestMaskLoadShortSource(t *testing.T) {
	// The source ends before the block does: lanes past the end must
	// not be read.
	src := []float32{1, 2, 3}
	mask := FirstN[float32](8, 5)
	negInf := float32(math.Inf(-1))

	v := MaskLoadOr(mask, src, negInf)
	if v.NumLanes() != 8 {
		t.Fatalf("MaskLoadOr: NumLanes() = %d, want 8", v.NumLanes())
	}
	for i := range 3 {
		if v.data[i] != src[i] {
			t.Errorf("MaskLoadOr: lane %d: got %v, want %v", i, v.data[i], src[i])
		}
	}
	for i := 3; i < 8; i++ {
		if !math.IsInf(float64(v.data[i]), -1) {
			t.Errorf("MaskLoadOr: lane %d: got %v, want -Inf", i, v.data[i])
		}
	}

	z := MaskLoad(mask, src)
	if z.data[7] != 0 {
		t.Errorf("MaskLoad: inactive lane = %v, want 0", z.data[7])
	}
}

func TestMaskStore(t *testing.T) {
	dst := []float32{9, 9, 9, 9}
	v := Set[float32](8, 1)
	MaskStore(FirstN[float32](8, 3), v, dst)

	want := []float32{1, 1, 1, 9}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("MaskStore: dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestComparisons(t *testing.T) {
	a := Load([]float32{1, 5, 3})
	b := Load([]float32{2, 2, 3})

	if got := LessThan(a, b).CountTrue(); got != 1 {
		t.Errorf("LessThan count = %d, want 1", got)
	}
	if got := Greater(a, b); !got.GetBit(1) || got.GetBit(0) {
		t.Errorf("Greater bits = %v, want lane 1 only", got.bits)
	}
	if got := Less(a, b); !got.GetBit(0) {
		t.Errorf("Less lane 0 = false, want true")
	}
}

func TestConvertAndPow2(t *testing.T) {
	v := Load([]float32{1.7, -2.2, float32(math.Inf(1)), float32(math.Inf(-1)), float32(math.NaN())})
	got := ConvertToInt32(v)
	want := []int32{1, -2, math.MaxInt32, math.MinInt32, 0}
	for i := range want {
		if got.data[i] != want[i] {
			t.Errorf("ConvertToInt32: lane %d: got %v, want %v", i, got.data[i], want[i])
		}
	}

	k := Load([]int32{0, 1, -1, 10, -126, -127, 127, 128})
	p := Pow2[float32](k)
	wantP := []float32{1, 2, 0.5, 1024, float32(math.Ldexp(1, -126)), 0, float32(math.Ldexp(1, 127)), float32(math.Inf(1))}
	for i := range wantP {
		if p.data[i] != wantP[i] {
			t.Errorf("Pow2: lane %d (k=%d): got %v, want %v", i, k.data[i], p.data[i], wantP[i])
		}
	}

	r := RoundToEven(Load([]float32{0.5, 1.5, 2.5, -0.5}))
	wantR := []float32{0, 2, 2, 0}
	for i := range wantR {
		if r.data[i] != wantR[i] {
			t.Errorf("RoundToEven: lane %d: got %v, want %v", i, r.data[i], wantR[i])
		}
	}
}
