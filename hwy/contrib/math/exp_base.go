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

// Package math provides approximate vector math on hwy lanes.
//
// The functions trade the last bits of accuracy for speed in the same way
// device fast-math intrinsics (__expf) do: a few ULP of error, no errno,
// no subnormal results.
package math

import (
	stdmath "math"

	"github.com/ajroetker/fusedsoftmax/hwy"
)

// BaseExpVec computes e^x for every lane.
//
// Algorithm:
//  1. Range reduction: x = k*ln(2) + r, where |r| <= ln(2)/2
//  2. Polynomial approximation: e^r ≈ 1 + r + r²/2! + ... + r⁶/6!
//  3. Reconstruction: e^x = 2^k * e^r using IEEE 754 exponent bits
//
// Lanes above the overflow threshold give +Inf; lanes below the underflow
// threshold, -Inf included, give exactly 0.
func BaseExpVec[T hwy.Floats](x hwy.Vec[T]) hwy.Vec[T] {
	lanes := x.NumLanes()
	overflow := hwy.Set(lanes, T(expOverflow_f32))
	underflow := hwy.Set(lanes, T(expUnderflow_f32))
	one := hwy.Set(lanes, T(1))
	zero := hwy.Zero[T](lanes)
	inf := hwy.Set(lanes, T(stdmath.Inf(1)))
	invLn2 := hwy.Set(lanes, T(expInvLn2_f32))
	ln2Hi := hwy.Set(lanes, T(expLn2Hi_f32))
	ln2Lo := hwy.Set(lanes, T(expLn2Lo_f32))

	c1 := hwy.Set(lanes, T(expC1_f32))
	c2 := hwy.Set(lanes, T(expC2_f32))
	c3 := hwy.Set(lanes, T(expC3_f32))
	c4 := hwy.Set(lanes, T(expC4_f32))
	c5 := hwy.Set(lanes, T(expC5_f32))
	c6 := hwy.Set(lanes, T(expC6_f32))

	overflowMask := hwy.Greater(x, overflow)
	underflowMask := hwy.Less(x, underflow)

	// k = round(x / ln(2))
	kFloat := hwy.RoundToEven(hwy.Mul(x, invLn2))

	// r = x - k*ln(2), high part first
	r := hwy.Sub(x, hwy.Mul(kFloat, ln2Hi))
	r = hwy.Sub(r, hwy.Mul(kFloat, ln2Lo))

	// Horner
	p := hwy.MulAdd(c6, r, c5)
	p = hwy.MulAdd(p, r, c4)
	p = hwy.MulAdd(p, r, c3)
	p = hwy.MulAdd(p, r, c2)
	p = hwy.MulAdd(p, r, c1)
	p = hwy.MulAdd(p, r, one)

	scale := hwy.Pow2[T](hwy.ConvertToInt32(kFloat))
	result := hwy.Mul(p, scale)

	result = hwy.Merge(inf, result, overflowMask)
	result = hwy.Merge(zero, result, underflowMask)
	return result
}
