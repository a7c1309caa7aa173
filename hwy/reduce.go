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

// Blocked reductions split the lanes into 'parts' contiguous segments,
// reduce each segment, then reduce the partials in segment order. This is
// how a block reduction distributed over several warps combines its
// per-warp results. The split depends only on the lane count and parts,
// so the result is the same bit pattern on every call.

// ReduceSumBlocked sums all lanes using 'parts' partial sums.
// parts <= 1, or a lane count not divisible by parts, falls back to ReduceSum.
func ReduceSumBlocked[T Lanes](v Vec[T], parts int) T {
	n := len(v.data)
	if parts <= 1 || n < parts || n%parts != 0 {
		return ReduceSum(v)
	}
	seg := n / parts
	var total T
	for p := range parts {
		var partial T
		for _, x := range v.data[p*seg : (p+1)*seg] {
			partial += x
		}
		total += partial
	}
	return total
}

// ReduceMaxBlocked returns the maximum over all lanes using 'parts' partials.
// Max is exact, so this only differs from ReduceMax in evaluation order.
func ReduceMaxBlocked[T Lanes](v Vec[T], parts int) T {
	n := len(v.data)
	if parts <= 1 || n < parts || n%parts != 0 {
		return ReduceMax(v)
	}
	seg := n / parts
	total := ReduceMax(Vec[T]{data: v.data[:seg]})
	for p := 1; p < parts; p++ {
		if m := ReduceMax(Vec[T]{data: v.data[p*seg : (p+1)*seg]}); m > total {
			total = m
		}
	}
	return total
}
