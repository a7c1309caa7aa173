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

// FirstN creates a mask of the given lane count with the first 'count'
// lanes active. This handles a block that is wider than the data it
// covers, e.g. a 1024-lane tile over a 781-column row.
//
// Example:
//
//	check := hwy.FirstN[float32](block, n)
//	v := hwy.MaskLoadOr(check, row, float32(math.Inf(-1)))
//	// ... process
//	hwy.MaskStore(check, result, out)
func FirstN[T Lanes](lanes, count int) Mask[T] {
	count = max(0, min(count, lanes))
	bits := make([]bool, lanes)
	for i := range count {
		bits[i] = true
	}
	return Mask[T]{bits: bits}
}

// LessThanN returns the mask idx[i] < n. It is the lane form of the
// bounds check `n < N` on an index vector produced by Iota.
func LessThanN[T Integers](idx Vec[T], n T) Mask[T] {
	bits := make([]bool, len(idx.data))
	for i, x := range idx.data {
		bits[i] = x < n
	}
	return Mask[T]{bits: bits}
}
