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

	"github.com/pkg/errors"

	"github.com/ajroetker/fusedsoftmax/jit/device"
)

// DType is the element type of a matrix.
type DType int

const (
	Float32 DType = iota
	Float16
	Float64
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("DType(%d)", d)
	}
}

// Matrix is a row-major view of a device buffer. Shape is [rows, cols];
// Strides is [row stride, column stride] in elements. Rows may be padded:
// the row stride can exceed cols, and padding elements are never read.
type Matrix struct {
	Buffer  *device.Buffer
	Shape   []int
	Strides []int
	DType   DType
}

// NewMatrix allocates a contiguous rows×cols float32 matrix on dev.
func NewMatrix(dev device.Device, rows, cols int) (*Matrix, error) {
	buf, err := dev.Alloc(rows * cols)
	if err != nil {
		return nil, err
	}
	return &Matrix{
		Buffer:  buf,
		Shape:   []int{rows, cols},
		Strides: []int{cols, 1},
		DType:   Float32,
	}, nil
}

// Upload copies data into a new buffer on dev and describes it as a
// rows×cols matrix with the given row stride. data may end right after the
// last valid element of the last row.
func Upload(dev device.Device, data []float32, rows, cols, stride int) (*Matrix, error) {
	buf, err := dev.Alloc(len(data))
	if err != nil {
		return nil, err
	}
	if err := buf.Write(data); err != nil {
		_ = buf.Free()
		return nil, err
	}
	return &Matrix{
		Buffer:  buf,
		Shape:   []int{rows, cols},
		Strides: []int{stride, 1},
		DType:   Float32,
	}, nil
}

// Rows returns Shape[0].
func (m *Matrix) Rows() int { return m.Shape[0] }

// Cols returns Shape[1].
func (m *Matrix) Cols() int { return m.Shape[1] }

// RowStride returns Strides[0].
func (m *Matrix) RowStride() int { return m.Strides[0] }

// Row returns a host view of the valid elements of row i.
func (m *Matrix) Row(i int) ([]float32, error) {
	data, err := m.Buffer.Float32s()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= m.Rows() {
		return nil, errors.Errorf("Row: index %d out of range [0, %d)", i, m.Rows())
	}
	start := i * m.RowStride()
	return data[start : start+m.Cols()], nil
}

// Float32s returns the valid elements as a new dense rows×cols slice.
func (m *Matrix) Float32s() ([]float32, error) {
	out := make([]float32, 0, m.Rows()*m.Cols())
	for i := range m.Rows() {
		row, err := m.Row(i)
		if err != nil {
			return nil, err
		}
		out = append(out, row...)
	}
	return out, nil
}

// Free releases the underlying buffer.
func (m *Matrix) Free() error {
	return m.Buffer.Free()
}

func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix{shape=%v strides=%v dtype=%s}", m.Shape, m.Strides, m.DType)
}
