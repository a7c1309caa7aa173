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

// Package ir provides a typed intermediate representation for block-wide
// kernels. A kernel is a straight-line program run once per program
// instance: it reads its program id, works on whole tiles of lanes and
// writes its results back through masked stores.
//
// An IRFunction is a pure value. Building it, rendering it as source text
// (Emit) and compiling it for a device are separate steps.
package ir

import (
	"fmt"
	"strings"
)

// OpKind categorizes IR operations.
type OpKind int

const (
	// OpKindElementwise represents lane-by-lane operations (Sub, Div, Exp,
	// comparisons).
	OpKindElementwise OpKind = iota

	// OpKindReduction represents operations that reduce a tile to a scalar
	// (ReduceSum, ReduceMax).
	OpKindReduction

	// OpKindLoad represents masked loads from a pointer parameter.
	OpKindLoad

	// OpKindStore represents masked stores to a pointer parameter.
	OpKindStore

	// OpKindBroadcast represents tile constructors (Iota).
	OpKindBroadcast

	// OpKindScalar represents scalar operations (ProgramID).
	OpKindScalar
)

// String returns a human-readable name for the OpKind.
func (k OpKind) String() string {
	switch k {
	case OpKindElementwise:
		return "Elementwise"
	case OpKindReduction:
		return "Reduction"
	case OpKindLoad:
		return "Load"
	case OpKindStore:
		return "Store"
	case OpKindBroadcast:
		return "Broadcast"
	case OpKindScalar:
		return "Scalar"
	default:
		return fmt.Sprintf("OpKind(%d)", k)
	}
}

// Operation names understood by the builder, the emitter and the devices.
const (
	OpProgramID = "ProgramID"
	OpIota      = "Iota"
	OpLessThanN = "LessThanN"
	OpMaskLoad  = "MaskLoad"
	OpReduceMax = "ReduceMax"
	OpReduceSum = "ReduceSum"
	OpSub       = "Sub"
	OpDiv       = "Div"
	OpExp       = "Exp"
	OpMaskStore = "MaskStore"
)

// ValueKind is the type of the value a node produces or consumes.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueInt
	ValueFloat
	ValueIntTile
	ValueFloatTile
	ValueMask
)

// String returns a human-readable name for the ValueKind.
func (v ValueKind) String() string {
	switch v {
	case ValueNone:
		return "void"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueIntTile:
		return "int[BLOCK]"
	case ValueFloatTile:
		return "float[BLOCK]"
	case ValueMask:
		return "bool[BLOCK]"
	default:
		return fmt.Sprintf("ValueKind(%d)", v)
	}
}

// Elem returns the C element type of the value.
func (v ValueKind) Elem() string {
	switch v {
	case ValueInt, ValueIntTile:
		return "int"
	case ValueFloat, ValueFloatTile:
		return "float"
	case ValueMask:
		return "bool"
	default:
		return "void"
	}
}

// IsTile reports whether the value has one element per lane.
func (v ValueKind) IsTile() bool {
	return v == ValueIntTile || v == ValueFloatTile || v == ValueMask
}

// ParamKind is the type of a kernel parameter.
type ParamKind int

const (
	// ParamFloatPtr is a float32 device buffer.
	ParamFloatPtr ParamKind = iota
	// ParamInt is a 32-bit integer scalar.
	ParamInt
)

// String returns the C spelling of the parameter type.
func (p ParamKind) String() string {
	switch p {
	case ParamFloatPtr:
		return "float*"
	case ParamInt:
		return "int"
	default:
		return fmt.Sprintf("ParamKind(%d)", p)
	}
}

// opSignature describes the operands an operation takes and what it produces.
type opSignature struct {
	kind   OpKind
	inputs []ValueKind
	params []ParamKind
	output ValueKind
}

var signatures = map[string]opSignature{
	OpProgramID: {kind: OpKindScalar, output: ValueInt},
	OpIota:      {kind: OpKindBroadcast, output: ValueIntTile},
	OpLessThanN: {
		kind:   OpKindElementwise,
		inputs: []ValueKind{ValueIntTile},
		params: []ParamKind{ParamInt},
		output: ValueMask,
	},
	// MaskLoad(row, offsets, mask) from (ptr, rowStride).
	OpMaskLoad: {
		kind:   OpKindLoad,
		inputs: []ValueKind{ValueInt, ValueIntTile, ValueMask},
		params: []ParamKind{ParamFloatPtr, ParamInt},
		output: ValueFloatTile,
	},
	OpReduceMax: {kind: OpKindReduction, inputs: []ValueKind{ValueFloatTile}, output: ValueFloat},
	OpReduceSum: {kind: OpKindReduction, inputs: []ValueKind{ValueFloatTile}, output: ValueFloat},
	OpSub:       {kind: OpKindElementwise, inputs: []ValueKind{ValueFloatTile, ValueFloat}, output: ValueFloatTile},
	OpDiv:       {kind: OpKindElementwise, inputs: []ValueKind{ValueFloatTile, ValueFloat}, output: ValueFloatTile},
	OpExp:       {kind: OpKindElementwise, inputs: []ValueKind{ValueFloatTile}, output: ValueFloatTile},
	// MaskStore(row, offsets, mask, value) to (ptr, rowStride).
	OpMaskStore: {
		kind:   OpKindStore,
		inputs: []ValueKind{ValueInt, ValueIntTile, ValueMask, ValueFloatTile},
		params: []ParamKind{ParamFloatPtr, ParamInt},
		output: ValueNone,
	},
}

// ClassifyOp returns the OpKind for an operation name, and false if the
// operation is unknown.
func ClassifyOp(op string) (OpKind, bool) {
	sig, ok := signatures[op]
	return sig.kind, ok
}

// IRNode represents a single operation in the IR.
type IRNode struct {
	// ID is a unique identifier for this node within its function.
	ID int

	// Kind categorizes this operation.
	Kind OpKind

	// Op is the specific operation name (one of the Op* constants).
	Op string

	// Inputs are the nodes whose outputs feed into this operation, in
	// signature order.
	Inputs []*IRNode

	// ParamNames are the kernel parameters this operation reads, in
	// signature order.
	ParamNames []string

	// Output is the variable name this node produces; empty for stores.
	Output string

	// Type is the kind of value this node produces.
	Type ValueKind

	// Fill is the value inactive lanes of a MaskLoad take.
	Fill float64

	// CallTarget names the vector function implementing the node, if any
	// (e.g. "math.BaseExpVec" for Exp).
	CallTarget string
}

// String returns a debug string representation of the IRNode.
func (n *IRNode) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "IRNode{ID:%d Kind:%s Op:%q", n.ID, n.Kind, n.Op)
	if n.Output != "" {
		fmt.Fprintf(&sb, " Out:%s", n.Output)
	}
	if len(n.Inputs) > 0 {
		ids := make([]int, len(n.Inputs))
		for i, in := range n.Inputs {
			ids[i] = in.ID
		}
		fmt.Fprintf(&sb, " In:%v", ids)
	}
	if len(n.ParamNames) > 0 {
		fmt.Fprintf(&sb, " Params:%v", n.ParamNames)
	}
	if n.CallTarget != "" {
		fmt.Fprintf(&sb, " Call:%s", n.CallTarget)
	}
	sb.WriteString("}")
	return sb.String()
}

// IRParam represents a kernel parameter.
type IRParam struct {
	Name string
	Kind ParamKind
}

// IRFunction represents a kernel in the IR.
type IRFunction struct {
	// Name is the kernel name.
	Name string

	// TileWidth is the number of lanes of every tile value (BLOCK).
	TileWidth int

	// Params are the kernel parameters, in launch order.
	Params []IRParam

	// Operations is the linear sequence of IR nodes in the kernel body.
	Operations []*IRNode

	nextID int
}

// NewFunction creates an empty kernel with the given name and tile width.
func NewFunction(name string, tileWidth int) *IRFunction {
	return &IRFunction{Name: name, TileWidth: tileWidth}
}

// Param returns the parameter with the given name and its position.
func (f *IRFunction) Param(name string) (IRParam, int, bool) {
	for i, p := range f.Params {
		if p.Name == name {
			return p, i, true
		}
	}
	return IRParam{}, -1, false
}

// NumValues returns one more than the largest node ID, the size of a
// register frame indexed by node ID.
func (f *IRFunction) NumValues() int {
	n := f.nextID
	for _, node := range f.Operations {
		n = max(n, node.ID+1)
	}
	return n
}

// String returns a debug string representation of the IRFunction.
func (f *IRFunction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "IRFunction{Name:%s Tile:%d Params:[", f.Name, f.TileWidth)
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s:%s", p.Name, p.Kind)
	}
	fmt.Fprintf(&sb, "] Ops:%d}", len(f.Operations))
	return sb.String()
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
