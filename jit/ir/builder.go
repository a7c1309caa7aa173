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

package ir

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidIR is returned when a kernel is malformed.
var ErrInvalidIR = errors.New("invalid IR")

// Builder appends typed nodes to a kernel. The first error sticks and is
// returned by Build; later calls are no-ops.
type Builder struct {
	fn  *IRFunction
	err error
}

// NewBuilder starts a kernel with the given name and tile width.
func NewBuilder(name string, tileWidth int) *Builder {
	return &Builder{fn: NewFunction(name, tileWidth)}
}

// Param declares the next positional kernel parameter.
func (b *Builder) Param(name string, kind ParamKind) {
	if b.err != nil {
		return
	}
	if _, _, dup := b.fn.Param(name); dup {
		b.err = fmt.Errorf("%w: duplicate parameter %q", ErrInvalidIR, name)
		return
	}
	b.fn.Params = append(b.fn.Params, IRParam{Name: name, Kind: kind})
}

// Add appends a node for op. Kind and Type come from the operation's
// signature; operands are checked by Build.
func (b *Builder) Add(op, out string, inputs []*IRNode, params ...string) *IRNode {
	node := &IRNode{
		ID:         b.fn.nextID,
		Op:         op,
		Inputs:     inputs,
		ParamNames: params,
		Output:     out,
	}
	b.fn.nextID++
	sig, ok := signatures[op]
	if !ok {
		if b.err == nil {
			b.err = fmt.Errorf("%w: unknown operation %q", ErrInvalidIR, op)
		}
		return node
	}
	node.Kind = sig.kind
	node.Type = sig.output
	b.fn.Operations = append(b.fn.Operations, node)
	return node
}

// ProgramID reads the index of the running program instance along axis 0.
func (b *Builder) ProgramID(out string) *IRNode {
	return b.Add(OpProgramID, out, nil)
}

// Iota creates the lane index tile 0 ... TileWidth.
func (b *Builder) Iota(out string) *IRNode {
	return b.Add(OpIota, out, nil)
}

// LessThanN compares every lane index against the integer parameter n.
func (b *Builder) LessThanN(out string, idx *IRNode, n string) *IRNode {
	return b.Add(OpLessThanN, out, []*IRNode{idx}, n)
}

// MaskLoad reads ptr[row*stride + offsets] on active lanes and fill on the
// others. Inactive lanes are never dereferenced.
func (b *Builder) MaskLoad(out, ptr, stride string, row, offsets, mask *IRNode, fill float64) *IRNode {
	node := b.Add(OpMaskLoad, out, []*IRNode{row, offsets, mask}, ptr, stride)
	node.Fill = fill
	return node
}

// Reduce folds a tile to a scalar with OpReduceMax or OpReduceSum.
func (b *Builder) Reduce(op, out string, v *IRNode) *IRNode {
	return b.Add(op, out, []*IRNode{v})
}

// Binary applies OpSub or OpDiv between a tile and a broadcast scalar.
func (b *Builder) Binary(op, out string, tile, scalar *IRNode) *IRNode {
	return b.Add(op, out, []*IRNode{tile, scalar})
}

// Exp computes e^x on every lane.
func (b *Builder) Exp(out string, v *IRNode) *IRNode {
	node := b.Add(OpExp, out, []*IRNode{v})
	node.CallTarget = "math.BaseExpVec"
	return node
}

// MaskStore writes v to ptr[row*stride + offsets] on active lanes only.
func (b *Builder) MaskStore(ptr, stride string, row, offsets, mask, v *IRNode) *IRNode {
	return b.Add(OpMaskStore, "", []*IRNode{row, offsets, mask, v}, ptr, stride)
}

// Build verifies and returns the kernel.
func (b *Builder) Build() (*IRFunction, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := Verify(b.fn); err != nil {
		return nil, err
	}
	return b.fn, nil
}

// Verify checks that fn is well formed: a power-of-two tile width, unique
// parameters, and every node matching its operation's signature with
// operands defined before use.
func Verify(fn *IRFunction) error {
	if fn == nil {
		return fmt.Errorf("%w: nil function", ErrInvalidIR)
	}
	if fn.Name == "" {
		return fmt.Errorf("%w: unnamed function", ErrInvalidIR)
	}
	if !IsPowerOfTwo(fn.TileWidth) {
		return fmt.Errorf("%w: tile width %d is not a power of two", ErrInvalidIR, fn.TileWidth)
	}
	seen := make(map[string]bool, len(fn.Params))
	for _, p := range fn.Params {
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidIR, p.Name)
		}
		seen[p.Name] = true
	}

	defined := make(map[*IRNode]bool, len(fn.Operations))
	ids := make(map[int]bool, len(fn.Operations))
	outputs := make(map[string]bool, len(fn.Operations))
	for _, node := range fn.Operations {
		if err := verifyNode(fn, node, defined); err != nil {
			return fmt.Errorf("%w: node %d (%s): %v", ErrInvalidIR, node.ID, node.Op, err)
		}
		if ids[node.ID] {
			return fmt.Errorf("%w: duplicate node id %d", ErrInvalidIR, node.ID)
		}
		ids[node.ID] = true
		if node.Output != "" {
			if outputs[node.Output] || seen[node.Output] {
				return fmt.Errorf("%w: %q defined twice", ErrInvalidIR, node.Output)
			}
			outputs[node.Output] = true
		}
		defined[node] = true
	}
	return nil
}

func verifyNode(fn *IRFunction, node *IRNode, defined map[*IRNode]bool) error {
	sig, ok := signatures[node.Op]
	if !ok {
		return fmt.Errorf("unknown operation")
	}
	if node.ID < 0 {
		return fmt.Errorf("negative id")
	}
	if node.Kind != sig.kind || node.Type != sig.output {
		return fmt.Errorf("kind %s/%s does not match operation", node.Kind, node.Type)
	}
	if (node.Output == "") != (sig.output == ValueNone) {
		return fmt.Errorf("output name %q does not match result type %s", node.Output, sig.output)
	}
	if len(node.Inputs) != len(sig.inputs) {
		return fmt.Errorf("got %d inputs, want %d", len(node.Inputs), len(sig.inputs))
	}
	for i, in := range node.Inputs {
		if in == nil || !defined[in] {
			return fmt.Errorf("input %d used before definition", i)
		}
		if in.Type != sig.inputs[i] {
			return fmt.Errorf("input %d is %s, want %s", i, in.Type, sig.inputs[i])
		}
	}
	if len(node.ParamNames) != len(sig.params) {
		return fmt.Errorf("got %d parameters, want %d", len(node.ParamNames), len(sig.params))
	}
	for i, name := range node.ParamNames {
		p, _, ok := fn.Param(name)
		if !ok {
			return fmt.Errorf("undeclared parameter %q", name)
		}
		if p.Kind != sig.params[i] {
			return fmt.Errorf("parameter %q is %s, want %s", name, p.Kind, sig.params[i])
		}
	}
	if node.Op == OpMaskLoad || node.Op == OpMaskStore {
		if node.Inputs[1].Op != OpIota {
			return fmt.Errorf("offsets must be a lane index tile")
		}
	}
	return nil
}

// SoftmaxParams are the positional parameters of the softmax kernel.
var SoftmaxParams = []IRParam{
	{Name: "Y", Kind: ParamFloatPtr},
	{Name: "X", Kind: ParamFloatPtr},
	{Name: "stride_ym", Kind: ParamInt},
	{Name: "stride_xm", Kind: ParamInt},
	{Name: "M", Kind: ParamInt},
	{Name: "N", Kind: ParamInt},
}

// BuildSoftmax returns the row-wise softmax kernel specialized for
// tileWidth columns. One program instance handles row m:
//
//	check = n < N
//	x     = check ? X[m*stride_xm + n] : -inf
//	z     = x - max(x)
//	num   = exp(z)
//	y     = num / sum(num)
//	Y[m*stride_ym + n] = y where check
//
// The result depends only on tileWidth.
func BuildSoftmax(tileWidth int) (*IRFunction, error) {
	if !IsPowerOfTwo(tileWidth) {
		return nil, fmt.Errorf("%w: tile width %d is not a power of two", ErrInvalidIR, tileWidth)
	}
	b := NewBuilder("softmax", tileWidth)
	for _, p := range SoftmaxParams {
		b.Param(p.Name, p.Kind)
	}
	m := b.ProgramID("m")
	n := b.Iota("n")
	check := b.LessThanN("check", n, "N")
	x := b.MaskLoad("x", "X", "stride_xm", m, n, check, math.Inf(-1))
	xmax := b.Reduce(OpReduceMax, "xmax", x)
	z := b.Binary(OpSub, "z", x, xmax)
	num := b.Exp("num", z)
	denom := b.Reduce(OpReduceSum, "denom", num)
	y := b.Binary(OpDiv, "y", num, denom)
	b.MaskStore("Y", "stride_ym", m, n, check, y)
	return b.Build()
}
