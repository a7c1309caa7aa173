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
	"bytes"
	"fmt"
	"math"
	"strings"
)

// Emitter renders an IRFunction as Triton-C style source text.
type Emitter struct {
	buf    *bytes.Buffer
	indent int
}

// NewEmitter creates a new source emitter.
func NewEmitter() *Emitter {
	return &Emitter{buf: &bytes.Buffer{}}
}

// Emit renders fn with a NewEmitter. The text is for humans and for
// kernel identification; devices compile the IR itself.
func Emit(fn *IRFunction) string {
	return NewEmitter().EmitFunction(fn)
}

// EmitFunction generates source for an IRFunction.
func (e *Emitter) EmitFunction(fn *IRFunction) string {
	e.buf.Reset()
	e.indent = 0

	e.writef("#define BLOCK %d\n\n", fn.TileWidth)
	e.emitSignature(fn)

	e.indent = 1
	for _, node := range fn.Operations {
		e.emitNode(node)
	}

	e.indent = 0
	e.writef("}\n")
	return e.buf.String()
}

func (e *Emitter) emitSignature(fn *IRFunction) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Kind.String() + " " + p.Name
	}
	e.writef("__global__ void %s(%s){\n", fn.Name, strings.Join(params, ", "))
}

func (e *Emitter) emitNode(node *IRNode) {
	in := func(i int) string { return node.Inputs[i].Output }
	switch node.Op {
	case OpProgramID:
		e.declare("int", node.Output, false, "get_program_id(0)")
	case OpIota:
		e.declare("int", node.Output, true, "0 ... BLOCK")
	case OpLessThanN:
		e.declare("bool", node.Output, true, fmt.Sprintf("%s < %s", in(0), node.ParamNames[0]))
	case OpMaskLoad:
		ptr := "p" + strings.ToLower(node.ParamNames[0])
		e.declare("float*", ptr, true, addressExpr(node))
		e.declare("float", node.Output, true, fmt.Sprintf("%s ? *%s : %s", in(2), ptr, floatLiteral(node.Fill)))
	case OpReduceMax:
		e.declare("float", node.Output, false, in(0)+"[max]")
	case OpReduceSum:
		e.declare("float", node.Output, false, in(0)+"[+]")
	case OpSub:
		e.declare("float", node.Output, true, in(0)+" - "+in(1))
	case OpDiv:
		e.declare("float", node.Output, true, in(0)+" / "+in(1))
	case OpExp:
		e.declare("float", node.Output, true, "exp("+in(0)+")")
	case OpMaskStore:
		ptr := "p" + strings.ToLower(node.ParamNames[0])
		e.declare("float*", ptr, true, addressExpr(node))
		e.writef("*?(%s)%s = %s;\n", in(2), ptr, in(3))
	default:
		e.writef("// unsupported %s\n", node)
	}
}

// declare writes a column-aligned declaration.
func (e *Emitter) declare(typ, name string, tile bool, expr string) {
	shape := ""
	if tile {
		shape = "[BLOCK]"
	}
	e.writef("%-6s %-5s %s = %s;\n", typ, name, shape, expr)
}

func (e *Emitter) writef(format string, args ...any) {
	if e.indent > 0 {
		e.buf.WriteString(strings.Repeat("    ", e.indent))
	}
	fmt.Fprintf(e.buf, format, args...)
}

// addressExpr renders ptr + row*stride + offsets for loads and stores.
func addressExpr(node *IRNode) string {
	return fmt.Sprintf("%s + %s*%s + %s",
		node.ParamNames[0], node.Inputs[0].Output, node.ParamNames[1], node.Inputs[1].Output)
}

func floatLiteral(v float64) string {
	switch {
	case math.IsInf(v, -1):
		return "-F32_INFINITY"
	case math.IsInf(v, 1):
		return "F32_INFINITY"
	default:
		return fmt.Sprintf("%g", v)
	}
}
