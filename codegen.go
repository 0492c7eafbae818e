// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"strings"
)

// calleeSavedPool is the fixed register pool used to promote scalar locals
// out of the stack frame, in allocation order.
var calleeSavedPool = []string{"rbx", "r12", "r13", "r14", "r15"}

// Local describes one function-scope variable: a parameter or a var
// declaration. Params are always stack-resident; the first five eligible
// scalar locals are promoted into calleeSavedPool instead.
type Local struct {
	Name           string
	Offset         int // byte offset from rbp, negative; unused when Reg != ""
	Type           VylType
	CustomTypeName string
	ArraySize      int // 0 for a scalar
	Reg            string
	IsParam        bool
}

func (l *Local) operand() string {
	if l.Reg != "" {
		return l.Reg
	}
	return fmt.Sprintf("[rbp-%d]", -l.Offset)
}

// StructInfo is the layout descriptor for one struct definition: field
// order, each field's full type, and its byte offset (8 bytes per field,
// matching the runtime's malloc(8*field_count) allocation).
type StructInfo struct {
	Name   string
	Fields []StructField
}

func (s *StructInfo) fieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s *StructInfo) field(name string) (StructField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return StructField{}, false
}

type loopLabels struct {
	continueLabel string
	breakLabel    string
}

// CodeGen lowers a Program into Intel-syntax GAS assembly text. One
// instance is used for exactly one compilation; its interning and struct
// tables are scoped to that instance rather than shared globally.
type CodeGen struct {
	text strings.Builder

	interner *Interner

	locals    []*Local
	localIdx  map[string]*Local
	nextSlot  int // next free stack offset (grows negative)
	usedRegs  int // how many of calleeSavedPool are in use this function

	structs map[string]*StructInfo

	labelSeq  int
	loopStack []loopLabels

	externs map[string]bool

	file string
}

func NewCodeGen(file string) *CodeGen {
	return &CodeGen{
		interner: NewInterner(),
		localIdx: map[string]*Local{},
		structs:  map[string]*StructInfo{},
		externs:  map[string]bool{},
		file:     file,
	}
}

func (cg *CodeGen) emit(format string, args ...interface{}) {
	fmt.Fprintf(&cg.text, format+"\n", args...)
}

func (cg *CodeGen) label(prefix string) string {
	cg.labelSeq++
	return fmt.Sprintf(".L%s%d", prefix, cg.labelSeq)
}

func (cg *CodeGen) useExtern(name string) {
	cg.externs[name] = true
}

// resetLocals clears per-function state. Unlike the original's
// codegen_cleanup, this does NOT touch cg.structs: struct layouts are
// registered once for the whole compilation in a pre-pass (see Generate),
// so a struct declared at top level resolves correctly inside every
// function regardless of the order functions are emitted in.
func (cg *CodeGen) resetLocals() {
	cg.locals = nil
	cg.localIdx = map[string]*Local{}
	cg.nextSlot = 0
	cg.usedRegs = 0
}

// registerStructsFromStatements pre-registers every StructDef found in a
// node slice (top level or nested inside an include splice) so that member
// access resolves no matter which function is generated first.
func (cg *CodeGen) registerStructsFromStatements(nodes []Node) {
	for _, n := range nodes {
		if sd, ok := n.(*StructDef); ok {
			cg.structs[sd.Name] = &StructInfo{Name: sd.Name, Fields: sd.Fields}
		}
	}
}

func (cg *CodeGen) eligibleForRegister(typ VylType, arraySize int) bool {
	return arraySize == 0 && (typ == TypeInt || typ == TypeBool) && cg.usedRegs < len(calleeSavedPool)
}

// declareLocal allocates storage for a new local, promoting it to a
// callee-saved register when the first-five-scalar-locals budget allows.
func (cg *CodeGen) declareLocal(name string, typ VylType, customType string, arraySize int, isParam bool) *Local {
	l := &Local{Name: name, Type: typ, CustomTypeName: customType, ArraySize: arraySize, IsParam: isParam}
	if !isParam && cg.eligibleForRegister(typ, arraySize) {
		l.Reg = calleeSavedPool[cg.usedRegs]
		cg.usedRegs++
	} else {
		size := 8
		if arraySize > 0 {
			size = 8 * arraySize
		}
		cg.nextSlot -= size
		l.Offset = cg.nextSlot
	}
	cg.locals = append(cg.locals, l)
	cg.localIdx[name] = l
	return l
}

func (cg *CodeGen) lookupLocal(name string) (*Local, bool) {
	l, ok := cg.localIdx[name]
	return l, ok
}

// frameSize rounds the stack space used by non-promoted locals up to a
// 16-byte boundary for the function prologue's `sub rsp, N`.
func (cg *CodeGen) frameSize() int {
	n := -cg.nextSlot
	if n%16 != 0 {
		n += 16 - n%16
	}
	return n
}

// Generate lowers an entire program to assembly text, returning the full
// file contents (header, data, text) ready to hand to the assembler.
func (cg *CodeGen) Generate(prog *Program) (string, error) {
	// Pre-pass: register every struct definition before generating any
	// function body, top-level or not.
	cg.registerStructsFromStatements(prog.Nodes)

	var funcs []*FunctionDef
	var mainBody []Node
	var mainFn *FunctionDef
	for _, n := range prog.Nodes {
		switch v := n.(type) {
		case *FunctionDef:
			if v.Name == "main" {
				mainFn = v
			} else {
				funcs = append(funcs, v)
			}
		case *StructDef:
			// already registered above
		default:
			mainBody = append(mainBody, n)
		}
	}

	for _, fn := range funcs {
		if err := cg.genFunction(fn); err != nil {
			return "", err
		}
	}
	if mainFn != nil {
		if err := cg.genMainFunction(mainFn); err != nil {
			return "", err
		}
	} else {
		if err := cg.genMain(mainBody); err != nil {
			return "", err
		}
	}

	return cg.assemble(), nil
}

// assemble concatenates the header (.intel_syntax directive plus a complete
// .extern list), the .rodata section built from the interning tables, and
// the buffered .text section produced by gen*.
func (cg *CodeGen) assemble() string {
	var out strings.Builder
	out.WriteString(".intel_syntax noprefix\n")

	externs := make([]string, 0, len(cg.externs))
	for name := range cg.externs {
		externs = append(externs, name)
	}
	sortStrings(externs)
	for _, name := range externs {
		fmt.Fprintf(&out, ".extern %s\n", name)
	}
	out.WriteString("\n")

	if len(cg.interner.Strings()) > 0 {
		out.WriteString(".section .rodata\n")
		for i, s := range cg.interner.Strings() {
			fmt.Fprintf(&out, "str%d: .asciz %q\n", i, s)
		}
		out.WriteString("\n")
	}
	if len(cg.interner.Doubles()) > 0 {
		out.WriteString(".section .rodata\n")
		for i, d := range cg.interner.Doubles() {
			fmt.Fprintf(&out, "dbl%d: .double %v\n", i, d)
		}
		out.WriteString("\n")
	}

	out.WriteString(".section .text\n")
	out.WriteString(".globl main\n\n")
	out.WriteString(cg.text.String())
	return out.String()
}

// sortStrings avoids pulling in "sort" for a handful of extern names; kept
// as a tiny insertion sort since the extern set never grows past a few
// dozen entries.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func (cg *CodeGen) genMainFunction(fn *FunctionDef) error {
	return cg.genFunctionBody("main", fn.Params, fn.Body)
}

func (cg *CodeGen) genMain(stmts []Node) error {
	return cg.genFunctionBody("main", nil, stmts)
}

func (cg *CodeGen) genFunction(fn *FunctionDef) error {
	return cg.genFunctionBody(fn.Name, fn.Params, fn.Body)
}

var paramRegs = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

func (cg *CodeGen) genFunctionBody(name string, params []string, body []Node) error {
	cg.resetLocals()

	cg.emit(".globl %s", name)
	cg.emit("%s:", name)
	cg.emit("\tpush rbp")
	cg.emit("\tmov rbp, rsp")
	for _, r := range calleeSavedPool {
		cg.emit("\tpush %s", r)
	}

	// Params are declared first, since they always land on the stack. The
	// frame size is not known until the body has declared all its locals,
	// so a placeholder `sub rsp` is emitted here and patched below.
	for i, p := range params {
		l := cg.declareLocal(p, TypeInt, "", 0, true)
		if i < 6 {
			cg.emit("\tmov %s, %s", l.operand(), paramRegs[i])
		} else {
			// 7th+ parameters were spilled to the stack-argument area by
			// the caller; read them back relative to rbp, above the
			// saved return address and saved rbp.
			cg.emit("\tmov rax, [rbp+%d]", 16+8*(i-6))
			cg.emit("\tmov %s, rax", l.operand())
		}
	}

	cg.emit("\tsub rsp, FRAME_SIZE_PLACEHOLDER")

	for _, stmt := range body {
		if err := cg.genStatement(stmt); err != nil {
			return err
		}
	}

	cg.emit("%s_epilogue:", name)
	cg.emit("\tmov rax, 0")
	for i := len(calleeSavedPool) - 1; i >= 0; i-- {
		cg.emit("\tpop %s", calleeSavedPool[i])
	}
	cg.emit("\tleave")
	cg.emit("\tret")
	cg.emit("")

	// Patch the frame-size placeholder now that every local in the
	// function has been declared.
	body1 := cg.text.String()
	cg.text.Reset()
	cg.text.WriteString(strings.Replace(body1, "sub rsp, FRAME_SIZE_PLACEHOLDER",
		fmt.Sprintf("sub rsp, %d", cg.frameSize()), 1))

	return nil
}
