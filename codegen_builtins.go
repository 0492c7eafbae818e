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

import "fmt"

// builtinSig describes a fixed-arity runtime/libc call: each argument's
// class (int-register or xmm-register) and the value the call leaves
// behind. Builtins with variable arity (Print) or that need bespoke
// handling (Clock, Exit, ArrayLen, ToInt, ToDecimal, ToString, DictSet)
// are dispatched before this table.
type builtinSig struct {
	symbol  string
	argDec  []bool // true where the positional argument is a decimal
	ret     VylType
	isPLT   bool
}

// Every vyl_* symbol below is a runtime entry point declared in
// runtime/vylrt.h; the remaining symbols are libc functions.
var builtinTable = map[string]builtinSig{
	"Sqrt":          {"sqrt", []bool{true}, TypeDec, true},
	"Sin":           {"sin", []bool{true}, TypeDec, true},
	"Cos":           {"cos", []bool{true}, TypeDec, true},
	"Tan":           {"tan", []bool{true}, TypeDec, true},
	"Abs":           {"fabs", []bool{true}, TypeDec, true},
	"Floor":         {"floor", []bool{true}, TypeDec, true},
	"Ceil":          {"ceil", []bool{true}, TypeDec, true},
	"Power":         {"pow", []bool{true, true}, TypeDec, true},
	"Log":           {"log", []bool{true}, TypeDec, true},
	"Exp":           {"exp", []bool{true}, TypeDec, true},
	"Min":           {"fmin", []bool{true, true}, TypeDec, true},
	"Max":           {"fmax", []bool{true, true}, TypeDec, true},
	"Round":         {"round", []bool{true}, TypeDec, true},
	"System":        {"system", []bool{false}, TypeInt, true},
	"Exec":          {"system", []bool{false}, TypeInt, true},
	"Len":           {"strlen", []bool{false}, TypeInt, true},
	"StringCompare": {"strcmp", []bool{false, false}, TypeInt, true},
	"Exists":        {"access", []bool{false, false}, TypeInt, true},
	"CreateFolder":  {"mkdir", []bool{false, false}, TypeInt, true},
	"Open":          {"fopen", []bool{false, false}, TypeInt, true},
	"Close":         {"fclose", []bool{false}, TypeInt, true},
	"Concat":        {"vyl_string_concat", []bool{false, false}, TypeString, true},
	"Substring":     {"vyl_substring", []bool{false, false, false}, TypeString, true},
	"StringSplit":   {"vyl_stringsplit", []bool{false, false}, TypeInt, true},
	"ReadLine":      {"vyl_readline_file", []bool{false}, TypeString, true},
	"ReadSize":      {"vyl_read_size", []bool{false, false}, TypeString, true},
	"Read":          {"vyl_read_file", []bool{false}, TypeString, true},
	"Write":         {"vyl_write_file", []bool{false, false}, TypeInt, true},
	"ListNew":       {"vyl_list_new", nil, TypeInt, true},
	"ListAppend":    {"vyl_list_append", []bool{false, false}, TypeInt, true},
	"ListLen":       {"vyl_list_len", []bool{false}, TypeInt, true},
	"ListGet":       {"vyl_list_get", []bool{false, false}, TypeInt, true},
	"ListSet":       {"vyl_list_set", []bool{false, false, false}, TypeInt, true},
	"ListFree":      {"vyl_list_free", []bool{false}, TypeInt, true},
	"DictNew":       {"vyl_dict_new", nil, TypeInt, true},
	"DictGet":       {"vyl_dict_get", []bool{false, false}, TypeInt, true},
	"DictGetType":   {"vyl_dict_get_type", []bool{false, false}, TypeInt, true},
	"DictFree":      {"vyl_dict_free", []bool{false}, TypeInt, true},
	"Free":          {"vyl_free_ptr", []bool{false}, TypeInt, true},
}

func isBuiltinName(name string) bool {
	switch name {
	case "Print", "Clock", "Exit", "ArrayLen", "ToInt", "ToDecimal", "ToString", "DictSet":
		return true
	}
	_, ok := builtinTable[name]
	return ok
}

func (cg *CodeGen) genBuiltinCall(c *Call) (exprType, error) {
	switch c.Callee {
	case "Print":
		return cg.genPrintCall(c)
	case "Clock":
		return cg.genClockCall(c)
	case "Exit":
		return cg.genExitCall(c)
	case "ArrayLen":
		return cg.genArrayLenCall(c)
	case "ToInt":
		return cg.genToInt(c)
	case "ToDecimal":
		return cg.genToDecimal(c)
	case "ToString":
		return cg.genToString(c)
	case "DictSet":
		return cg.genDictSetCall(c)
	}

	sig, ok := builtinTable[c.Callee]
	if !ok {
		return exprType{}, &CodegenError{Line: c.Line, Msg: fmt.Sprintf("unknown builtin %q", c.Callee)}
	}
	if len(c.Args) != len(sig.argDec) {
		return exprType{}, &CodegenError{Line: c.Line, Msg: fmt.Sprintf("%s expects %d arguments", c.Callee, len(sig.argDec))}
	}
	if err := cg.evalAndLoadArgs(c.Args, sig.argDec); err != nil {
		return exprType{}, err
	}
	cg.useExtern(sig.symbol)
	if sig.isPLT {
		cg.emit("\tcall %s@plt", sig.symbol)
	} else {
		cg.emit("\tcall %s", sig.symbol)
	}
	return exprType{Type: sig.ret}, nil
}

// evalAndLoadArgs evaluates each argument in source order, pushing its
// raw bits to the stack, then pops them back in reverse order straight
// into the register each one's class (integer or xmm) and position
// dictates. Evaluating every argument before touching any call register
// avoids a later argument's own register use (e.g. a nested call) from
// clobbering an earlier argument already staged in place.
func (cg *CodeGen) evalAndLoadArgs(args []Node, argDec []bool) error {
	for i, a := range args {
		if _, err := cg.genExpr(a); err != nil {
			return err
		}
		cg.pushArgResult(argDec[i])
	}
	cg.popArgsIntoRegisters(argDec)
	return nil
}

// pushArgResult stashes the just-evaluated result (xmm0 for a decimal,
// rax otherwise) onto the stack in its natural width.
func (cg *CodeGen) pushArgResult(isDec bool) {
	if isDec {
		cg.emit("\tsub rsp, 8")
		cg.emit("\tmovsd [rsp], xmm0")
	} else {
		cg.emit("\tpush rax")
	}
}

// popArgsIntoRegisters pops every pushed argument back in reverse order
// straight into the register its class and position dictate.
func (cg *CodeGen) popArgsIntoRegisters(argDec []bool) {
	intIdx, sseIdx := 0, 0
	intPos := make([]int, len(argDec))
	ssePos := make([]int, len(argDec))
	for i, dec := range argDec {
		if dec {
			ssePos[i] = sseIdx
			sseIdx++
		} else {
			intPos[i] = intIdx
			intIdx++
		}
	}

	for i := len(argDec) - 1; i >= 0; i-- {
		if argDec[i] {
			cg.emit("\tmovsd xmm%d, [rsp]", ssePos[i])
			cg.emit("\tadd rsp, 8")
		} else {
			cg.emit("\tpop %s", paramRegs[intPos[i]])
		}
	}
}

// peekType best-effort resolves the static type of an argument expression
// without emitting any code, so Print can choose %d/%.6g/%s per argument.
func (cg *CodeGen) peekType(n Node) VylType {
	switch v := n.(type) {
	case *NumberLit:
		return TypeInt
	case *DecimalLit:
		return TypeDec
	case *StringLit, *VylNewline:
		return TypeString
	case *Var:
		if l, ok := cg.lookupLocal(v.Name); ok {
			return l.Type
		}
	case *BinaryOp:
		if v.Op == OpEq || v.Op == OpNe || v.Op == OpLt || v.Op == OpGt || v.Op == OpLe || v.Op == OpGe || v.Op == OpAnd || v.Op == OpOr {
			return TypeBool
		}
		// a mixed int/dec operand pair promotes to dec, same as genBinaryOp.
		if cg.peekType(v.Left) == TypeDec || cg.peekType(v.Right) == TypeDec {
			return TypeDec
		}
		return cg.peekType(v.Left)
	case *Index:
		if base, ok := v.Base.(*Var); ok {
			if l, ok := cg.lookupLocal(base.Name); ok {
				return l.Type
			}
		}
	case *MemberAccess:
		if ty, err := cg.resolveBase(v); err == nil {
			return ty.Type
		}
	case *Call:
		switch v.Callee {
		case "Clock", "ToDecimal":
			return TypeDec
		case "ToString":
			return TypeString
		}
		if sig, ok := builtinTable[v.Callee]; ok {
			return sig.ret
		}
	}
	return TypeInt
}

// genPrintCall assembles a printf format string from each argument's
// static type (the original only ever considered int/%d and dec/%f; this
// also covers string and bool) and loads arguments into the register
// classes a variadic call requires: the AL register must carry the count
// of vector registers used, per the System V variadic-call convention.
func (cg *CodeGen) genPrintCall(c *Call) (exprType, error) {
	argDec := make([]bool, len(c.Args))
	format := ""
	var trueID, falseID int
	haveBoolStrings := false

	for i, a := range c.Args {
		kind := cg.peekType(a)
		switch kind {
		case TypeDec:
			format += "%.6g "
			argDec[i] = true
		case TypeString, TypeBool:
			format += "%s "
		default:
			format += "%d "
		}

		if _, err := cg.genExpr(a); err != nil {
			return exprType{}, err
		}
		if kind == TypeBool {
			if !haveBoolStrings {
				trueID = cg.interner.String("true")
				falseID = cg.interner.String("false")
				haveBoolStrings = true
			}
			lbl := cg.label("printbool")
			cg.emit("\tcmp rax, 0")
			cg.emit("\tjne %strue", lbl)
			cg.emit("\tlea rax, [rip+str%d]", falseID)
			cg.emit("\tjmp %sdone", lbl)
			cg.emit("%strue:", lbl)
			cg.emit("\tlea rax, [rip+str%d]", trueID)
			cg.emit("%sdone:", lbl)
		}
		cg.pushArgResult(argDec[i])
	}
	cg.popArgsIntoRegisters(argDec)
	format += "\n" // the original always prints a trailing newline after every argument

	// Shift every already-loaded integer register up by one slot to make
	// room for the format string in rdi; xmm registers are untouched
	// since the format pointer is always integer-class.
	intArgCount := 0
	for _, dec := range argDec {
		if !dec {
			intArgCount++
		}
	}
	for i := intArgCount - 1; i >= 0; i-- {
		cg.emit("\tmov %s, %s", paramRegs[i+1], paramRegs[i])
	}

	fmtID := cg.interner.String(format)
	cg.emit("\tlea rdi, [rip+str%d]", fmtID)

	sseCount := 0
	for _, dec := range argDec {
		if dec {
			sseCount++
		}
	}
	cg.emit("\tmov al, %d", sseCount)
	cg.useExtern("printf")
	cg.emit("\tcall printf@plt")
	return exprType{Type: TypeInt}, nil
}

func (cg *CodeGen) genClockCall(c *Call) (exprType, error) {
	cg.useExtern("clock")
	cg.emit("\tcall clock@plt")
	cg.emit("\tcvtsi2sd xmm0, rax")
	id := cg.interner.Double(1000000.0)
	cg.emit("\tdivsd xmm0, [rip+dbl%d]", id)
	return exprType{Type: TypeDec}, nil
}

func (cg *CodeGen) genExitCall(c *Call) (exprType, error) {
	if len(c.Args) != 1 {
		return exprType{}, &CodegenError{Line: c.Line, Msg: "Exit expects one argument"}
	}
	if _, err := cg.genExpr(c.Args[0]); err != nil {
		return exprType{}, err
	}
	cg.emit("\tmov rdi, rax")
	cg.useExtern("exit")
	cg.emit("\tcall exit@plt")
	return exprType{Type: TypeInt}, nil
}

// genArrayLenCall returns the compile-time-known size of a declared array
// named by a plain variable. Any other argument expression is evaluated and
// handed to the runtime fallback vyl_array_len, which returns -1.
func (cg *CodeGen) genArrayLenCall(c *Call) (exprType, error) {
	if len(c.Args) != 1 {
		return exprType{}, &CodegenError{Line: c.Line, Msg: "ArrayLen expects one argument"}
	}
	v, ok := c.Args[0].(*Var)
	if !ok {
		if _, err := cg.genExpr(c.Args[0]); err != nil {
			return exprType{}, err
		}
		cg.emit("\tmov rdi, rax")
		cg.useExtern("vyl_array_len")
		cg.emit("\tcall vyl_array_len@plt")
		return exprType{Type: TypeInt}, nil
	}
	l, ok := cg.lookupLocal(v.Name)
	if !ok || l.ArraySize == 0 {
		return exprType{}, &CodegenError{Line: c.Line, Msg: fmt.Sprintf("%q is not an array", v.Name)}
	}
	cg.emit("\tmov rax, %d", l.ArraySize)
	return exprType{Type: TypeInt}, nil
}

// genToInt lowers ToInt(x): a numeric narrowing cast when x is already a
// number, or a string parse (vyl_to_int, grounded on the original's
// identically named helper) when x is a string.
func (cg *CodeGen) genToInt(c *Call) (exprType, error) {
	if len(c.Args) != 1 {
		return exprType{}, &CodegenError{Line: c.Line, Msg: "ToInt expects one argument"}
	}
	ty, err := cg.genExpr(c.Args[0])
	if err != nil {
		return exprType{}, err
	}
	switch ty.Type {
	case TypeDec:
		cg.emit("\tcvttsd2si rax, xmm0")
	case TypeString:
		cg.emit("\tmov rdi, rax")
		cg.useExtern("vyl_to_int")
		cg.emit("\tcall vyl_to_int@plt")
	}
	return exprType{Type: TypeInt}, nil
}

// genToDecimal mirrors genToInt: a widening cast for numbers, a string
// parse (vyl_to_decimal) for strings.
func (cg *CodeGen) genToDecimal(c *Call) (exprType, error) {
	if len(c.Args) != 1 {
		return exprType{}, &CodegenError{Line: c.Line, Msg: "ToDecimal expects one argument"}
	}
	ty, err := cg.genExpr(c.Args[0])
	if err != nil {
		return exprType{}, err
	}
	switch ty.Type {
	case TypeString:
		cg.emit("\tmov rdi, rax")
		cg.useExtern("vyl_to_decimal")
		cg.emit("\tcall vyl_to_decimal@plt")
	case TypeDec:
		// already in xmm0
	default:
		cg.emit("\tcvtsi2sd xmm0, rax")
	}
	return exprType{Type: TypeDec}, nil
}

// valueTypeTag maps a VYL static type to the VylValueType tag the runtime's
// typed dictionary uses to remember what it boxed.
func valueTypeTag(t VylType) int {
	switch t {
	case TypeInt:
		return 0
	case TypeString:
		return 1
	case TypeDec:
		return 2
	case TypeBool:
		return 3
	default:
		return 4 // VYL_VALUE_PTR
	}
}

// genDictSetCall lowers DictSet(dict, key, value) to vyl_dict_set_typed,
// which additionally records value's VylValueType tag so DictGetType can
// later report what was stored - the original's declared but unimplemented
// dictionary only ever dealt in untyped void* values.
func (cg *CodeGen) genDictSetCall(c *Call) (exprType, error) {
	if len(c.Args) != 3 {
		return exprType{}, &CodegenError{Line: c.Line, Msg: "DictSet expects three arguments"}
	}
	if _, err := cg.genExpr(c.Args[0]); err != nil {
		return exprType{}, err
	}
	cg.emit("\tpush rax")
	if _, err := cg.genExpr(c.Args[1]); err != nil {
		return exprType{}, err
	}
	cg.emit("\tpush rax")
	valTy, err := cg.genExpr(c.Args[2])
	if err != nil {
		return exprType{}, err
	}
	if valTy.Type == TypeDec {
		cg.emit("\tmovq rax, xmm0")
	}
	cg.emit("\tpush rax")

	cg.emit("\tpop rdx")
	cg.emit("\tpop rsi")
	cg.emit("\tpop rdi")
	cg.emit("\tmov rcx, %d", valueTypeTag(valTy.Type))
	cg.useExtern("vyl_dict_set_typed")
	cg.emit("\tcall vyl_dict_set_typed@plt")
	return exprType{Type: TypeInt}, nil
}

func (cg *CodeGen) genToString(c *Call) (exprType, error) {
	if len(c.Args) != 1 {
		return exprType{}, &CodegenError{Line: c.Line, Msg: "ToString expects one argument"}
	}
	ty, err := cg.genExpr(c.Args[0])
	if err != nil {
		return exprType{}, err
	}
	switch ty.Type {
	case TypeDec:
		cg.useExtern("vyl_to_string_dec")
		cg.emit("\tcall vyl_to_string_dec@plt")
	case TypeString:
		// already a string
	default:
		cg.emit("\tmov rdi, rax")
		cg.useExtern("vyl_to_string_int")
		cg.emit("\tcall vyl_to_string_int@plt")
	}
	return exprType{Type: TypeString}, nil
}
