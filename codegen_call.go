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

// genCallExpr lowers a call to a user-defined VYL function, following the
// System V integer calling convention. The original pushed every argument
// left-to-right, then popped the first six into rdi/rsi/rdx/rcx/r8/r9 and
// silently discarded (`add rsp, 8`) anything beyond the sixth - a seventh
// argument was simply never passed. This spills arguments seven and up to
// the stack-argument area instead, in the order the callee expects them.
func (cg *CodeGen) genCallExpr(c *Call) (exprType, error) {
	n := len(c.Args)
	for _, arg := range c.Args {
		if _, err := cg.genExpr(arg); err != nil {
			return exprType{}, err
		}
		cg.emit("\tpush rax")
	}

	if n <= 6 {
		for i := n - 1; i >= 0; i-- {
			cg.emit("\tpop %s", paramRegs[i])
		}
		cg.emit("\tcall %s", c.Callee)
		return exprType{Type: TypeInt}, nil
	}

	extra := n - 6
	// Pad for 16-byte alignment at the call instruction: n pushes plus
	// extra relocated stack slots must together be a multiple of two
	// 8-byte words.
	pad := 0
	if (n+extra)%2 != 0 {
		pad = 8
		cg.emit("\tsub rsp, %d", pad)
	}

	// Reserve the stack-argument area below everything pushed so far and
	// copy arguments six..n-1 into it in ascending order, so argument six
	// ends up nearest the call (lowest address), matching what the callee
	// will read back at [rbp+16], [rbp+24], ...
	cg.emit("\tsub rsp, %d", 8*extra)
	for i := 6; i < n; i++ {
		srcOff := pad + 8*extra + 8*(n-1-i)
		dstOff := 8 * (i - 6)
		cg.emit("\tmov rax, [rsp+%d]", srcOff)
		cg.emit("\tmov [rsp+%d], rax", dstOff)
	}

	// Now load the register arguments (zero..five), which still sit above
	// the spill area at their original pushed offsets.
	for i := 5; i >= 0; i-- {
		off := 8*extra + 8*(n-1-i)
		cg.emit("\tmov %s, [rsp+%d]", paramRegs[i], off)
	}

	cg.emit("\tcall %s", c.Callee)
	cg.emit("\tadd rsp, %d", 8*extra+8*n+pad)
	return exprType{Type: TypeInt}, nil
}
