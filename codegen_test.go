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
	"strings"
	"testing"
)

func generate(t *testing.T, src string) string {
	t.Helper()
	prog := parse(t, src)
	cg := NewCodeGen("test.vyl")
	asm, err := cg.Generate(prog)
	if err != nil {
		t.Fatalf("Generate(%q) returned error: %v", src, err)
	}
	return asm
}

func TestCodeGen_RegisterPromotionBound(t *testing.T) {
	cg := NewCodeGen("test.vyl")
	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, n := range names {
		cg.declareLocal(n, TypeInt, "", 0, false)
	}
	promoted := 0
	for _, n := range names {
		l, _ := cg.lookupLocal(n)
		if l.Reg != "" {
			promoted++
		}
	}
	if promoted != len(calleeSavedPool) {
		t.Errorf("promoted %d locals, want exactly %d (pool size)", promoted, len(calleeSavedPool))
	}
	for i, n := range names[:len(calleeSavedPool)] {
		l, _ := cg.lookupLocal(n)
		if l.Reg != calleeSavedPool[i] {
			t.Errorf("local %q got register %q, want %q (declaration order)", n, l.Reg, calleeSavedPool[i])
		}
	}
	for _, n := range names[len(calleeSavedPool):] {
		l, _ := cg.lookupLocal(n)
		if l.Reg != "" {
			t.Errorf("local %q beyond the pool budget should not be promoted, got reg %q", n, l.Reg)
		}
	}
}

func TestCodeGen_OnlyIntAndBoolScalarsPromote(t *testing.T) {
	cg := NewCodeGen("test.vyl")
	cg.declareLocal("s", TypeString, "", 0, false)
	cg.declareLocal("d", TypeDec, "", 0, false)
	cg.declareLocal("arr", TypeInt, "", 4, false)
	cg.declareLocal("i", TypeInt, "", 0, false)

	for _, name := range []string{"s", "d", "arr"} {
		l, _ := cg.lookupLocal(name)
		if l.Reg != "" {
			t.Errorf("local %q should not be register-eligible, got reg %q", name, l.Reg)
		}
	}
	l, _ := cg.lookupLocal("i")
	if l.Reg == "" {
		t.Errorf("first scalar int local should be promoted")
	}
}

func TestCodeGen_FrameOffsetsAreMultiplesOf8(t *testing.T) {
	cg := NewCodeGen("test.vyl")
	// exhaust the register pool first so subsequent locals land on the stack
	for i := 0; i < len(calleeSavedPool); i++ {
		cg.declareLocal(string(rune('a'+i)), TypeInt, "", 0, false)
	}
	x := cg.declareLocal("x", TypeString, "", 0, false)
	y := cg.declareLocal("y", TypeInt, "", 3, false)

	if x.Offset%8 != 0 || x.Offset >= 0 {
		t.Errorf("x.Offset = %d, want a negative multiple of 8", x.Offset)
	}
	if y.Offset%8 != 0 || y.Offset >= 0 {
		t.Errorf("y.Offset = %d, want a negative multiple of 8", y.Offset)
	}
	if x.Offset == y.Offset {
		t.Errorf("distinct locals must not share a stack offset")
	}
}

func TestCodeGen_FrameSizeRoundedTo16(t *testing.T) {
	cg := NewCodeGen("test.vyl")
	for i := 0; i < len(calleeSavedPool); i++ {
		cg.declareLocal(string(rune('a'+i)), TypeInt, "", 0, false)
	}
	cg.declareLocal("x", TypeString, "", 0, false)
	if cg.frameSize()%16 != 0 {
		t.Errorf("frameSize() = %d, want a multiple of 16", cg.frameSize())
	}
}

func TestCodeGen_InternsDuplicateStringLiteralsOnce(t *testing.T) {
	asm := generate(t, `Main() { Print("dup"); Print("dup"); Print("other") }`)
	if strings.Count(asm, `.asciz "dup"`) != 1 {
		t.Errorf("expected exactly one .rodata entry for the repeated literal, got:\n%s", asm)
	}
}

func TestCodeGen_ExternListIsComplete(t *testing.T) {
	asm := generate(t, `Main() { Print(Sqrt(4.0)) }`)
	if !strings.Contains(asm, ".extern printf") {
		t.Errorf("missing .extern printf in:\n%s", asm)
	}
	if !strings.Contains(asm, ".extern sqrt") {
		t.Errorf("missing .extern sqrt in:\n%s", asm)
	}
}

func TestCodeGen_SevenArgumentCallSpillsInsteadOfDropping(t *testing.T) {
	src := `Function f(a, b, c, d, e, g, h) { return a }
Main() { Print(f(1, 2, 3, 4, 5, 6, 7)) }`
	asm := generate(t, src)
	if !strings.Contains(asm, "sub rsp,") && !strings.Contains(asm, "sub rsp, ") {
		t.Fatalf("expected a stack reservation for the spilled 7th argument in:\n%s", asm)
	}
	// the 7th parameter must be read back from the caller's stack-argument
	// area rather than silently left unread.
	if !strings.Contains(asm, "rbp+16") {
		t.Errorf("callee does not read back a stack-argument parameter in:\n%s", asm)
	}
}

func TestCodeGen_ArrayBoundsCheckedOnReadAndWrite(t *testing.T) {
	src := `Main() { var int[3] xs; xs[0] = 1; Print(xs[0]) }`
	asm := generate(t, src)
	if strings.Count(asm, "Index out of bounds") == 0 {
		t.Fatalf("expected bounds-check panic message to be interned in:\n%s", asm)
	}
	if strings.Count(asm, "vyl_panic@plt") < 2 {
		t.Errorf("expected both the read and the write to reach vyl_panic, got:\n%s", asm)
	}
}

func TestCodeGen_MatchLowersToBranchChain(t *testing.T) {
	src := `Main() { var int x = 1; match x { 1 => { Print(1) } 2 => { Print(2) } _ => { Print(0) } } }`
	asm := generate(t, src)
	if strings.Count(asm, "cmp") == 0 {
		t.Fatalf("expected equality comparisons for each non-wildcard case in:\n%s", asm)
	}
}

func TestCodeGen_BreakAndContinueJumpToLoopLabels(t *testing.T) {
	src := `Main() { var int i = 0; while (i < 3) { i = i + 1; if (i == 1) { continue } if (i == 2) { break } } }`
	asm := generate(t, src)
	if !strings.Contains(asm, "jmp") {
		t.Fatalf("expected break to compile to an unconditional jump in:\n%s", asm)
	}
	if !strings.Contains(asm, "jmp .Lwhile_end") {
		t.Errorf("expected break to jump to the loop's end label in:\n%s", asm)
	}
	if strings.Count(asm, "jmp .Lwhile_test") < 2 {
		t.Errorf("expected continue to jump to the loop's test label in:\n%s", asm)
	}
}

func TestCodeGen_DecVarDeclPromotesIntInitializer(t *testing.T) {
	asm := generate(t, `Main() { var dec x = 5; Print(x) }`)
	if !strings.Contains(asm, "cvtsi2sd") {
		t.Fatalf("expected an int-to-dec initializer to promote via cvtsi2sd in:\n%s", asm)
	}
}

func TestCodeGen_MixedIntDecBinaryOpPromotesIntSide_LeftInt(t *testing.T) {
	src := `Main() { var int a = 5; var dec b = 2.0; Print(a + b) }`
	asm := generate(t, src)
	if !strings.Contains(asm, "cvtsi2sd") {
		t.Fatalf("expected int-left/dec-right addition to promote the int side via cvtsi2sd in:\n%s", asm)
	}
	if !strings.Contains(asm, "addsd") {
		t.Errorf("expected the combine to happen on the SSE path (addsd) in:\n%s", asm)
	}
}

func TestCodeGen_MixedIntDecBinaryOpPromotesIntSide_RightInt(t *testing.T) {
	src := `Main() { var dec b = 2.0; var int a = 5; Print(b + a) }`
	asm := generate(t, src)
	if !strings.Contains(asm, "cvtsi2sd") {
		t.Fatalf("expected dec-left/int-right addition to promote the int side via cvtsi2sd in:\n%s", asm)
	}
	if !strings.Contains(asm, "addsd") {
		t.Errorf("expected the combine to happen on the SSE path (addsd) in:\n%s", asm)
	}
}

func TestCodeGen_MixedIntDecComparisonPromotesIntSide(t *testing.T) {
	src := `Main() { var int a = 5; var dec b = 2.0; if (a < b) { Print(1) } }`
	asm := generate(t, src)
	if !strings.Contains(asm, "cvtsi2sd") {
		t.Fatalf("expected a mixed int/dec comparison to promote the int side via cvtsi2sd in:\n%s", asm)
	}
	if !strings.Contains(asm, "ucomisd") {
		t.Errorf("expected the comparison to happen on the SSE path (ucomisd) in:\n%s", asm)
	}
}

func TestCodeGen_PrintFormatEndsWithTrailingNewline(t *testing.T) {
	asm := generate(t, `Main() { Print(1 + 2 * 3) }`)
	if !strings.Contains(asm, `"%d \n"`) {
		t.Fatalf("expected the interned Print format string to end with a trailing newline in:\n%s", asm)
	}
}

func TestCodeGen_StructAccessibleFromFunctionDefinedBeforeIt(t *testing.T) {
	// the struct is parsed after the function that allocates and uses one in
	// source order; the pre-pass in Generate must register it before
	// gen_function runs.
	src := `Function makeSum() { var P p = new P; p.x = 3; p.y = 4; return p.x + p.y }
struct P { var int x var int y }
Main() { Print(makeSum()) }`
	_, err := NewCodeGen("test.vyl").Generate(parse(t, src))
	if err != nil {
		t.Fatalf("Generate returned error for a function using a struct declared later in source: %v", err)
	}
}
