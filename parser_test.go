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
	"os"
	"path/filepath"
	"testing"
)

func parse(t *testing.T, src string) *Program {
	t.Helper()
	toks, err := NewLexer("test.vyl", src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize(%q) returned error: %v", src, err)
	}
	prog, err := NewParser("test.vyl", toks).Parse()
	if err != nil {
		t.Fatalf("Parse(%q) returned error: %v", src, err)
	}
	return prog
}

func TestParser_ConstantFoldsArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want int32
	}{
		{"1 + 2", 3},
		{"10 - 4", 6},
		{"3 * 4", 12},
		{"10 / 3", 3},
		{"10 % 3", 1},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog := parse(t, tt.src)
			n, ok := prog.Nodes[0].(*NumberLit)
			if !ok {
				t.Fatalf("got %T, want *NumberLit", prog.Nodes[0])
			}
			if n.Value != tt.want {
				t.Errorf("got %d, want %d", n.Value, tt.want)
			}
		})
	}
}

func TestParser_ConstantFoldsComparison(t *testing.T) {
	tests := []struct {
		src  string
		want int32
	}{
		{"1 < 2", 1},
		{"2 < 1", 0},
		{"3 != 3", 0},
		{"3 <= 3", 1},
		{"4 >= 5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog := parse(t, tt.src)
			n, ok := prog.Nodes[0].(*NumberLit)
			if !ok {
				t.Fatalf("got %T, want *NumberLit", prog.Nodes[0])
			}
			if n.Value != tt.want {
				t.Errorf("got %d, want %d", n.Value, tt.want)
			}
		})
	}
}

func TestParser_ConstantFoldsStringConcat(t *testing.T) {
	prog := parse(t, `"foo" + "bar"`)
	s, ok := prog.Nodes[0].(*StringLit)
	if !ok {
		t.Fatalf("got %T, want *StringLit", prog.Nodes[0])
	}
	if s.Value != "foobar" {
		t.Errorf("got %q, want %q", s.Value, "foobar")
	}
}

func TestParser_NoFoldOnMixedOperandKinds(t *testing.T) {
	prog := parse(t, "a + 1")
	if _, ok := prog.Nodes[0].(*BinaryOp); !ok {
		t.Fatalf("got %T, want *BinaryOp (no folding across a variable)", prog.Nodes[0])
	}
}

func TestParser_Precedence(t *testing.T) {
	prog := parse(t, "a + b * c")
	bin, ok := prog.Nodes[0].(*BinaryOp)
	if !ok {
		t.Fatalf("got %T, want *BinaryOp", prog.Nodes[0])
	}
	if bin.Op != OpAdd {
		t.Fatalf("outer op = %v, want OpAdd", bin.Op)
	}
	if _, ok := bin.Right.(*BinaryOp); !ok {
		t.Fatalf("right operand = %T, want nested *BinaryOp for a + (b * c)", bin.Right)
	}
}

func TestParser_VarDeclWithArraySize(t *testing.T) {
	prog := parse(t, "var int[3] xs;")
	decl, ok := prog.Nodes[0].(*VarDecl)
	if !ok {
		t.Fatalf("got %T, want *VarDecl", prog.Nodes[0])
	}
	if decl.Type != TypeInt || decl.ArraySize != 3 || decl.Name != "xs" {
		t.Errorf("got %+v, want int[3] xs", decl)
	}
}

func TestParser_VarDeclCustomType(t *testing.T) {
	prog := parse(t, "var Point p;")
	decl, ok := prog.Nodes[0].(*VarDecl)
	if !ok {
		t.Fatalf("got %T, want *VarDecl", prog.Nodes[0])
	}
	if decl.Type != TypeCustom || decl.CustomTypeName != "Point" || decl.Name != "p" {
		t.Errorf("got %+v, want custom Point p", decl)
	}
}

func TestParser_StructDef(t *testing.T) {
	prog := parse(t, "struct P { var int x var int y }")
	s, ok := prog.Nodes[0].(*StructDef)
	if !ok {
		t.Fatalf("got %T, want *StructDef", prog.Nodes[0])
	}
	if s.Name != "P" || len(s.Fields) != 2 {
		t.Fatalf("got %+v, want struct P with 2 fields", s)
	}
	if s.Fields[0].Name != "x" || s.Fields[1].Name != "y" {
		t.Errorf("field order/names wrong: %+v", s.Fields)
	}
}

func TestParser_MemberAccessChain(t *testing.T) {
	prog := parse(t, "a.b.c")
	outer, ok := prog.Nodes[0].(*MemberAccess)
	if !ok {
		t.Fatalf("got %T, want *MemberAccess", prog.Nodes[0])
	}
	if outer.Member != "c" {
		t.Fatalf("outer member = %q, want c", outer.Member)
	}
	inner, ok := outer.Base.(*MemberAccess)
	if !ok {
		t.Fatalf("base = %T, want nested *MemberAccess for a.b.c", outer.Base)
	}
	if inner.Member != "b" {
		t.Errorf("inner member = %q, want b", inner.Member)
	}
}

func TestParser_ForRangeInclusive(t *testing.T) {
	prog := parse(t, "for i in 0..9 { }")
	f, ok := prog.Nodes[0].(*For)
	if !ok {
		t.Fatalf("got %T, want *For", prog.Nodes[0])
	}
	if f.Iterator != "i" {
		t.Errorf("iterator = %q, want i", f.Iterator)
	}
	if end, ok := f.End.(*NumberLit); !ok || end.Value != 9 {
		t.Errorf("end bound = %#v, want the literal 9 kept as written (the range includes it)", f.End)
	}
}

func TestParser_MatchWildcardCase(t *testing.T) {
	prog := parse(t, "match x { 1 => { } _ => { } }")
	m, ok := prog.Nodes[0].(*Match)
	if !ok {
		t.Fatalf("got %T, want *Match", prog.Nodes[0])
	}
	if len(m.Cases) != 2 {
		t.Fatalf("got %d cases, want 2", len(m.Cases))
	}
	if m.Cases[1].Value != nil {
		t.Errorf("wildcard case should have nil Value, got %v", m.Cases[1].Value)
	}
}

func TestParser_BreakAndContinue(t *testing.T) {
	prog := parse(t, "while (1) { break; continue; }")
	w, ok := prog.Nodes[0].(*While)
	if !ok {
		t.Fatalf("got %T, want *While", prog.Nodes[0])
	}
	if len(w.Body) != 2 {
		t.Fatalf("got %d body statements, want 2", len(w.Body))
	}
	if _, ok := w.Body[0].(*Break); !ok {
		t.Errorf("body[0] = %T, want *Break", w.Body[0])
	}
	if _, ok := w.Body[1].(*Continue); !ok {
		t.Errorf("body[1] = %T, want *Continue", w.Body[1])
	}
}

func TestParser_MainWithoutParamsReturnsBareStatements(t *testing.T) {
	prog := parse(t, "Main() { var int x = 1; }")
	if _, ok := prog.Nodes[0].(*VarDecl); !ok {
		t.Fatalf("got %T, want bare *VarDecl spliced into the program", prog.Nodes[0])
	}
}

func TestParser_MainWithParamsWrapsInFunctionDef(t *testing.T) {
	prog := parse(t, "Main(argc) { var int x = 1; }")
	fn, ok := prog.Nodes[0].(*FunctionDef)
	if !ok {
		t.Fatalf("got %T, want *FunctionDef named main", prog.Nodes[0])
	}
	if fn.Name != "main" || len(fn.Params) != 1 || fn.Params[0] != "argc" {
		t.Errorf("got %+v, want main(argc)", fn)
	}
}

func TestParser_IncludeSplicesStatements(t *testing.T) {
	dir := t.TempDir()
	included := filepath.Join(dir, "inc.vyl")
	if err := os.WriteFile(included, []byte("var int y = 2;"), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "main.vyl")
	src := `include "inc.vyl"
var int x = 1;`
	toks, err := NewLexer(main, src).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	prog, err := NewParser(main, toks).Parse()
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(prog.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2 (spliced include + local decl)", len(prog.Nodes))
	}
}

func TestParser_IncludeSearchesConfiguredIncludePaths(t *testing.T) {
	root := t.TempDir()
	vendor := filepath.Join(root, "vendor")
	if err := os.MkdirAll(vendor, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(vendor, "lib.vyl"), []byte("var int z = 9;"), 0o644); err != nil {
		t.Fatal(err)
	}

	main := filepath.Join(root, "main.vyl")
	src := `include "lib.vyl"
var int x = 1;`
	toks, err := NewLexer(main, src).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	p := NewParser(main, toks)
	p.SetIncludePaths([]string{vendor})
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(prog.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2 (spliced include found via an include path + local decl)", len(prog.Nodes))
	}
}

func TestParser_IncludeCycleIsRejected(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.vyl")
	b := filepath.Join(dir, "b.vyl")
	if err := os.WriteFile(a, []byte(`include "b.vyl"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte(`include "a.vyl"`), 0o644); err != nil {
		t.Fatal(err)
	}
	toks, err := NewLexer(a, `include "b.vyl"`).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewParser(a, toks).Parse()
	if err == nil {
		t.Fatal("expected an include-cycle error, got nil")
	}
}

func TestParser_InvalidAssignmentTargetErrors(t *testing.T) {
	toks, err := NewLexer("test.vyl", "1 = 2;").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewParser("test.vyl", toks).Parse()
	if err == nil {
		t.Fatal("expected an error assigning to a non-lvalue")
	}
}
