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
	"os"
	"path/filepath"
	"strconv"

	"github.com/samber/lo"
)

// Parser is a hand-written recursive-descent parser over a token slice.
// includeStack is shared across the whole parse (including sub-parsers
// spawned for `include` directives) to detect include cycles.
type Parser struct {
	file         string
	tokens       []Token
	pos          int
	includeStack map[string]bool
	includePaths []string
}

// NewParser creates a parser for a single file. Use newSubParser for
// files reached through `include` so the cycle-detection stack is shared.
func NewParser(file string, tokens []Token) *Parser {
	return &Parser{file: file, tokens: tokens, includeStack: map[string]bool{}}
}

// SetIncludePaths configures extra directories (typically a project's
// vylc.toml [include] paths) searched for an `include "..."` target that
// isn't found relative to the including file's own directory.
func (p *Parser) SetIncludePaths(paths []string) {
	p.includePaths = paths
}

func newSubParser(file string, tokens []Token, stack map[string]bool, includePaths []string) *Parser {
	return &Parser{file: file, tokens: tokens, includeStack: stack, includePaths: includePaths}
}

func (p *Parser) peek() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Kind: TokEOF}
}

func (p *Parser) peekAhead(offset int) Token {
	if p.pos+offset < len(p.tokens) {
		return p.tokens[p.pos+offset]
	}
	return Token{Kind: TokEOF}
}

// consume verifies the current token's kind (and, if text is non-empty, its
// literal text) before advancing past it.
func (p *Parser) consume(kind TokenKind, text string) (Token, error) {
	tok := p.peek()
	if kind != TokEOF && tok.Kind != kind {
		return Token{}, &ParseError{
			File: p.file, Line: tok.Line,
			Expected: kind.String(), Found: tok.Kind.String(), FoundVal: tok.Text,
		}
	}
	if text != "" && tok.Text != text {
		return Token{}, &ParseError{
			File: p.file, Line: tok.Line,
			Detail: fmt.Sprintf("expected '%s', found '%s'", text, tok.Text),
		}
	}
	p.pos++
	return tok, nil
}

// Parse runs the parser to completion, returning the top-level Program.
func (p *Parser) Parse() (*Program, error) {
	var nodes []Node
	for p.peek().Kind != TokEOF {
		t := p.peek()
		switch t.Kind {
		case TokImport:
			n, err := p.parseImport()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		case TokInclude:
			included, err := p.parseInclude()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, included...)
		case TokStruct:
			n, err := p.parseStruct()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		case TokFunction:
			n, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		case TokMain:
			body, err := p.parseMain()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, body...)
		default:
			n, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
	}
	return &Program{Nodes: nodes}, nil
}

func (p *Parser) parseStruct() (Node, error) {
	if _, err := p.consume(TokStruct, ""); err != nil {
		return nil, err
	}
	name, err := p.consume(TokIdent, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(TokLBrace, ""); err != nil {
		return nil, err
	}

	var fields []StructField
	for p.peek().Kind != TokRBrace && p.peek().Kind != TokEOF {
		if p.peek().Kind == TokNewlineLit {
			p.pos++
			continue
		}
		if _, err := p.consume(TokVar, ""); err != nil {
			return nil, err
		}
		fieldType, customName, err := p.parseTypeAnnotation()
		if err != nil {
			return nil, err
		}
		fieldName, err := p.consume(TokIdent, "")
		if err != nil {
			return nil, err
		}
		if p.peek().Kind == TokNewlineLit {
			p.pos++
		}
		fields = append(fields, StructField{Type: fieldType, Name: fieldName.Text, CustomTypeName: customName})
	}
	if _, err := p.consume(TokRBrace, ""); err != nil {
		return nil, err
	}
	return &StructDef{Name: name.Text, Fields: fields, Line: name.Line}, nil
}

// parseTypeAnnotation consumes the type keyword (or custom-type identifier)
// that follows `var` in both a struct field and a variable declaration.
func (p *Parser) parseTypeAnnotation() (VylType, string, error) {
	t := p.peek()
	switch t.Kind {
	case TokInt_:
		p.pos++
		return TypeInt, "", nil
	case TokString_:
		p.pos++
		return TypeString, "", nil
	case TokDec_:
		p.pos++
		return TypeDec, "", nil
	case TokBool_:
		p.pos++
		return TypeBool, "", nil
	case TokIdent:
		p.pos++
		return TypeCustom, t.Text, nil
	default:
		return 0, "", &ParseError{File: p.file, Line: t.Line, Detail: "expected a type name"}
	}
}

// resolveIncludePath resolves raw relative to the including file's own
// directory first; if nothing exists there, it falls back to each
// configured include path in order (SPEC_FULL's [include] paths section)
// before giving up and returning the file-relative candidate, so the
// caller's "file not found" error still names the expected location.
func (p *Parser) resolveIncludePath(raw string) (string, error) {
	base := filepath.Dir(p.file)
	joined := raw
	if !filepath.IsAbs(raw) {
		joined = filepath.Join(base, raw)
	}
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(abs); statErr == nil || filepath.IsAbs(raw) {
		return abs, nil
	}

	for _, dir := range p.includePaths {
		candAbs, err := filepath.Abs(filepath.Join(dir, raw))
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(candAbs); statErr == nil {
			return candAbs, nil
		}
	}
	return abs, nil
}

func (p *Parser) parseInclude() ([]Node, error) {
	tok, err := p.consume(TokInclude, "")
	if err != nil {
		return nil, err
	}
	pathTok, err := p.consume(TokString, "")
	if err != nil {
		return nil, err
	}

	abs, err := p.resolveIncludePath(pathTok.Text)
	if err != nil {
		return nil, &IncludeError{Path: pathTok.Text, Line: tok.Line}
	}
	if p.includeStack[abs] {
		chain := make([]string, 0, len(p.includeStack)+1)
		for k := range p.includeStack {
			chain = append(chain, k)
		}
		chain = append(chain, abs)
		return nil, &IncludeError{Path: abs, Line: tok.Line, Cycle: chain}
	}

	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, &IncludeError{Path: pathTok.Text, Line: tok.Line}
	}

	subTokens, err := NewLexer(abs, string(source)).Tokenize()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}

	p.includeStack[abs] = true
	sub := newSubParser(abs, subTokens, p.includeStack, p.includePaths)
	subProgram, err := sub.Parse()
	delete(p.includeStack, abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	return subProgram.Nodes, nil
}

func (p *Parser) parseImport() (Node, error) {
	if _, err := p.consume(TokImport, ""); err != nil {
		return nil, err
	}
	mod, err := p.consume(TokIdent, "")
	if err != nil {
		return nil, err
	}
	if p.peek().Kind == TokSemi {
		p.pos++
	}
	return &Import{Module: mod.Text}, nil
}

func (p *Parser) parseFunction() (Node, error) {
	tok, err := p.consume(TokFunction, "")
	if err != nil {
		return nil, err
	}
	name, err := p.consume(TokIdent, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(TokLParen, ""); err != nil {
		return nil, err
	}
	var params []string
	if p.peek().Kind != TokRParen {
		for {
			param, err := p.consume(TokIdent, "")
			if err != nil {
				return nil, err
			}
			params = append(params, param.Text)
			if p.peek().Kind == TokComma {
				p.pos++
				continue
			}
			break
		}
	}
	if _, err := p.consume(TokRParen, ""); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FunctionDef{Name: name.Text, Params: lo.Uniq(params), Body: body, Line: tok.Line}, nil
}

func (p *Parser) parseBlock() ([]Node, error) {
	if _, err := p.consume(TokLBrace, ""); err != nil {
		return nil, err
	}
	var stmts []Node
	for p.peek().Kind != TokRBrace && p.peek().Kind != TokEOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if _, err := p.consume(TokRBrace, ""); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseReturn() (Node, error) {
	if _, err := p.consume(TokReturn, ""); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind == TokSemi {
		p.pos++
	}
	return &Return{Expr: expr}, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	t := p.peek()
	var node Node

	switch t.Kind {
	case TokNew:
		p.pos++
		typeName, err := p.consume(TokIdent, "")
		if err != nil {
			return nil, err
		}
		node = &New{TypeName: typeName.Text, Line: t.Line}
	case TokInt:
		p.pos++
		n, err := strconv.ParseInt(t.Text, 10, 32)
		if err != nil {
			return nil, &ParseError{File: p.file, Line: t.Line, Detail: fmt.Sprintf("invalid integer literal %q", t.Text)}
		}
		node = &NumberLit{Value: int32(n)}
	case TokDec:
		p.pos++
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, &ParseError{File: p.file, Line: t.Line, Detail: fmt.Sprintf("invalid decimal literal %q", t.Text)}
		}
		node = &DecimalLit{Value: f}
	case TokString:
		p.pos++
		node = &StringLit{Value: t.Text}
	case TokIdent:
		p.pos++
		if p.peek().Kind == TokLParen {
			p.pos++
			var args []Node
			if p.peek().Kind != TokRParen {
				for {
					arg, err := p.parseExpression()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.peek().Kind == TokComma {
						p.pos++
						continue
					}
					break
				}
			}
			if _, err := p.consume(TokRParen, ""); err != nil {
				return nil, err
			}
			node = &Call{Callee: t.Text, Args: args, Line: t.Line}
		} else {
			v := &Var{Name: t.Text, Line: t.Line}
			if p.peek().Kind == TokLBracket {
				p.pos++
				idx, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if _, err := p.consume(TokRBracket, ""); err != nil {
					return nil, err
				}
				node = &Index{Base: v, Idx: idx, Line: t.Line}
			} else {
				node = v
			}
		}
	case TokNewlineLit:
		p.pos++
		node = &VylNewline{}
	case TokLParen:
		p.pos++
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(TokRParen, ""); err != nil {
			return nil, err
		}
		node = expr
	default:
		found := t.Text
		if found == "" {
			found = t.Kind.String()
		}
		return nil, &ParseError{File: p.file, Line: t.Line, Detail: fmt.Sprintf("unexpected token in expression: %s", found)}
	}

	for p.peek().Kind == TokDot {
		p.pos++
		member, err := p.consume(TokIdent, "")
		if err != nil {
			return nil, err
		}
		node = &MemberAccess{Base: node, Member: member.Text, Line: member.Line}
	}
	return node, nil
}

func (p *Parser) parseFactor() (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		var op BinOp
		switch t.Kind {
		case TokStar:
			op = OpMul
		case TokSlash:
			op = OpDiv
		case TokPercent:
			op = OpMod
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if folded, ok := foldArith(left, right, op); ok {
			left = folded
			continue
		}
		left = &BinaryOp{Op: op, Left: left, Right: right, Line: t.Line}
	}
}

func (p *Parser) parseSum() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		var op BinOp
		switch t.Kind {
		case TokPlus:
			op = OpAdd
		case TokMinus:
			op = OpSub
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		if folded, ok := foldArith(left, right, op); ok {
			left = folded
			continue
		}
		if op == OpAdd {
			if ls, ok := left.(*StringLit); ok {
				if rs, ok := right.(*StringLit); ok {
					left = &StringLit{Value: ls.Value + rs.Value}
					continue
				}
			}
		}
		left = &BinaryOp{Op: op, Left: left, Right: right, Line: t.Line}
	}
}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		var op BinOp
		switch t.Kind {
		case TokEq:
			op = OpEq
		case TokNe:
			op = OpNe
		case TokLt:
			op = OpLt
		case TokGt:
			op = OpGt
		case TokLe:
			op = OpLe
		case TokGe:
			op = OpGe
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if folded, ok := foldCompare(left, right, op); ok {
			left = folded
			continue
		}
		left = &BinaryOp{Op: op, Left: left, Right: right, Line: t.Line}
	}
}

func (p *Parser) parseLogic() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		var op BinOp
		switch t.Kind {
		case TokAnd:
			op = OpAnd
		case TokOr:
			op = OpOr
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right, Line: t.Line}
	}
}

func (p *Parser) parseExpression() (Node, error) {
	return p.parseLogic()
}

// foldArith performs the original's literal-literal constant folding for
// +, -, *, / when both operands are numeric literals of the same kind, and
// additionally folds % on two integer literals. Division or remainder by a
// literal zero is left unfolded.
func foldArith(left, right Node, op BinOp) (Node, bool) {
	if a, ok := left.(*NumberLit); ok {
		if b, ok := right.(*NumberLit); ok {
			switch op {
			case OpAdd:
				return &NumberLit{Value: a.Value + b.Value}, true
			case OpSub:
				return &NumberLit{Value: a.Value - b.Value}, true
			case OpMul:
				return &NumberLit{Value: a.Value * b.Value}, true
			case OpDiv:
				if b.Value != 0 {
					return &NumberLit{Value: a.Value / b.Value}, true
				}
			case OpMod:
				if b.Value != 0 {
					return &NumberLit{Value: a.Value % b.Value}, true
				}
			}
		}
		return nil, false
	}
	if a, ok := left.(*DecimalLit); ok {
		if b, ok := right.(*DecimalLit); ok {
			switch op {
			case OpAdd:
				return &DecimalLit{Value: a.Value + b.Value}, true
			case OpSub:
				return &DecimalLit{Value: a.Value - b.Value}, true
			case OpMul:
				return &DecimalLit{Value: a.Value * b.Value}, true
			case OpDiv:
				if b.Value != 0 {
					return &DecimalLit{Value: a.Value / b.Value}, true
				}
			}
		}
	}
	return nil, false
}

func boolNum(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// foldCompare extends the original's fold-on-literal-comparison (which only
// handled <, >, ==) to the full comparison set, since there is no reason a
// literal !=/<=/>= shouldn't fold the same way.
func foldCompare(left, right Node, op BinOp) (Node, bool) {
	a, ok := left.(*NumberLit)
	if !ok {
		return nil, false
	}
	b, ok := right.(*NumberLit)
	if !ok {
		return nil, false
	}
	switch op {
	case OpLt:
		return &NumberLit{Value: boolNum(a.Value < b.Value)}, true
	case OpGt:
		return &NumberLit{Value: boolNum(a.Value > b.Value)}, true
	case OpEq:
		return &NumberLit{Value: boolNum(a.Value == b.Value)}, true
	case OpNe:
		return &NumberLit{Value: boolNum(a.Value != b.Value)}, true
	case OpLe:
		return &NumberLit{Value: boolNum(a.Value <= b.Value)}, true
	case OpGe:
		return &NumberLit{Value: boolNum(a.Value >= b.Value)}, true
	}
	return nil, false
}

func (p *Parser) parseIf() (Node, error) {
	if _, err := p.consume(TokIf, ""); err != nil {
		return nil, err
	}
	if _, err := p.consume(TokLParen, ""); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(TokRParen, ""); err != nil {
		return nil, err
	}
	thenBlock, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseBlock []Node
	if p.peek().Kind == TokElse {
		p.pos++
		if p.peek().Kind == TokLBrace {
			elseBlock, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		} else if p.peek().Kind == TokIf {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			elseBlock = []Node{elseIf}
		}
	}
	return &If{Cond: cond, Then: thenBlock, Else: elseBlock}, nil
}

func (p *Parser) parseVarDecl() (Node, error) {
	if _, err := p.consume(TokVar, ""); err != nil {
		return nil, err
	}
	typeTok := p.peek()
	varType := TypeInt
	customTypeName := ""

	switch typeTok.Kind {
	case TokInt_:
		p.pos++
	case TokString_:
		varType = TypeString
		p.pos++
	case TokDec_:
		varType = TypeDec
		p.pos++
	case TokBool_:
		varType = TypeBool
		p.pos++
	case TokIdent:
		// a custom type name is only consumed when the identifier after
		// 'var' is followed by another identifier or a '[' — otherwise
		// this identifier is the variable's own name (legacy 'var name ='
		// form defaults to int, matching the original heuristic).
		ahead := p.peekAhead(1)
		if ahead.Kind == TokIdent || ahead.Kind == TokLBracket {
			varType = TypeCustom
			customTypeName = typeTok.Text
			p.pos++
		}
	default:
		return nil, &ParseError{File: p.file, Line: typeTok.Line, Detail: "expected type or variable name after 'var'"}
	}

	arraySize := 0
	if p.peek().Kind == TokLBracket {
		p.pos++
		sizeTok, err := p.consume(TokInt, "")
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(sizeTok.Text)
		if err != nil {
			return nil, &ParseError{File: p.file, Line: sizeTok.Line, Detail: "invalid array size"}
		}
		arraySize = n
		if _, err := p.consume(TokRBracket, ""); err != nil {
			return nil, err
		}
	}

	name, err := p.consume(TokIdent, "")
	if err != nil {
		return nil, err
	}
	var init Node
	if p.peek().Kind == TokAssign {
		p.pos++
		init, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if p.peek().Kind == TokSemi {
		p.pos++
	}
	return &VarDecl{
		Type: varType, Name: name.Text, CustomTypeName: customTypeName,
		Init: init, ArraySize: arraySize, Line: name.Line,
	}, nil
}

func (p *Parser) parseWhile() (Node, error) {
	if _, err := p.consume(TokWhile, ""); err != nil {
		return nil, err
	}
	if _, err := p.consume(TokLParen, ""); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(TokRParen, ""); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &While{Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (Node, error) {
	tok, err := p.consume(TokFor, "")
	if err != nil {
		return nil, err
	}
	id, err := p.consume(TokIdent, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(TokIn, ""); err != nil {
		return nil, err
	}
	start, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(TokRange, ""); err != nil {
		return nil, err
	}
	end, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &For{Iterator: id.Text, Start: start, End: end, Body: body, Line: tok.Line}, nil
}

func (p *Parser) parseMatch() (Node, error) {
	tok, err := p.consume(TokMatch, "")
	if err != nil {
		return nil, err
	}
	target, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(TokLBrace, ""); err != nil {
		return nil, err
	}

	var cases []MatchCase
	for p.peek().Kind != TokRBrace && p.peek().Kind != TokEOF {
		var val Node
		if p.peek().Kind == TokUnderscore {
			p.pos++
		} else {
			val, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.consume(TokArrow, ""); err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		cases = append(cases, MatchCase{Value: val, Body: body})
	}
	if _, err := p.consume(TokRBrace, ""); err != nil {
		return nil, err
	}
	return &Match{Target: target, Cases: cases, Line: tok.Line}, nil
}

func (p *Parser) parseStatement() (Node, error) {
	t := p.peek()
	switch t.Kind {
	case TokVar:
		return p.parseVarDecl()
	case TokWhile:
		return p.parseWhile()
	case TokFor:
		return p.parseFor()
	case TokMatch:
		return p.parseMatch()
	case TokBreak:
		p.pos++
		if p.peek().Kind == TokSemi {
			p.pos++
		}
		return &Break{}, nil
	case TokContinue:
		p.pos++
		if p.peek().Kind == TokSemi {
			p.pos++
		}
		return &Continue{}, nil
	case TokReturn:
		return p.parseReturn()
	case TokIf:
		return p.parseIf()
	case TokPrint:
		p.pos++
		if _, err := p.consume(TokLParen, ""); err != nil {
			return nil, err
		}
		var args []Node
		for p.peek().Kind != TokRParen && p.peek().Kind != TokEOF {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Kind == TokComma {
				p.pos++
			}
		}
		if _, err := p.consume(TokRParen, ""); err != nil {
			return nil, err
		}
		if p.peek().Kind == TokSemi {
			p.pos++
		}
		return &Call{Callee: "Print", Args: args, Line: t.Line}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind == TokAssign {
		p.pos++
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.peek().Kind == TokSemi {
			p.pos++
		}
		target, ok := expr.(AssignTarget)
		if !ok {
			return nil, &ParseError{File: p.file, Line: t.Line, Detail: fmt.Sprintf("invalid assignment target %T", expr)}
		}
		return &Assignment{Target: target, Expr: val, Line: t.Line}, nil
	}

	if p.peek().Kind == TokSemi {
		p.pos++
	}
	return expr, nil
}

// parseMain supports both `Main() { ... }` (returned as bare top-level
// statements) and `Main(args...) { ... }` (wrapped in a FunctionDef named
// "main" so the code generator treats it like any other function).
func (p *Parser) parseMain() ([]Node, error) {
	tok, err := p.consume(TokMain, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(TokLParen, ""); err != nil {
		return nil, err
	}
	var params []string
	for p.peek().Kind != TokRParen && len(params) < 6 {
		param, err := p.consume(TokIdent, "")
		if err != nil {
			return nil, err
		}
		params = append(params, param.Text)
		if p.peek().Kind == TokComma {
			p.pos++
		}
	}
	if _, err := p.consume(TokRParen, ""); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		return []Node{&FunctionDef{Name: "main", Params: params, Body: body, Line: tok.Line}}, nil
	}
	return body, nil
}
