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

// TokenKind enumerates every lexical category the lexer can produce.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokInt
	TokDec
	TokString
	TokNewlineLit // the `/n` literal-newline escape

	// keywords
	TokMain
	TokFunction
	TokImport
	TokInclude
	TokIf
	TokElse
	TokWhile
	TokReturn
	TokPrint
	TokVar
	TokInt_  // the `int` type keyword
	TokString_
	TokDec_
	TokBool_
	TokStruct
	TokNew
	TokFor
	TokIn
	TokMatch
	TokBreak
	TokContinue

	// punctuation / operators
	TokLParen
	TokRParen
	TokLBrace
	TokRBrace
	TokLBracket
	TokRBracket
	TokComma
	TokSemi
	TokPlus
	TokMinus
	TokStar
	TokSlash
	TokPercent
	TokLt
	TokGt
	TokLe
	TokGe
	TokEq
	TokNe
	TokAssign
	TokDot
	TokUnderscore
	TokBang
	TokAnd
	TokOr
	TokArrow // `=>`
	TokRange // `..`
)

var tokenNames = map[TokenKind]string{
	TokEOF:        "eof",
	TokIdent:      "identifier",
	TokInt:        "int literal",
	TokDec:        "dec literal",
	TokString:     "string literal",
	TokNewlineLit: "newline literal",
	TokMain:       "Main",
	TokFunction:   "Function",
	TokImport:     "import",
	TokInclude:    "include",
	TokIf:         "if",
	TokElse:       "else",
	TokWhile:      "while",
	TokReturn:     "return",
	TokPrint:      "Print",
	TokVar:        "var",
	TokInt_:       "int",
	TokString_:    "string",
	TokDec_:       "dec",
	TokBool_:      "bool",
	TokStruct:     "struct",
	TokNew:        "new",
	TokFor:        "for",
	TokIn:         "in",
	TokMatch:      "match",
	TokBreak:      "break",
	TokContinue:   "continue",
	TokLParen:     "(",
	TokRParen:     ")",
	TokLBrace:     "{",
	TokRBrace:     "}",
	TokLBracket:   "[",
	TokRBracket:   "]",
	TokComma:      ",",
	TokSemi:       ";",
	TokPlus:       "+",
	TokMinus:      "-",
	TokStar:       "*",
	TokSlash:      "/",
	TokPercent:    "%",
	TokLt:         "<",
	TokGt:         ">",
	TokLe:         "<=",
	TokGe:         ">=",
	TokEq:         "==",
	TokNe:         "!=",
	TokAssign:     "=",
	TokDot:        ".",
	TokUnderscore: "_",
	TokBang:       "!",
	TokAnd:        "&&",
	TokOr:         "||",
	TokArrow:      "=>",
	TokRange:      "..",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

var keywords = map[string]TokenKind{
	"Main":     TokMain,
	"Function": TokFunction,
	"import":   TokImport,
	"include":  TokInclude,
	"if":       TokIf,
	"else":     TokElse,
	"while":    TokWhile,
	"return":   TokReturn,
	"Print":    TokPrint,
	"var":      TokVar,
	"int":      TokInt_,
	"string":   TokString_,
	"dec":      TokDec_,
	"bool":     TokBool_,
	"struct":   TokStruct,
	"new":      TokNew,
	"for":      TokFor,
	"in":       TokIn,
	"match":    TokMatch,
	"break":    TokBreak,
	"continue": TokContinue,
}

// Token is a single lexical unit with its source line for diagnostics.
type Token struct {
	Kind TokenKind
	Text string // identifier name, raw literal text, or string payload
	Line int
}

func (t Token) String() string {
	if t.Text != "" {
		return fmt.Sprintf("%v(%q)", t.Kind, t.Text)
	}
	return t.Kind.String()
}
