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

// ParseError renders the same box-drawing diagnostic the original compiler
// printed to stderr on an unexpected token, as a Go error value instead of
// a direct print-then-exit.
type ParseError struct {
	File     string
	Line     int
	Expected string
	Found    string
	FoundVal string
	Detail   string // used instead of Expected/Found for free-form messages
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("\n")
	if e.File != "" {
		fmt.Fprintf(&b, "┌─ Parser Error in %s at line %d\n", e.File, e.Line)
	} else {
		fmt.Fprintf(&b, "┌─ Parser Error at line %d\n", e.Line)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, "├─ %s\n", e.Detail)
	} else {
		fmt.Fprintf(&b, "├─ Expected: %s\n", e.Expected)
		if e.FoundVal != "" {
			fmt.Fprintf(&b, "├─ Found:    %s ('%s')\n", e.Found, e.FoundVal)
		} else {
			fmt.Fprintf(&b, "├─ Found:    %s\n", e.Found)
		}
	}
	b.WriteString("└─ Check your syntax and try again\n")
	return b.String()
}

// IncludeError reports a missing include file or an include cycle.
type IncludeError struct {
	Path  string
	Line  int
	Cycle []string // non-nil for a cycle: the files on the include stack, in no particular order, then the re-entered path
}

func (e *IncludeError) Error() string {
	if e.Cycle != nil {
		return fmt.Sprintf("line %d: include cycle detected: %s", e.Line, strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("line %d: could not include file %q", e.Line, e.Path)
}

// CodegenError reports a condition the code generator cannot lower, such
// as a reference to an undeclared variable or struct. The original tolerated
// these by emitting an assembly comment and continuing; this rendition
// aborts on the first one, since assembly referencing an undefined symbol
// will not link anyway.
type CodegenError struct {
	Line int
	Msg  string
}

func (e *CodegenError) Error() string {
	return fmt.Sprintf("line %d: codegen error: %s", e.Line, e.Msg)
}
