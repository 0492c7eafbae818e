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
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Driver orchestrates one compilation end to end: lex, parse, generate,
// write the assembly file, build (or reuse) the runtime object, and
// finally hand both to the system assembler/linker.
type Driver struct {
	CC           string // assembler/linker to invoke, normally "gcc" or "cc"
	CacheDir     string
	KeepAsm      bool
	Verbose      bool
	IncludePaths []string // extra directories searched for `include "..."` targets
}

func NewDriver(cfg *Config) *Driver {
	return &Driver{
		CC:           cfg.Toolchain.CC,
		CacheDir:     cfg.CacheDir(),
		KeepAsm:      cfg.Build.KeepAsm,
		Verbose:      cfg.Build.Verbose,
		IncludePaths: cfg.Include.Paths,
	}
}

// Compile lexes, parses, and generates assembly for sourcePath, links it
// against the runtime support library, and writes the resulting binary to
// outputPath.
func (d *Driver) Compile(sourcePath, outputPath string) error {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", sourcePath, err)
	}

	toks, err := NewLexer(sourcePath, string(src)).Tokenize()
	if err != nil {
		return err
	}
	parser := NewParser(sourcePath, toks)
	parser.SetIncludePaths(d.IncludePaths)
	prog, err := parser.Parse()
	if err != nil {
		return err
	}

	cg := NewCodeGen(sourcePath)
	asm, err := cg.Generate(prog)
	if err != nil {
		return err
	}

	externs, err := runtimeExterns()
	if err != nil {
		return err
	}
	asm = mergeRuntimeExterns(asm, externs)

	asmPath := sourcePath[:len(sourcePath)-len(filepath.Ext(sourcePath))] + ".s"
	if err := os.WriteFile(asmPath, []byte(asm), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", asmPath, err)
	}
	if !d.KeepAsm {
		defer os.Remove(asmPath)
	}

	objPath, err := buildRuntimeObject(d.CC, d.CacheDir, d.Verbose)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = sourcePath[:len(sourcePath)-len(filepath.Ext(sourcePath))]
	}
	if _, err := runCommand(d.Verbose, d.CC, "-no-pie", asmPath, objPath, "-lm", "-o", outputPath); err != nil {
		return fmt.Errorf("linking %s: %w", outputPath, err)
	}
	// the intermediate .s is removed here after a successful link; the
	// deferred Remove above also removes it when compilation fails
	if !d.KeepAsm {
		os.Remove(asmPath)
	}
	return nil
}

// mergeRuntimeExterns adds any runtime symbol not already declared by the
// code generator's own extern set. The generator only ever learns
// about the subset of runtime symbols it actually emits calls to; this
// catches any that aren't referenced yet but still gives the linker a
// complete, matching picture, and is a no-op when there's nothing to add.
func mergeRuntimeExterns(asm string, externs []string) string {
	var missing strings.Builder
	for _, e := range externs {
		if !strings.Contains(asm, ".extern "+e+"\n") {
			fmt.Fprintf(&missing, ".extern %s\n", e)
		}
	}
	if missing.Len() == 0 {
		return asm
	}
	const header = ".intel_syntax noprefix\n"
	idx := strings.Index(asm, header)
	if idx < 0 {
		return missing.String() + asm
	}
	insertAt := idx + len(header)
	return asm[:insertAt] + missing.String() + asm[insertAt:]
}

// runCommand runs a command and returns its combined output, echoing the
// invocation to stderr first when verbose.
func runCommand(verbose bool, name string, arg ...string) (string, error) {
	if verbose {
		fmt.Fprintf(os.Stderr, "Running %v\n", append([]string{name}, arg...))
	}
	cmd := exec.Command(name, arg...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if output != nil {
			return "", errors.New(string(output))
		}
		return "", err
	}
	return string(output), nil
}
