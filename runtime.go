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
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sort"

	"modernc.org/cc/v4"
)

//go:embed runtime/vylrt.c
var runtimeSource string

//go:embed runtime/vylrt.h
var runtimeHeader string

// runtimeExterns parses the embedded runtime source with cc/v4 - the same
// parser the teacher used to read foreign C function signatures out of an
// input translation unit - and returns the name of every function
// vylrt.c defines, its static helpers included. The driver folds these
// into the generated assembly's .extern block alongside the symbols the
// code generator recorded, so the final .s always declares every symbol it
// actually calls.
func runtimeExterns() ([]string, error) {
	cfg, err := cc.NewConfig(goruntime.GOOS, goruntime.GOARCH)
	if err != nil {
		return nil, fmt.Errorf("configuring cc for runtime introspection: %w", err)
	}
	ast, err := cc.Parse(cfg, []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: "vylrt.h", Value: runtimeHeader},
		{Name: "vylrt.c", Value: runtimeSource},
	})
	if err != nil {
		return nil, fmt.Errorf("parsing embedded runtime: %w", err)
	}

	var names []string
	for tu := ast.TranslationUnit; tu != nil; tu = tu.TranslationUnit {
		decl := tu.ExternalDeclaration
		if decl.Position().Filename != "vylrt.c" || decl.Case != cc.ExternalDeclarationFuncDef {
			continue
		}
		directDeclarator := decl.FunctionDefinition.Declarator.DirectDeclarator
		if directDeclarator.Case != cc.DirectDeclaratorFuncParam {
			continue
		}
		names = append(names, directDeclarator.DirectDeclarator.Token.SrcStr())
	}
	sort.Strings(names)
	return names, nil
}

// buildRuntimeObject writes the embedded runtime sources to a cache
// directory keyed by their content hash and compiles them with the host
// C compiler, skipping the call entirely when a matching object already
// exists from a previous build.
func buildRuntimeObject(cc_ string, cacheDir string, verbose bool) (string, error) {
	sum := sha256.Sum256([]byte(runtimeSource + runtimeHeader))
	key := hex.EncodeToString(sum[:])[:16]

	dir := filepath.Join(cacheDir, "vylrt-"+key)
	objPath := filepath.Join(dir, "vylrt.o")
	if _, err := os.Stat(objPath); err == nil {
		return objPath, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating runtime cache dir: %w", err)
	}

	cPath := filepath.Join(dir, "vylrt.c")
	hPath := filepath.Join(dir, "vylrt.h")
	if err := os.WriteFile(hPath, []byte(runtimeHeader), 0o644); err != nil {
		return "", err
	}
	if err := os.WriteFile(cPath, []byte(runtimeSource), 0o644); err != nil {
		return "", err
	}

	if _, err := runCommand(verbose, cc_, "-c", "-O2", cPath, "-o", objPath); err != nil {
		return "", fmt.Errorf("compiling runtime support library: %w", err)
	}
	return objPath, nil
}
