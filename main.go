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
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

var command = &cobra.Command{
	Use:  "vylc source.vyl [-o output]",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]

		compileOnly, _ := cmd.Flags().GetBool("compile")
		output, _ := cmd.Flags().GetString("output")
		verbose, _ := cmd.Flags().GetBool("verbose")
		keepAsm, _ := cmd.Flags().GetBool("keep-asm")
		configPath, _ := cmd.Flags().GetString("config")

		if configPath == "" {
			configPath = filepath.Join(filepath.Dir(source), "vylc.toml")
		}
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Build.Verbose = verbose
		}
		if cmd.Flags().Changed("keep-asm") {
			cfg.Build.KeepAsm = keepAsm
		}
		if output == "" {
			output = cfg.Build.Output
		}

		driver := NewDriver(cfg)
		if err := driver.Compile(source, output); err != nil {
			return err
		}
		if compileOnly {
			return nil
		}

		binary := output
		if binary == "" {
			ext := filepath.Ext(source)
			binary = source[:len(source)-len(ext)]
		}
		abs, err := filepath.Abs(binary)
		if err != nil {
			return err
		}
		run := exec.Command(abs)
		run.Stdin = os.Stdin
		run.Stdout = os.Stdout
		run.Stderr = os.Stderr
		if err := run.Run(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				os.Exit(exitErr.ExitCode())
			}
			return err
		}
		return nil
	},
}

func init() {
	command.Flags().BoolP("compile", "c", false, "compile only, do not run the built binary")
	command.Flags().StringP("output", "o", "", "output path for the built binary")
	command.Flags().BoolP("verbose", "v", false, "echo every external command before running it")
	command.Flags().Bool("keep-asm", false, "keep the generated .s file instead of deleting it")
	command.Flags().String("config", "", "path to a vylc.toml project config (default: vylc.toml next to the source file)")
}

func main() {
	if err := command.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
