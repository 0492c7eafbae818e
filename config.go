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

	"github.com/BurntSushi/toml"
)

// Config holds everything an invocation of vylc can pick up from a
// project-local vylc.toml instead of command-line flags, following the
// same optional-file-with-defaults shape as other project config files in
// this line of tools.
type Config struct {
	Build struct {
		Output  string `toml:"output"`
		KeepAsm bool   `toml:"keep_asm"`
		Verbose bool   `toml:"verbose"`
	} `toml:"build"`

	Toolchain struct {
		CC string `toml:"cc"`
	} `toml:"toolchain"`

	Include struct {
		Paths []string `toml:"paths"`
	} `toml:"include"`
}

// DefaultConfig returns the configuration vylc uses when the config file
// LoadConfig is given does not exist.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Build.Output = ""
	cfg.Build.KeepAsm = false
	cfg.Build.Verbose = false
	cfg.Toolchain.CC = "gcc"
	return cfg
}

// CacheDir returns where the runtime support library's compiled object is
// cached between builds.
func (c *Config) CacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "vylc")
	}
	return filepath.Join(os.TempDir(), "vylc-cache")
}

// LoadConfig reads vylc.toml from path, falling back to DefaultConfig when
// the file does not exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
