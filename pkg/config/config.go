/*
Copyright © 2025 SUSE LLC
SPDX-License-Identifier: Apache-2.0

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the engine's on-disk configuration, an env-style
// file in the same format the rest of the stack uses for /etc/os-release
// and deployment sidecars' sibling files.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath  = "/etc/hammer/hammer.conf"
	DefaultBtrfsTop    = "/"
	DefaultDeployments = "/deployments"
	DefaultCurrentLink = "/current"
	DefaultLockFile    = "/run/hammer.lock"
	DefaultMarkerFile  = "/run/hammer.transaction"
	DefaultLogFile     = "/var/log/hammer.log"
	DefaultRetain      = 5
	DefaultBootloader  = "grub"
)

// Config holds every path and policy knob the engine needs, defaulted the
// way the Rust original hardcodes them but overridable per deployment.
type Config struct {
	BtrfsTop       string
	DeploymentsDir string
	CurrentLink    string
	LockFile       string
	MarkerFile     string
	LogFile        string
	Retain         int
	RepoBaseURL    string
	Suite          string
	Bootloader     string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BtrfsTop:       DefaultBtrfsTop,
		DeploymentsDir: DefaultDeployments,
		CurrentLink:    DefaultCurrentLink,
		LockFile:       DefaultLockFile,
		MarkerFile:     DefaultMarkerFile,
		LogFile:        DefaultLogFile,
		Retain:         DefaultRetain,
		Suite:          "stable",
		Bootloader:     DefaultBootloader,
	}
}

// Load reads path as a godotenv-formatted file and overlays any recognized
// keys onto the defaults. A missing file is not an error: the engine runs
// fine on defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, err
	}

	apply := func(key string, dst *string) {
		if v, ok := env[key]; ok && v != "" {
			*dst = v
		}
	}
	apply("BTRFS_TOP", &cfg.BtrfsTop)
	apply("DEPLOYMENTS_DIR", &cfg.DeploymentsDir)
	apply("CURRENT_LINK", &cfg.CurrentLink)
	apply("LOCK_FILE", &cfg.LockFile)
	apply("MARKER_FILE", &cfg.MarkerFile)
	apply("LOG_FILE", &cfg.LogFile)
	apply("REPO_BASE_URL", &cfg.RepoBaseURL)
	apply("SUITE", &cfg.Suite)
	apply("BOOTLOADER", &cfg.Bootloader)

	if v, ok := env["RETAIN"]; ok {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.Retain = n
		}
	}

	return cfg, nil
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
