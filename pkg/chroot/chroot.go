/*
Copyright © 2022-2025 SUSE LLC
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

// Package chroot switches into a deployment's root and runs a command
// there. It owns only the chroot/chdir syscall dance and command
// execution; the bind mounts a chroot target needs are the Mount
// Orchestrator's concern (pkg/mount), prepared by the caller before Run
// is ever invoked.
package chroot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hackeros/hammer/pkg/log"
	"github.com/hackeros/hammer/pkg/sys"
	"github.com/hackeros/hammer/pkg/sys/vfs"
)

// Chroot runs commands inside a root mounted (and bind-mounted) at path.
type Chroot struct {
	path    string
	fs      vfs.FS
	logger  log.Logger
	runner  sys.Runner
	syscall sys.Syscall
}

// NewChroot returns a Chroot rooted at path.
func NewChroot(s *sys.System, path string) *Chroot {
	return &Chroot{
		path:    path,
		fs:      s.FS(),
		logger:  s.Logger(),
		runner:  s.Runner(),
		syscall: s.Syscall(),
	}
}

// RunCallback switches the process root to path, runs callback, then
// restores the original root. Every bind mount the target needs must
// already be in place: this method does not prepare or tear down any.
func (c *Chroot) RunCallback(callback func() error) (err error) {
	var currentPath string
	var oldRootF *os.File

	currentPath, err = os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current path: %w", err)
	}
	defer func() {
		tmpErr := os.Chdir(currentPath)
		if err == nil && tmpErr != nil {
			err = tmpErr
		}
	}()

	if !filepath.IsAbs(c.path) {
		oldPath := c.path
		c.path = filepath.Clean(filepath.Join(currentPath, c.path))
		c.logger.Warn("Requested chroot path %s is not absolute, changing it to %s", oldPath, c.path)
	}

	oldRootF, err = c.fs.OpenFile("/", os.O_RDONLY, vfs.DirPerm)
	if err != nil {
		return fmt.Errorf("opening current root: %w", err)
	}
	defer oldRootF.Close()

	err = c.syscall.Chdir(c.path)
	if err != nil {
		return fmt.Errorf("chdir %s: %w", c.path, err)
	}

	err = c.syscall.Chroot(c.path)
	if err != nil {
		return fmt.Errorf("chroot %s: %w", c.path, err)
	}

	defer func() {
		tmpErr := oldRootF.Chdir()
		if tmpErr != nil {
			c.logger.Error("can't change to old root dir")
			if err == nil {
				err = tmpErr
			}
		} else {
			tmpErr = c.syscall.Chroot(".")
			if tmpErr != nil {
				c.logger.Error("can't chroot back to old root")
				if err == nil {
					err = tmpErr
				}
			}
		}
	}()

	return callback()
}

// Run executes a command inside the chroot.
func (c *Chroot) Run(command string, args ...string) (out []byte, err error) {
	callback := func() error {
		out, err = c.runner.Run(command, args...)
		return err
	}
	err = c.RunCallback(callback)
	if err != nil {
		c.logger.Error("can't run command %s with args %v on chroot: %s", command, args, err)
		c.logger.Debug("Output from command: %s", out)
	}
	return out, err
}

// RunEnv executes a command inside the chroot with additional environment
// variables set, e.g. DEBIAN_FRONTEND=noninteractive for package manager
// invocations.
func (c *Chroot) RunEnv(command string, envs []string, args ...string) (out []byte, err error) {
	callback := func() error {
		out, err = c.runner.RunEnv(command, envs, args...)
		return err
	}
	err = c.RunCallback(callback)
	if err != nil {
		c.logger.Error("can't run command %s with args %v on chroot: %s", command, args, err)
		c.logger.Debug("Output from command: %s", out)
	}
	return out, err
}
