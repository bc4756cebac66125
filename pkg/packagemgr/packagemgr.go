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

// Package packagemgr sequences the apt/dpkg commands a chroot executor
// runs for each transaction verb, and probes package presence before a
// mutation starts.
package packagemgr

import (
	"fmt"
	"strings"

	"github.com/hackeros/hammer/pkg/chroot"
	"github.com/hackeros/hammer/pkg/herrors"
)

// PackageListPath is where the installed-package manifest is materialized
// inside the chroot, the canonical input to the content fingerprint.
const PackageListPath = "/var/log/packages.list"

// NoninteractiveEnv prevents apt/dpkg from blocking on a prompt inside an
// unattended chroot.
var NoninteractiveEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// IsInstalled reports whether pkg is installed in the chroot target,
// via `dpkg -s`.
func IsInstalled(c *chroot.Chroot, pkg string) (bool, error) {
	_, err := c.Run("dpkg", "-s", pkg)
	return err == nil, nil
}

// Install runs the install verb's chroot command sequence: refresh the
// package index, install pkg, autoremove now-unneeded dependencies,
// materialize the package list, and regenerate the initramfs.
func Install(c *chroot.Chroot, pkg string) error {
	installed, _ := IsInstalled(c, pkg)
	if installed {
		return herrors.Transaction("install "+pkg, fmt.Errorf("package %s is already installed", pkg))
	}

	steps := [][]string{
		{"apt-get", "update"},
		{"apt-get", "install", "-y", pkg},
		{"apt-get", "autoremove", "-y"},
	}
	if err := runSteps(c, steps); err != nil {
		return herrors.ExternalTool("install "+pkg, "", err)
	}
	return finalize(c)
}

// Remove runs the remove verb's chroot command sequence, the mirror image
// of Install with a reversed precondition.
func Remove(c *chroot.Chroot, pkg string) error {
	installed, _ := IsInstalled(c, pkg)
	if !installed {
		return herrors.Transaction("remove "+pkg, fmt.Errorf("package %s is not installed", pkg))
	}

	steps := [][]string{
		{"apt-get", "update"},
		{"apt-get", "remove", "-y", pkg},
		{"apt-get", "autoremove", "-y"},
	}
	if err := runSteps(c, steps); err != nil {
		return herrors.ExternalTool("remove "+pkg, "", err)
	}
	return finalize(c)
}

// Refresh runs the whole-system upgrade sequence (`apt-get upgrade`,
// not `dist-upgrade`). --force-confold
// keeps the administrator's existing config file on a conflict instead of
// installing the package's version, the default apt would otherwise prompt
// for interactively.
func Refresh(c *chroot.Chroot) error {
	steps := [][]string{
		{"apt-get", "update"},
		{"apt-get", "-y", "-o", "Dpkg::Options::=--force-confold", "upgrade"},
	}
	if err := runSteps(c, steps); err != nil {
		return herrors.ExternalTool("refresh", "", err)
	}
	return finalize(c)
}

// Layer installs a local package file already staged at stagedPath inside
// the chroot, via `dpkg -iR`.
func Layer(c *chroot.Chroot, stagedPath string) error {
	if _, err := c.RunEnv("dpkg", NoninteractiveEnv, "-iR", stagedPath); err != nil {
		return herrors.ExternalTool("layer "+stagedPath, "", err)
	}
	return finalize(c)
}

// Init runs the one-time bootstrap pass: reinstall the packages already
// present so their configuration is regenerated cleanly, and mark them
// manually installed so a later autoremove never drops them.
func Init(c *chroot.Chroot) error {
	out, err := c.Run("dpkg", "--get-selections")
	if err != nil {
		return herrors.ExternalTool("init", "", err)
	}
	pkgs := selectedPackages(string(out))
	if len(pkgs) > 0 {
		args := append([]string{"install", "-y", "--reinstall"}, pkgs...)
		if _, err := c.RunEnv("apt-get", NoninteractiveEnv, args...); err != nil {
			return herrors.ExternalTool("init", "", err)
		}
		markArgs := append([]string{"manual"}, pkgs...)
		if _, err := c.RunEnv("apt-mark", NoninteractiveEnv, markArgs...); err != nil {
			return herrors.ExternalTool("init", "", err)
		}
	}
	return finalize(c)
}

// finalize materializes the package-list manifest inside the chroot and
// regenerates the initramfs, the common tail shared by every verb's
// chroot command sequence. The listing is written via shell redirection
// rather than captured and re-written from the Go side, since the chroot
// executor has no stdin-piping primitive and none is needed here.
func finalize(c *chroot.Chroot) error {
	if _, err := c.Run("sh", "-c", fmt.Sprintf("dpkg -l > %s", PackageListPath)); err != nil {
		return herrors.ExternalTool("write package list", "", err)
	}
	if _, err := c.Run("update-initramfs", "-u", "-k", "all"); err != nil {
		return herrors.ExternalTool("update-initramfs", "", err)
	}
	return nil
}

func runSteps(c *chroot.Chroot, steps [][]string) error {
	for _, step := range steps {
		if _, err := c.RunEnv(step[0], NoninteractiveEnv, step[1:]...); err != nil {
			return fmt.Errorf("%s: %w", strings.Join(step, " "), err)
		}
	}
	return nil
}

// KernelVersion runs `uname -r` inside the chroot and returns its trimmed
// output. A chroot shares the running kernel, so the value is the release
// of the kernel the host is running; it is not read from the kernel
// packages installed in the tree.
func KernelVersion(c *chroot.Chroot) (string, error) {
	out, err := c.Run("uname", "-r")
	if err != nil {
		return "", herrors.ExternalTool("kernel version", "", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func selectedPackages(dpkgSelections string) []string {
	var pkgs []string
	for _, line := range strings.Split(dpkgSelections, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "install" {
			pkgs = append(pkgs, fields[0])
		}
	}
	return pkgs
}
