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

// Package validate runs the preflight and post-mutation checks every
// transaction verb performs before committing to a mutation and before
// sealing its result, respectively.
package validate

import (
	"fmt"
	"os"
	"syscall"

	"github.com/hackeros/hammer/pkg/btrfs"
	"github.com/hackeros/hammer/pkg/deployment"
	"github.com/hackeros/hammer/pkg/herrors"
	"github.com/hackeros/hammer/pkg/sys"
	"github.com/hackeros/hammer/pkg/sys/vfs"
)

// MinFreeBytes is the minimum free space required on the Btrfs top-level
// filesystem before a transaction is allowed to create a new snapshot,
// a rough guard against filling the filesystem mid-transaction.
const MinFreeBytes = 512 * 1024 * 1024

// geteuid and statfs are indirected through package variables so tests can
// substitute them without needing an actual root process or filesystem.
var (
	geteuid = os.Geteuid
	statfs  = syscall.Statfs
)

// Preflight runs the checks that must hold before any mutation begins:
// the process runs as root, btrfsTop is actually a Btrfs mount, and there
// is enough free space to create another snapshot.
func Preflight(s *sys.System, btrfsTop string) error {
	if geteuid() != 0 {
		return herrors.Precondition("preflight", fmt.Errorf("must run as root"))
	}

	if ok, err := btrfs.IsBtrfs(s, btrfsTop); err != nil || !ok {
		return herrors.Precondition("preflight", fmt.Errorf("%s is not a Btrfs filesystem", btrfsTop))
	}

	free, err := freeBytes(btrfsTop)
	if err != nil {
		return herrors.Precondition("preflight", fmt.Errorf("checking free space on %s: %w", btrfsTop, err))
	}
	if free < MinFreeBytes {
		return herrors.Precondition("preflight", fmt.Errorf("only %d bytes free on %s, need at least %d", free, btrfsTop, MinFreeBytes))
	}

	return nil
}

// CurrentDeployment checks that the current deployment resolves and is
// sealed read-only, the precondition every mutating verb needs before it
// may snapshot from it.
func CurrentDeployment(s *sys.System, d *deployment.Deployment) error {
	ro, err := btrfs.IsReadOnly(s, d.Path)
	if err != nil {
		return herrors.Precondition("preflight", fmt.Errorf("checking ro property of current deployment %s: %w", d.Name, err))
	}
	if !ro {
		return herrors.Precondition("preflight", fmt.Errorf("current deployment %s is not read-only", d.Name))
	}
	return nil
}

// PostMutation runs the checks that must hold after a transaction has
// mutated a deployment but before it is sealed read-only: a kernel and a
// matching initrd must be present, or boot will fail silently until the
// next reboot.
func PostMutation(s *sys.System, deploymentPath string) error {
	_, version, err := vfs.FindKernel(s.FS(), deploymentPath)
	if err != nil {
		return herrors.Filesystem("post-mutation validate", fmt.Errorf("no kernel present in %s: %w", deploymentPath, err))
	}
	if _, err := vfs.FindInitrd(s.FS(), deploymentPath, version); err != nil {
		return herrors.Filesystem("post-mutation validate", fmt.Errorf("no initrd matching kernel %s in %s: %w", version, deploymentPath, err))
	}
	return nil
}

// freeBytes reports the free space on the filesystem backing path.
// syscall.Statfs is used directly: none of the retrieval pack's libraries
// wrap filesystem statistics, and this mirrors the direct syscall.Chroot
// use in the chroot executor.
func freeBytes(path string) (uint64, error) {
	var st syscall.Statfs_t
	if err := statfs(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
