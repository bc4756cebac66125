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

// Package mount orchestrates mounting the top-level Btrfs subvolume and
// the bind mounts a chroot environment needs, separately from the chroot
// package's own namespace-switching concerns.
package mount

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/hackeros/hammer/pkg/btrfs"
	"github.com/hackeros/hammer/pkg/sys"
	"github.com/hackeros/hammer/pkg/sys/vfs"
)

// DefaultBinds are the filesystems bind-mounted into a chroot target so
// the package manager can resolve devices, talk to the kernel, and use
// scratch space, per the chroot executor's requirements.
var DefaultBinds = []string{"/proc", "/sys", "/dev", "/run", "/tmp"}

// EnsureTopMounted mounts the top-level (id 5, "/") Btrfs subvolume of
// device at mountPoint unless it is already mounted there.
func EnsureTopMounted(s *sys.System, device, mountPoint string) error {
	ok, err := s.Mounter().IsMountPoint(mountPoint)
	if err != nil {
		return fmt.Errorf("checking mountpoint %s: %w", mountPoint, err)
	}
	if ok {
		return nil
	}
	if err := vfs.MkdirAll(s.FS(), mountPoint, vfs.DirPerm); err != nil {
		return fmt.Errorf("creating mountpoint %s: %w", mountPoint, err)
	}
	return btrfs.MountTop(s, device, mountPoint)
}

// NewChrootTarget returns a fresh, unique temp directory suitable as a
// chroot target, named so concurrent invocations (which the lock manager
// should otherwise prevent) never collide.
func NewChrootTarget() string {
	return filepath.Join(os.TempDir(), "hammer-"+uuid.NewString())
}

// ChrootMounts tracks the bind mounts made under a chroot target so they
// can be unmounted, in reverse order, on Close.
type ChrootMounts struct {
	sys     *sys.System
	target  string
	mounted []string
}

// NewChrootMounts bind-mounts DefaultBinds under target.
func NewChrootMounts(s *sys.System, target string) (*ChrootMounts, error) {
	cm := &ChrootMounts{sys: s, target: target}
	for _, bind := range DefaultBinds {
		dst := filepath.Join(target, bind)
		if err := vfs.MkdirAll(s.FS(), dst, vfs.DirPerm); err != nil {
			_ = cm.Close()
			return nil, fmt.Errorf("creating bind target %s: %w", dst, err)
		}
		if err := s.Mounter().Mount(bind, dst, "", []string{"bind"}); err != nil {
			_ = cm.Close()
			return nil, fmt.Errorf("bind mounting %s to %s: %w", bind, dst, err)
		}
		cm.mounted = append(cm.mounted, dst)
	}
	return cm, nil
}

// Close unmounts every bind mount in reverse order. Each unmount is
// retried with backoff; a mount that still fails is logged and the rest
// are still unmounted, so one stuck mount cannot block cleanup of the
// rest. The failures are joined into the returned error.
func (cm *ChrootMounts) Close() error {
	slices.Reverse(cm.mounted)
	var errs error
	for _, mnt := range cm.mounted {
		if err := cm.unmountWithRetry(mnt); err != nil {
			cm.sys.Logger().Error("could not unmount %s: %v", mnt, err)
			errs = errors.Join(errs, err)
		}
	}
	cm.mounted = nil
	return errs
}

func (cm *ChrootMounts) unmountWithRetry(mnt string) error {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 10 * time.Second
	b := backoff.WithMaxRetries(eb, 4)
	return backoff.Retry(func() error {
		return cm.sys.Mounter().Unmount(mnt)
	}, b)
}
