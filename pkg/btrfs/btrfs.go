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

package btrfs

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hackeros/hammer/pkg/sys"
	"github.com/hackeros/hammer/pkg/sys/vfs"
)

// subvolListLine matches a line of `btrfs subvolume list -a --sort=path`
// output, e.g. "ID 302 gen 481 top level 5 path <FS_TREE>/deployments/hammer-x/var".
var subvolListLine = regexp.MustCompile(`ID \d+ gen \d+ top level \d+ path (.*)`)

// subvolShowID matches the "Subvolume ID:" line of `btrfs subvolume show` output.
var subvolShowID = regexp.MustCompile(`Subvolume ID:\s+(\d+)`)

// DeleteSubvolume removes the given subvolume. Before removing the subvolume
// it sets the RW property to ensure it can be deleted, if deletion fails
// the property change remains applied.
func DeleteSubvolume(s *sys.System, path string) error {
	s.Logger().Debug("Setting rw property to subvolume: %s", path)
	_, err := s.Runner().Run("btrfs", "property", "set", "-ts", path, "ro", "false")
	if err != nil {
		return fmt.Errorf("setting rw permissions before deletion: %w", err)
	}
	_, err = s.Runner().Run("btrfs", "subvolume", "delete", "-c", "-R", path)
	return err
}

// SetDefaultSubvolume sets the given subvolume as the default subvolume to mount
func SetDefaultSubvolume(s *sys.System, path string) error {
	s.Logger().Debug("Setting default subvolume")
	_, err := s.Runner().Run("btrfs", "subvolume", "set-default", path)
	if err != nil {
		return fmt.Errorf("setting default subvolume to '%s': %w", path, err)
	}
	return nil
}

// SetReadOnly sets or clears the read-only property of a single subvolume.
func SetReadOnly(s *sys.System, path string, readOnly bool) error {
	_, err := s.Runner().Run("btrfs", "property", "set", "-ts", path, "ro", strconv.FormatBool(readOnly))
	if err != nil {
		return fmt.Errorf("setting ro=%t on %s: %w", readOnly, path, err)
	}
	return nil
}

// IsReadOnly reports whether path's Btrfs ro property is set.
func IsReadOnly(s *sys.System, path string) (bool, error) {
	out, err := s.Runner().Run("btrfs", "property", "get", "-ts", path, "ro")
	if err != nil {
		return false, fmt.Errorf("getting ro property of %s: %w", path, err)
	}
	return strings.Contains(string(out), "ro=true"), nil
}

// Snapshot creates a snapshot of src at dst, writable unless readOnly is set,
// then walks src's nested subvolumes and re-snapshots each of them into the
// corresponding path under dst, since `btrfs subvolume snapshot` does not
// recurse into nested subvolumes by itself: without this step a nested
// subvolume (e.g. a deployment's own /var) would surface as an empty
// directory in the new snapshot instead of a copy of its content.
func Snapshot(s *sys.System, src, dst string, readOnly bool) error {
	s.Logger().Debug("Snapshotting %s to %s", src, dst)
	if err := vfs.MkdirAll(s.FS(), filepath.Dir(dst), vfs.DirPerm); err != nil {
		return fmt.Errorf("creating snapshot parent dir for %s: %w", dst, err)
	}

	out, err := s.Runner().Run("btrfs", "subvolume", "snapshot", src, dst)
	if err != nil {
		return fmt.Errorf("snapshotting %s to %s: %s: %w", src, dst, string(out), err)
	}

	nested, err := nestedSubvolumes(s, src)
	if err != nil {
		return fmt.Errorf("listing nested subvolumes of %s: %w", src, err)
	}

	for _, rel := range nested {
		nestedSrc := filepath.Join(src, rel)
		nestedDst := filepath.Join(dst, rel)
		// The top-level snapshot already created an empty directory placeholder
		// where the nested subvolume used to be; it must be removed before a
		// subvolume can be snapshotted in its place.
		if err := s.FS().Remove(nestedDst); err != nil {
			return fmt.Errorf("removing nested placeholder %s: %w", nestedDst, err)
		}
		out, err := s.Runner().Run("btrfs", "subvolume", "snapshot", nestedSrc, nestedDst)
		if err != nil {
			return fmt.Errorf("snapshotting nested subvolume %s to %s: %s: %w", nestedSrc, nestedDst, string(out), err)
		}
	}

	if readOnly {
		return SetReadOnlyRecursive(s, dst, true)
	}
	return nil
}

// SetReadOnlyRecursive applies the ro property to path and to every nested
// subvolume beneath it.
func SetReadOnlyRecursive(s *sys.System, path string, readOnly bool) error {
	if err := SetReadOnly(s, path, readOnly); err != nil {
		return err
	}
	nested, err := nestedSubvolumes(s, path)
	if err != nil {
		return fmt.Errorf("listing nested subvolumes of %s: %w", path, err)
	}
	for _, rel := range nested {
		if err := SetReadOnly(s, filepath.Join(path, rel), readOnly); err != nil {
			return err
		}
	}
	return nil
}

// nestedSubvolumes returns the subvolume paths nested under top, relative to
// top, by parsing `btrfs subvolume list -a --sort=path` and stripping the
// <FS_TREE>/<relative-to-fs-root> prefix each entry carries.
func nestedSubvolumes(s *sys.System, top string) ([]string, error) {
	out, err := s.Runner().Run("btrfs", "subvolume", "list", "-a", "--sort=path", top)
	if err != nil {
		return nil, fmt.Errorf("listing subvolumes under %s: %w", top, err)
	}

	topBase, err := subvolumeRelBase(s, top)
	if err != nil {
		return nil, err
	}

	var rels []string
	for _, line := range strings.Split(string(out), "\n") {
		m := subvolListLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fsPath := strings.TrimPrefix(m[1], "<FS_TREE>/")
		rel := strings.TrimPrefix(fsPath, topBase+"/")
		if rel == fsPath || rel == "" {
			continue
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// subvolumeRelBase returns the path of top relative to the filesystem's
// subvolume root (the <FS_TREE> prefix `btrfs subvolume list` reports
// entries under), by reading top's own entry from `btrfs subvolume show`.
func subvolumeRelBase(s *sys.System, top string) (string, error) {
	out, err := s.Runner().Run("btrfs", "subvolume", "show", top)
	if err != nil {
		return "", fmt.Errorf("showing subvolume %s: %w", top, err)
	}
	// The first line of `btrfs subvolume show` output is the subvolume's own
	// path relative to the filesystem root.
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return "", fmt.Errorf("empty output from subvolume show %s", top)
	}
	return strings.TrimSpace(lines[0]), nil
}

// SubvolumeID parses `btrfs subvolume show` output to find the numeric
// subvolume ID of path.
func SubvolumeID(s *sys.System, path string) (int, error) {
	out, err := s.Runner().Run("btrfs", "subvolume", "show", path)
	if err != nil {
		return 0, fmt.Errorf("showing subvolume %s: %w", path, err)
	}
	m := subvolShowID.FindStringSubmatch(string(out))
	if m == nil {
		return 0, fmt.Errorf("could not parse subvolume ID from output for %s", path)
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("parsing subvolume ID %q: %w", m[1], err)
	}
	return id, nil
}

// MountTop mounts the top-level Btrfs subvolume (id 5, path "/") of device
// at mountPoint, stripping any [/@subvol] suffix the device string may carry
// (as reported for an already-mounted root) so the mount always targets the
// filesystem root rather than whatever subvolume happens to be current.
func MountTop(s *sys.System, device, mountPoint string) error {
	if idx := strings.Index(device, "["); idx >= 0 {
		device = strings.TrimSpace(device[:idx])
	}
	out, err := s.Runner().Run("mount", "-o", "subvol=/", device, mountPoint)
	if err != nil {
		return fmt.Errorf("mounting top-level subvolume of %s at %s: %s: %w", device, mountPoint, string(out), err)
	}
	return nil
}

// MountSubvolume mounts the subvolume at relPath (relative to the Btrfs
// top-level) from device at mountPoint.
func MountSubvolume(s *sys.System, device, relPath, mountPoint string) error {
	out, err := s.Runner().Run("mount", "-o", "subvol="+relPath, device, mountPoint)
	if err != nil {
		return fmt.Errorf("mounting subvolume %s of %s at %s: %s: %w", relPath, device, mountPoint, string(out), err)
	}
	return nil
}

// SourceDevice reports the block device backing path, via `findmnt`. Used
// to recover the device a Btrfs top-level mount lives on without requiring
// it to be named explicitly in configuration.
func SourceDevice(s *sys.System, path string) (string, error) {
	out, err := s.Runner().Run("findmnt", "-no", "SOURCE", path)
	if err != nil {
		return "", fmt.Errorf("finding source device for %s: %w", path, err)
	}
	device := strings.TrimSpace(string(out))
	if device == "" {
		return "", fmt.Errorf("empty source device for %s", path)
	}
	return device, nil
}

// IsBtrfs reports whether path is on a Btrfs filesystem, via `btrfs
// filesystem show`.
func IsBtrfs(s *sys.System, path string) (bool, error) {
	_, err := s.Runner().Run("btrfs", "filesystem", "show", path)
	return err == nil, nil
}
