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

package deployment

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hackeros/hammer/pkg/btrfs"
	"github.com/hackeros/hammer/pkg/herrors"
	"github.com/hackeros/hammer/pkg/sys"
)

// CurrentLink and PreviousLink are the well-known symlink names a Store
// maintains next to the deployments directory. They are an introspection
// convenience only: the Btrfs default subvolume ID is the actual boot
// authority, per the non-atomic symlink swap note in the data model.
const (
	CurrentLink  = "current"
	PreviousLink = "previous"
)

// Store lists, creates and retires deployments rooted at a Btrfs
// top-level subvolume.
type Store struct {
	sys            *sys.System
	btrfsTop       string
	deploymentsDir string
}

// NewStore returns a Store rooted at btrfsTop, keeping deployments under
// btrfsTop+"/"+deploymentsDir.
func NewStore(s *sys.System, btrfsTop, deploymentsDir string) *Store {
	return &Store{sys: s, btrfsTop: btrfsTop, deploymentsDir: btrfsTop + deploymentsDir}
}

// Dir returns the deployments directory path.
func (st *Store) Dir() string {
	return st.deploymentsDir
}

func (st *Store) path(name string) string {
	return st.deploymentsDir + "/" + name
}

func (st *Store) currentLinkPath() string {
	return st.btrfsTop + "/" + CurrentLink
}

func (st *Store) previousLinkPath() string {
	return st.btrfsTop + "/" + PreviousLink
}

// List returns every deployment under the deployments directory, sorted
// ascending by name, which is chronological since names embed a
// zero-padded UTC timestamp.
func (st *Store) List() ([]*Deployment, error) {
	entries, err := st.sys.FS().ReadDir(st.deploymentsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, herrors.Filesystem("list deployments", err)
	}

	var deployments []*Deployment
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), NamePrefix) {
			continue
		}
		d, err := st.Load(e.Name())
		if err != nil {
			st.sys.Logger().Warn("skipping %s: %v", e.Name(), err)
			continue
		}
		deployments = append(deployments, d)
	}

	sort.Slice(deployments, func(i, j int) bool { return deployments[i].Name < deployments[j].Name })
	return deployments, nil
}

// Load reads the metadata sidecar for the deployment named name.
func (st *Store) Load(name string) (*Deployment, error) {
	path := st.path(name)
	data, err := st.sys.FS().ReadFile(path + "/" + MetadataFile)
	if err != nil {
		return nil, herrors.Filesystem(fmt.Sprintf("read metadata for %s", name), err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, herrors.Filesystem(fmt.Sprintf("parse metadata for %s", name), err)
	}

	return &Deployment{Name: name, Path: path, Meta: meta}, nil
}

// WriteMetadata serializes d.Meta to its sidecar. The target subvolume
// must still be writable: callers write metadata before sealing the
// snapshot read-only.
func (st *Store) WriteMetadata(d *Deployment) error {
	data, err := json.MarshalIndent(d.Meta, "", "  ")
	if err != nil {
		return herrors.Filesystem("marshal metadata", err)
	}
	if err := st.sys.FS().WriteFile(d.MetadataPath(), data, 0644); err != nil {
		return herrors.Filesystem(fmt.Sprintf("write metadata for %s", d.Name), err)
	}
	return nil
}

// Create snapshots base (the current deployment's path, or the Btrfs top
// for the first deployment) into a freshly named one, writable when
// writable is set so the caller can chroot in and mutate it. base is
// recorded in Meta.Parent. Metadata marking the
// deployment "building" is written immediately, before any mutation
// happens, so a crash mid-transaction leaves a sidecar cleanup can find.
func (st *Store) Create(name, base string, writable bool) (*Deployment, error) {
	dst := st.path(name)
	if err := btrfs.Snapshot(st.sys, base, dst, !writable); err != nil {
		return nil, herrors.ExternalTool("snapshot deployment "+name, "", err)
	}
	d := &Deployment{Name: name, Path: dst, Meta: Metadata{Status: StatusBuilding, Parent: base}}
	if err := st.WriteMetadata(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Seal marks d ready and flips its subvolume read-only. Metadata is
// written before the flip since the subvolume becomes immutable after.
func (st *Store) Seal(d *Deployment) error {
	d.Meta.Status = StatusReady
	if err := st.WriteMetadata(d); err != nil {
		return err
	}
	if err := btrfs.SetReadOnlyRecursive(st.sys, d.Path, true); err != nil {
		return herrors.ExternalTool("seal deployment "+d.Name, "", err)
	}
	return nil
}

// SetCurrent repoints the current/previous symlinks and the Btrfs default
// subvolume to d. The symlink swap (unlink+symlink) is not atomic; the
// default subvolume ID set immediately after is the authority the
// bootloader actually reads, per the data model's non-atomic symlink
// swap note.
func (st *Store) SetCurrent(d *Deployment) error {
	prevTarget, err := st.sys.FS().Readlink(st.currentLinkPath())
	hadPrev := err == nil

	if hadPrev {
		if err := st.sys.FS().Remove(st.previousLinkPath()); err != nil && !os.IsNotExist(err) {
			return herrors.Filesystem("remove previous link", err)
		}
		if err := st.sys.FS().Symlink(prevTarget, st.previousLinkPath()); err != nil {
			return herrors.Filesystem("relink previous", err)
		}
	}

	if err := st.sys.FS().Remove(st.currentLinkPath()); err != nil && !os.IsNotExist(err) {
		return herrors.Filesystem("remove current link", err)
	}
	if err := st.sys.FS().Symlink(d.Path, st.currentLinkPath()); err != nil {
		return herrors.Filesystem("relink current", err)
	}

	id, err := btrfs.SubvolumeID(st.sys, d.Path)
	if err != nil {
		return herrors.ExternalTool("resolve subvolume id for "+d.Name, "", err)
	}
	if err := btrfs.SetDefaultSubvolume(st.sys, strconv.Itoa(id)); err != nil {
		return herrors.ExternalTool("set default subvolume to "+d.Name, "", err)
	}

	d.Meta.Status = StatusCurrent
	return st.WriteMetadata(d)
}

// ReadCurrent resolves the deployment pointed at by the current symlink.
// If the link is missing or stale, it falls back to scanning List for the
// deployment whose subvolume ID matches the Btrfs default, since the
// symlink is an introspection convenience and not the boot authority.
func (st *Store) ReadCurrent() (*Deployment, error) {
	if target, err := st.sys.FS().Readlink(st.currentLinkPath()); err == nil {
		name := target[strings.LastIndex(target, "/")+1:]
		if d, err := st.Load(name); err == nil {
			return d, nil
		}
	}

	deployments, err := st.List()
	if err != nil {
		return nil, err
	}
	out, err := st.sys.Runner().Run("btrfs", "subvolume", "get-default", st.btrfsTop)
	if err != nil {
		return nil, herrors.ExternalTool("resolve default subvolume id", "", err)
	}
	fields := strings.Fields(string(out))
	if len(fields) < 2 || fields[0] != "ID" {
		return nil, herrors.ExternalTool("resolve default subvolume id", "", fmt.Errorf("unexpected get-default output %q", out))
	}
	defaultID, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, herrors.ExternalTool("resolve default subvolume id", "", err)
	}
	for _, d := range deployments {
		id, err := btrfs.SubvolumeID(st.sys, d.Path)
		if err == nil && id == defaultID {
			return d, nil
		}
	}
	return nil, herrors.Fatal("read current deployment", fmt.Errorf("no deployment matches default subvolume %d", defaultID))
}

// ReadPrevious resolves the deployment pointed at by the previous symlink.
// Returns a herrors.Fatal if no previous symlink exists, since callers only
// reach here when a predecessor is actually expected (e.g. `switch` with no
// explicit target).
func (st *Store) ReadPrevious() (*Deployment, error) {
	target, err := st.sys.FS().Readlink(st.previousLinkPath())
	if err != nil {
		return nil, herrors.Fatal("read previous deployment", fmt.Errorf("no previous deployment recorded"))
	}
	name := target[strings.LastIndex(target, "/")+1:]
	return st.Load(name)
}

// Cleanup trims the deployment list down to retain total, always keeping
// current, previous and any deployment still mid-transaction regardless of
// age, and deleting the oldest disposable deployments to make up the
// difference. If current, previous and any in-progress build already
// account for retain or more, no disposable deployment is kept at all.
func (st *Store) Cleanup(retain int) ([]string, error) {
	deployments, err := st.List()
	if err != nil {
		return nil, err
	}

	var disposable []*Deployment
	for _, d := range deployments {
		if !d.IsRetainable() {
			disposable = append(disposable, d)
		}
	}

	keep := retain - (len(deployments) - len(disposable))
	if keep < 0 {
		keep = 0
	}
	if len(disposable) <= keep {
		return nil, nil
	}

	var removed []string
	for _, d := range disposable[:len(disposable)-keep] {
		if err := btrfs.SetReadOnlyRecursive(st.sys, d.Path, false); err != nil {
			st.sys.Logger().Warn("could not clear read-only on %s before removal: %v", d.Name, err)
		}
		if err := btrfs.DeleteSubvolume(st.sys, d.Path); err != nil {
			return removed, herrors.ExternalTool("delete deployment "+d.Name, "", err)
		}
		removed = append(removed, d.Name)
	}
	return removed, nil
}
