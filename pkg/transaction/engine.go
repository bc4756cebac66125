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

// Package transaction implements the Engine: the orchestrator that drives
// every mutating verb (init, install, remove, refresh, layer, switch,
// rollback, cleanup) through the shared transaction envelope, and the
// read-only verbs (status, list) that inspect the deployment store without
// acquiring the lock.
package transaction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackeros/hammer/pkg/bootloader"
	"github.com/hackeros/hammer/pkg/btrfs"
	"github.com/hackeros/hammer/pkg/chroot"
	"github.com/hackeros/hammer/pkg/config"
	"github.com/hackeros/hammer/pkg/deployment"
	"github.com/hackeros/hammer/pkg/fingerprint"
	"github.com/hackeros/hammer/pkg/herrors"
	httpx "github.com/hackeros/hammer/pkg/http"
	"github.com/hackeros/hammer/pkg/lock"
	"github.com/hackeros/hammer/pkg/mount"
	"github.com/hackeros/hammer/pkg/packagemgr"
	"github.com/hackeros/hammer/pkg/sys"
	"github.com/hackeros/hammer/pkg/sys/vfs"
	"github.com/hackeros/hammer/pkg/utils/cleanstack"
	"github.com/hackeros/hammer/pkg/validate"
)

// Engine drives the transaction envelope shared by every verb, wrapping a
// *sys.System, the on-disk config, the deployment store, the process lock
// and the bootloader to regenerate after each mutation.
type Engine struct {
	s     *sys.System
	cfg   *config.Config
	store *deployment.Store
	lock  *lock.Lock
	boot  bootloader.Bootloader
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithBootloader overrides the bootloader resolved from cfg.Bootloader,
// primarily for tests.
func WithBootloader(b bootloader.Bootloader) Option {
	return func(e *Engine) { e.boot = b }
}

// New builds an Engine from s and cfg.
func New(s *sys.System, cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		s:     s,
		cfg:   cfg,
		store: deployment.NewStore(s, cfg.BtrfsTop, cfg.DeploymentsDir),
		lock:  lock.New(cfg.LockFile),
	}
	for _, o := range opts {
		o(e)
	}
	if e.boot == nil {
		b, err := bootloader.New(cfg.Bootloader, s)
		if err != nil {
			return nil, err
		}
		e.boot = b
	}
	return e, nil
}

// Store exposes the underlying deployment store for read-only callers (the
// CLI's status/list verbs) that have no need to go through the Engine.
func (e *Engine) Store() *deployment.Store {
	return e.store
}

// mutateFunc builds the new deployment's content inside the chroot rooted
// at c. target is the chroot's host-side path, needed by verbs (layer) that
// must stage a file into the tree before running a command against it.
type mutateFunc func(c *chroot.Chroot, target string) error

// runTransaction implements spec's transaction envelope: acquire the lock,
// validate preconditions, snapshot a new deployment off the current one,
// mutate it inside a chroot, fingerprint and seal the result, then make it
// current. Shared by install, remove, refresh and layer; init and
// rollback/switch have their own entry points since they don't fit this
// shape (init has no predecessor to snapshot from, rollback/switch mutate
// nothing).
func (e *Engine) runTransaction(verb, describe string, overridePackages []string, releaseFile []byte, mutate mutateFunc) (*deployment.Deployment, error) {
	if err := e.lock.Acquire(verb); err != nil {
		return nil, herrors.Precondition(verb, err)
	}
	defer func() {
		if err := e.lock.Release(); err != nil {
			e.s.Logger().Error("releasing lock after %s: %v", verb, err)
		}
	}()

	if err := validate.Preflight(e.s, e.cfg.BtrfsTop); err != nil {
		return nil, err
	}

	device, err := btrfs.SourceDevice(e.s, e.cfg.BtrfsTop)
	if err != nil {
		return nil, herrors.Precondition(verb, err)
	}
	if err := mount.EnsureTopMounted(e.s, device, e.cfg.BtrfsTop); err != nil {
		return nil, herrors.Precondition(verb, err)
	}

	base, err := e.store.ReadCurrent()
	if err != nil {
		return nil, err
	}
	if err := validate.CurrentDeployment(e.s, base); err != nil {
		return nil, err
	}

	d, err := e.store.Create(deployment.NewName(time.Now()), base.Path, true)
	if err != nil {
		return nil, herrors.ExternalTool(verb, "", err)
	}
	d.Meta.Description = describe
	d.Meta.Parent = base.Name

	if err := e.writeMarker(d.Name); err != nil {
		return nil, herrors.Filesystem(verb, err)
	}

	target, clean, c, err := e.prepareChroot(device, d)
	if err != nil {
		return nil, err
	}

	if err := mutate(c, target); err != nil {
		return nil, e.abortBroken(verb, d, clean, err)
	}

	if err := e.finishMutation(c, d, clean, overridePackages, releaseFile); err != nil {
		return nil, e.abortBroken(verb, d, clean, err)
	}

	if err := e.store.Seal(d); err != nil {
		return nil, err
	}
	if err := e.store.SetCurrent(d); err != nil {
		return nil, err
	}

	base.Meta.Status = deployment.StatusPrevious
	if err := e.store.WriteMetadata(base); err != nil {
		e.s.Logger().Error("marking %s previous: %v", base.Name, err)
	}

	if err := e.removeMarker(); err != nil {
		e.s.Logger().Error("removing transaction marker: %v", err)
	}

	return d, nil
}

// prepareChroot mounts d's subvolume and its bind mounts at a fresh temp
// target, returning a CleanStack that tears both down in reverse order.
func (e *Engine) prepareChroot(device string, d *deployment.Deployment) (string, *cleanstack.CleanStack, *chroot.Chroot, error) {
	target := mount.NewChrootTarget()
	if err := os.MkdirAll(target, 0755); err != nil {
		return "", nil, nil, herrors.Filesystem("prepare chroot", err)
	}

	relPath := strings.TrimPrefix(d.Path, e.cfg.BtrfsTop)
	if err := btrfs.MountSubvolume(e.s, device, relPath, target); err != nil {
		return "", nil, nil, herrors.ExternalTool("mount new deployment", "", err)
	}

	chrootMounts, err := mount.NewChrootMounts(e.s, target)
	if err != nil {
		_ = e.s.Mounter().Unmount(target)
		return "", nil, nil, herrors.ExternalTool("bind mount chroot", "", err)
	}

	clean := cleanstack.NewCleanStack()
	clean.Push(func() error { return chrootMounts.Close() })
	clean.Push(func() error { return e.s.Mounter().Unmount(target) })
	clean.Push(func() error { return os.RemoveAll(target) })

	return target, clean, chroot.NewChroot(e.s, target), nil
}

// finishMutation extracts the kernel version, computes the content
// fingerprint, validates the result, regenerates the bootloader, then tears
// down the chroot mounts. Shared by runTransaction and Init.
func (e *Engine) finishMutation(c *chroot.Chroot, d *deployment.Deployment, clean *cleanstack.CleanStack, overridePackages []string, releaseFile []byte) error {
	kernel, err := packagemgr.KernelVersion(c)
	if err != nil {
		return err
	}
	d.Meta.Kernel = kernel

	pkgList, err := e.s.FS().ReadFile(d.Path + packagemgr.PackageListPath)
	if err != nil {
		return herrors.Filesystem("compute fingerprint", err)
	}
	d.Meta.SystemVersion = fingerprint.Compute(pkgList, overridePackages, releaseFile)
	d.Meta.Created = time.Now()

	if err := validate.PostMutation(e.s, d.Path); err != nil {
		return err
	}
	if err := e.boot.Regenerate(c); err != nil {
		return herrors.ExternalTool("regenerate bootloader", "", err)
	}

	if err := clean.Cleanup(nil); err != nil {
		e.s.Logger().Error("cleaning up transaction mounts for %s: %v", d.Name, err)
	}
	return nil
}

// abortBroken tears down mounts, marks d broken in its metadata sidecar and
// leaves both it and the transaction marker in place for a later cleanup
// run, per the crash-recovery contract: a deployment and its marker only
// disappear together, never separately.
func (e *Engine) abortBroken(verb string, d *deployment.Deployment, clean *cleanstack.CleanStack, cause error) error {
	if err := clean.Cleanup(nil); err != nil {
		e.s.Logger().Error("cleaning up after failed %s: %v", verb, err)
	}
	d.Meta.Status = deployment.StatusBroken
	if err := e.store.WriteMetadata(d); err != nil {
		e.s.Logger().Error("marking %s broken: %v", d.Name, err)
	}
	if herr, ok := cause.(*herrors.Error); ok {
		return herr
	}
	return herrors.ExternalTool(verb, "", cause)
}

func (e *Engine) writeMarker(name string) error {
	return os.WriteFile(e.cfg.MarkerFile, []byte(name), 0644)
}

func (e *Engine) removeMarker() error {
	err := os.Remove(e.cfg.MarkerFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (e *Engine) readMarker() (string, bool) {
	data, err := os.ReadFile(e.cfg.MarkerFile)
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	return name, name != ""
}

// Install runs the install verb against pkg.
func (e *Engine) Install(pkg string) error {
	_, err := e.runTransaction("install "+pkg, "install "+pkg, nil, nil, func(c *chroot.Chroot, _ string) error {
		return packagemgr.Install(c, pkg)
	})
	return err
}

// Remove runs the remove verb against pkg.
func (e *Engine) Remove(pkg string) error {
	_, err := e.runTransaction("remove "+pkg, "remove "+pkg, nil, nil, func(c *chroot.Chroot, _ string) error {
		return packagemgr.Remove(c, pkg)
	})
	return err
}

// Layer stages the local package file at localPath into the new
// deployment's tree and installs it via dpkg -iR.
func (e *Engine) Layer(localPath string) error {
	base := filepath.Base(localPath)
	staged := "/var/cache/hammer/staged/" + base

	_, err := e.runTransaction("layer "+base, "layer "+base, []string{base}, nil, func(c *chroot.Chroot, target string) error {
		data, err := e.s.FS().ReadFile(localPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", localPath, err)
		}
		fullStaged := target + staged
		if err := vfs.MkdirAll(e.s.FS(), filepath.Dir(fullStaged), vfs.DirPerm); err != nil {
			return err
		}
		if err := e.s.FS().WriteFile(fullStaged, data, vfs.FilePerm); err != nil {
			return err
		}
		return packagemgr.Layer(c, staged)
	})
	return err
}

// Refresh runs the whole-system upgrade verb. It first predicts the
// fingerprint a refresh would produce from the current deployment's package
// list plus a freshly fetched release file, and short-circuits without
// creating a new deployment if that prediction matches the current
// system_version, unless force is set. Returns upToDate=true when it
// short-circuited.
func (e *Engine) Refresh(ctx context.Context, force bool) (upToDate bool, err error) {
	base, err := e.store.ReadCurrent()
	if err != nil {
		return false, err
	}

	var releaseFile []byte
	if e.cfg.RepoBaseURL != "" {
		releaseFile, err = e.fetchReleaseFile(ctx)
		if err != nil {
			return false, herrors.ExternalTool("refresh", "", err)
		}
	}

	if !force {
		if pkgList, rerr := e.s.FS().ReadFile(base.Path + packagemgr.PackageListPath); rerr == nil {
			predicted := fingerprint.Compute(pkgList, nil, releaseFile)
			if predicted == base.Meta.SystemVersion {
				e.s.Logger().Info("%s is up to date (system_version %s)", base.Name, predicted)
				return true, nil
			}
		}
	}

	_, err = e.runTransaction("refresh", "refresh", nil, releaseFile, func(c *chroot.Chroot, _ string) error {
		return packagemgr.Refresh(c)
	})
	return false, err
}

// fetchReleaseFile downloads the suite's Release file from the configured
// repository, returning its raw content for fingerprinting.
func (e *Engine) fetchReleaseFile(ctx context.Context) ([]byte, error) {
	url := strings.TrimRight(e.cfg.RepoBaseURL, "/") + "/dists/" + e.cfg.Suite + "/Release"
	path := filepath.Join(os.TempDir(), "hammer-release-"+uuid.NewString())
	defer os.Remove(path)

	if err := httpx.DownloadFile(ctx, e.s.FS(), url, path); err != nil {
		return nil, err
	}
	return e.s.FS().ReadFile(path)
}

// Init bootstraps the first deployment by snapshotting the already-running
// root filesystem, unlike every other verb it has no predecessor to base
// the snapshot on.
func (e *Engine) Init() error {
	if err := e.lock.Acquire("init"); err != nil {
		return herrors.Precondition("init", err)
	}
	defer func() {
		if err := e.lock.Release(); err != nil {
			e.s.Logger().Error("releasing lock after init: %v", err)
		}
	}()

	if err := validate.Preflight(e.s, e.cfg.BtrfsTop); err != nil {
		return err
	}

	device, err := btrfs.SourceDevice(e.s, e.cfg.BtrfsTop)
	if err != nil {
		return herrors.Precondition("init", err)
	}
	if err := mount.EnsureTopMounted(e.s, device, e.cfg.BtrfsTop); err != nil {
		return herrors.Precondition("init", err)
	}

	if _, err := e.store.ReadCurrent(); err == nil {
		return herrors.Transaction("init", fmt.Errorf("already initialized"))
	}

	d, err := e.store.Create(deployment.NewName(time.Now()), e.cfg.BtrfsTop, true)
	if err != nil {
		return herrors.ExternalTool("init", "", err)
	}
	d.Meta.Description = "init"

	if err := e.writeMarker(d.Name); err != nil {
		return herrors.Filesystem("init", err)
	}

	_, clean, c, err := e.prepareChroot(device, d)
	if err != nil {
		return err
	}

	if err := packagemgr.Init(c); err != nil {
		return e.abortBroken("init", d, clean, err)
	}
	if err := e.finishMutation(c, d, clean, nil, nil); err != nil {
		return e.abortBroken("init", d, clean, err)
	}

	if err := e.store.Seal(d); err != nil {
		return err
	}
	if err := e.store.SetCurrent(d); err != nil {
		return err
	}
	if err := e.removeMarker(); err != nil {
		e.s.Logger().Error("removing transaction marker: %v", err)
	}
	return nil
}

// Switch makes the named deployment current without mutating anything. An
// empty name switches to the previous deployment.
func (e *Engine) Switch(name string) error {
	if err := e.lock.Acquire("switch"); err != nil {
		return herrors.Precondition("switch", err)
	}
	defer func() {
		if err := e.lock.Release(); err != nil {
			e.s.Logger().Error("releasing lock after switch: %v", err)
		}
	}()

	current, err := e.store.ReadCurrent()
	if err != nil {
		return err
	}

	var target *deployment.Deployment
	if name == "" {
		target, err = e.store.ReadPrevious()
	} else {
		target, err = e.store.Load(name)
	}
	if err != nil {
		return herrors.Precondition("switch", err)
	}

	if err := validate.CurrentDeployment(e.s, target); err != nil {
		return err
	}
	if err := e.store.SetCurrent(target); err != nil {
		return err
	}

	current.Meta.Status = deployment.StatusPrevious
	return e.store.WriteMetadata(current)
}

// Rollback makes the nth-most-recent deployment before current the new
// current deployment, marking it with a rollback reason. n defaults to 1.
func (e *Engine) Rollback(n int) error {
	if n < 1 {
		n = 1
	}

	deployments, err := e.store.List()
	if err != nil {
		return err
	}
	current, err := e.store.ReadCurrent()
	if err != nil {
		return err
	}

	idx := -1
	for i, d := range deployments {
		if d.Name == current.Name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return herrors.Fatal("rollback", fmt.Errorf("current deployment %s not found in store", current.Name))
	}

	targetIdx := idx - n
	if targetIdx < 0 {
		return herrors.Precondition("rollback", fmt.Errorf("not enough history to roll back %d deployment(s)", n))
	}
	target := deployments[targetIdx]

	if err := e.lock.Acquire("rollback"); err != nil {
		return herrors.Precondition("rollback", err)
	}
	defer func() {
		if err := e.lock.Release(); err != nil {
			e.s.Logger().Error("releasing lock after rollback: %v", err)
		}
	}()

	if err := validate.CurrentDeployment(e.s, target); err != nil {
		return err
	}
	if err := e.store.SetCurrent(target); err != nil {
		return err
	}

	target.Meta.Status = deployment.StatusRollback
	target.Meta.RollbackReason = fmt.Sprintf("rolled back %d deployment(s) from %s", n, current.Name)
	if err := e.store.WriteMetadata(target); err != nil {
		return err
	}

	current.Meta.Status = deployment.StatusPrevious
	return e.store.WriteMetadata(current)
}

// Cleanup clears a stale transaction marker left by a crashed run (removing
// the broken deployment it names, unless it somehow became current) and
// then retires the oldest disposable deployments beyond cfg.Retain.
//
// A marker left on disk means the process that wrote it never reached
// removeMarker, so the lock file it acquired for that same transaction is
// stale too: nothing else holds it. Cleanup clears both before attempting
// its own acquire, rather than going through the normal Acquire/ErrHeld
// gate, so a crashed transaction's lock can never block the one verb meant
// to recover from it. A lock held with no marker on disk means some other
// transaction is genuinely in flight, and Cleanup still backs off from it.
func (e *Engine) Cleanup() ([]string, error) {
	if name, ok := e.readMarker(); ok {
		if d, err := e.store.Load(name); err == nil && d.Meta.Status != deployment.StatusCurrent {
			if err := btrfs.SetReadOnlyRecursive(e.s, d.Path, false); err != nil {
				e.s.Logger().Warn("clearing ro on stale deployment %s: %v", d.Name, err)
			}
			if err := btrfs.DeleteSubvolume(e.s, d.Path); err != nil {
				e.s.Logger().Warn("removing stale deployment %s: %v", d.Name, err)
			}
		}
		if err := e.removeMarker(); err != nil {
			e.s.Logger().Warn("removing stale transaction marker: %v", err)
		}
		if err := e.lock.Release(); err != nil {
			e.s.Logger().Warn("releasing stale lock left by crashed transaction: %v", err)
		}
	}

	if err := e.lock.Acquire("cleanup"); err != nil {
		return nil, herrors.Precondition("cleanup", err)
	}
	defer func() {
		if err := e.lock.Release(); err != nil {
			e.s.Logger().Error("releasing lock after cleanup: %v", err)
		}
	}()

	return e.store.Cleanup(e.cfg.Retain)
}

// Status returns the current deployment.
func (e *Engine) Status() (*deployment.Deployment, error) {
	return e.store.ReadCurrent()
}

// List returns every deployment in the store, oldest first.
func (e *Engine) List() ([]*deployment.Deployment, error) {
	return e.store.List()
}
