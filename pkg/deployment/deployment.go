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

// Package deployment models a single Btrfs subvolume under the
// deployments directory, its JSON metadata sidecar, and the Store that
// lists, creates and retires deployments on disk.
package deployment

import (
	"time"
)

// Status is the lifecycle state of a deployment, per the state machine:
// none -> building -> ready -> current -> previous. A building deployment
// whose mutation fails becomes broken; rollback marks the deployment a
// rollback has just made current.
type Status string

const (
	StatusBuilding Status = "building"
	StatusReady    Status = "ready"
	StatusCurrent  Status = "current"
	StatusPrevious Status = "previous"
	StatusBroken   Status = "broken"
	StatusRollback Status = "rollback"
)

// MetadataFile is the sidecar filename written alongside every deployment
// subvolume, named so it survives inside the read-only snapshot without
// colliding with anything the package manager might write.
const MetadataFile = ".hammer-meta.json"

// Metadata is the deployment's JSON sidecar: everything the engine needs
// to know about a deployment without mounting and inspecting it.
type Metadata struct {
	Created        time.Time `json:"created"`
	Description    string    `json:"description"`
	Parent         string    `json:"parent"`
	Kernel         string    `json:"kernel"`
	SystemVersion  string    `json:"system_version"`
	Status         Status    `json:"status"`
	RollbackReason string    `json:"rollback_reason,omitempty"`
}

// Deployment is one Btrfs subvolume under the deployments directory and
// its metadata sidecar.
type Deployment struct {
	Name string
	Path string
	Meta Metadata
}

// NamePrefix is prepended to every deployment's generated name, ahead of
// a zero-padded UTC timestamp, so lexical sort order matches creation
// order.
const NamePrefix = "hammer-"

const nameTimeLayout = "20060102150405"

// NewName returns a deployment name for the given creation time, unique
// to the second and chronologically sortable.
func NewName(t time.Time) string {
	return NamePrefix + t.UTC().Format(nameTimeLayout)
}

// MetadataPath returns the path to d's metadata sidecar.
func (d *Deployment) MetadataPath() string {
	return d.Path + "/" + MetadataFile
}

// IsRetainable reports whether d should survive a Cleanup sweep
// regardless of age: current (status current, or rollback after a
// rollback) and previous are always kept, as are any
// deployment mid-transaction (building) since removing it would orphan
// a live transaction.
func (d *Deployment) IsRetainable() bool {
	switch d.Meta.Status {
	case StatusCurrent, StatusRollback, StatusPrevious, StatusBuilding:
		return true
	default:
		return false
	}
}
