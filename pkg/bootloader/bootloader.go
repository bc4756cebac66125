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

// Package bootloader regenerates the boot configuration inside a new
// deployment's chroot, after its mutation and before it is sealed
// read-only.
package bootloader

import (
	"errors"
	"fmt"

	"github.com/hackeros/hammer/pkg/chroot"
	"github.com/hackeros/hammer/pkg/sys"
)

// Bootloader regenerates the boot configuration for the tree mounted at
// c's chroot path, after a transaction has finished mutating it.
type Bootloader interface {
	Regenerate(c *chroot.Chroot) error
}

const (
	BootNone = "none"
	BootGrub = "grub"
)

// None is the no-op bootloader, used by tests and by deployments that
// manage their own boot configuration outside of hammer.
type None struct {
	s *sys.System
}

func NewNone(s *sys.System) *None {
	return &None{s}
}

func (n *None) Regenerate(_ *chroot.Chroot) error {
	n.s.Logger().Info("Skipping bootloader regeneration")
	return nil
}

// New builds the Bootloader named by name.
func New(name string, s *sys.System) (Bootloader, error) {
	switch name {
	case BootNone:
		return NewNone(s), nil
	case BootGrub:
		return NewGrub(s), nil
	}

	return nil, fmt.Errorf("new bootloader '%s': %w", name, errors.ErrUnsupported)
}
