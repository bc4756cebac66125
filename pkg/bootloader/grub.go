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

package bootloader

import (
	"github.com/hackeros/hammer/pkg/chroot"
	"github.com/hackeros/hammer/pkg/herrors"
	"github.com/hackeros/hammer/pkg/sys"
)

// GrubConfigPath is where the rendered configuration is written, relative
// to the deployment root.
const GrubConfigPath = "/boot/grub/grub.cfg"

type Grub struct {
	s *sys.System
}

type Option func(*Grub)

func NewGrub(s *sys.System, opts ...Option) *Grub {
	g := &Grub{s}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Regenerate runs update-grub inside the chroot, falling back to a direct
// grub-mkconfig invocation on distributions that don't ship the wrapper.
func (g *Grub) Regenerate(c *chroot.Chroot) error {
	g.s.Logger().Info("Regenerating GRUB configuration")

	if _, err := c.Run("update-grub"); err == nil {
		return nil
	}

	if _, err := c.Run("grub-mkconfig", "-o", GrubConfigPath); err != nil {
		return herrors.ExternalTool("regenerate grub config", "", err)
	}
	return nil
}
