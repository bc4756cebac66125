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

package bootloader_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hackeros/hammer/pkg/bootloader"
	"github.com/hackeros/hammer/pkg/chroot"
	"github.com/hackeros/hammer/pkg/log"
	"github.com/hackeros/hammer/pkg/sys"
	sysmock "github.com/hackeros/hammer/pkg/sys/mock"
)

var _ = Describe("Grub tests", Label("bootloader", "grub"), func() {
	var s *sys.System
	var cleanup func()
	var grub *bootloader.Grub
	var runner *sysmock.Runner
	var c *chroot.Chroot

	BeforeEach(func() {
		fs, root, cl := sysmock.TestFS(nil)
		cleanup = cl

		runner = sysmock.NewRunner()
		var err error
		s, err = sys.NewSystem(
			sys.WithRunner(runner), sys.WithFS(fs), sys.WithSyscall(&sysmock.Syscall{}),
			sys.WithLogger(log.New(log.WithDiscardAll())),
		)
		Expect(err).NotTo(HaveOccurred())

		c = chroot.NewChroot(s, root)
		grub = bootloader.NewGrub(s)
	})

	AfterEach(func() {
		cleanup()
	})

	It("regenerates via update-grub when available", func() {
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			if command == "update-grub" {
				return nil, nil
			}
			return nil, fmt.Errorf("command '%s': %w", command, errors.ErrUnsupported)
		}

		Expect(grub.Regenerate(c)).To(Succeed())
		Expect(runner.IncludesCmds([][]string{{"update-grub"}})).To(Succeed())
	})

	It("falls back to grub-mkconfig when update-grub is unavailable", func() {
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			if command == "update-grub" {
				return nil, fmt.Errorf("exec: \"update-grub\": %w", errors.ErrUnsupported)
			}
			return nil, nil
		}

		Expect(grub.Regenerate(c)).To(Succeed())
		Expect(runner.IncludesCmds([][]string{
			{"grub-mkconfig", "-o", bootloader.GrubConfigPath},
		})).To(Succeed())
	})
})
