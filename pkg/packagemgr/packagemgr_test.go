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

package packagemgr_test

import (
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hackeros/hammer/pkg/chroot"
	"github.com/hackeros/hammer/pkg/log"
	"github.com/hackeros/hammer/pkg/packagemgr"
	"github.com/hackeros/hammer/pkg/sys"
	sysmock "github.com/hackeros/hammer/pkg/sys/mock"
)

func TestPackagemgrSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Packagemgr test suite")
}

var _ = Describe("Install", Label("packagemgr"), func() {
	var runner *sysmock.Runner
	var s *sys.System
	var fs sys.FS
	var root string
	var cleanup func()
	var c *chroot.Chroot

	BeforeEach(func() {
		runner = sysmock.NewRunner()
		fs, root, cleanup = sysmock.TestFS(nil)
		var err error
		s, err = sys.NewSystem(
			sys.WithRunner(runner), sys.WithFS(fs), sys.WithSyscall(&sysmock.Syscall{}),
			sys.WithLogger(log.New(log.WithDiscardAll())),
		)
		Expect(err).NotTo(HaveOccurred())
		c = chroot.NewChroot(s, root)
	})

	AfterEach(func() {
		cleanup()
	})

	It("refuses to install an already-installed package", func() {
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			if command == "dpkg" && len(args) > 0 && args[0] == "-s" {
				return []byte("Status: install ok installed"), nil
			}
			return []byte(""), nil
		}

		err := packagemgr.Install(c, "htop")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("already installed"))
	})

	It("runs update, install, autoremove and the common tail", func() {
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			if command == "dpkg" && len(args) > 0 && args[0] == "-s" {
				return nil, errDpkgNotInstalled
			}
			return []byte(""), nil
		}

		Expect(packagemgr.Install(c, "htop")).To(Succeed())
		Expect(runner.IncludesCmds([][]string{
			{"apt-get", "update"},
			{"apt-get", "install", "-y", "htop"},
			{"apt-get", "autoremove", "-y"},
			{"sh", "-c"},
			{"update-initramfs", "-u", "-k", "all"},
		})).To(Succeed())
	})
})

var _ = Describe("Refresh", Label("packagemgr"), func() {
	It("holds config files on conflict", func() {
		runner := sysmock.NewRunner()
		fs, root, cleanup := sysmock.TestFS(nil)
		defer cleanup()
		s, err := sys.NewSystem(
			sys.WithRunner(runner), sys.WithFS(fs), sys.WithSyscall(&sysmock.Syscall{}),
			sys.WithLogger(log.New(log.WithDiscardAll())),
		)
		Expect(err).NotTo(HaveOccurred())
		c := chroot.NewChroot(s, root)

		Expect(packagemgr.Refresh(c)).To(Succeed())
		Expect(runner.IncludesCmds([][]string{
			{"apt-get", "-y", "-o", "Dpkg::Options::=--force-confold", "upgrade"},
		})).To(Succeed())
	})
})

var errDpkgNotInstalled = errors.New("dpkg: package not installed")
