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

package btrfs_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hackeros/hammer/pkg/btrfs"
	"github.com/hackeros/hammer/pkg/log"
	"github.com/hackeros/hammer/pkg/sys"
	sysmock "github.com/hackeros/hammer/pkg/sys/mock"
)

func TestBtrfsSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Btrfs test suite")
}

var _ = Describe("Btrfs", Label("btrfs"), func() {
	var runner *sysmock.Runner
	var s *sys.System
	var fs sys.FS
	var cleanup func()

	BeforeEach(func() {
		runner = sysmock.NewRunner()
		fs, _, cleanup = sysmock.TestFS(nil)
		var err error
		s, err = sys.NewSystem(sys.WithRunner(runner), sys.WithFS(fs), sys.WithLogger(log.New(log.WithDiscardAll())))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("SubvolumeID", func() {
		It("parses the subvolume ID from show output", func() {
			runner.ReturnValue = []byte("deployments/hammer-x\n\tName: \t\t\thammer-x\n\tSubvolume ID: \t\t302\n")
			id, err := btrfs.SubvolumeID(s, "/top/deployments/hammer-x")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(302))
		})

		It("errors when the ID cannot be found", func() {
			runner.ReturnValue = []byte("garbage output")
			_, err := btrfs.SubvolumeID(s, "/top/deployments/hammer-x")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("DeleteSubvolume", func() {
		It("sets rw before deleting", func() {
			Expect(btrfs.DeleteSubvolume(s, "/top/deployments/hammer-old")).To(Succeed())
			Expect(runner.CmdsMatch([][]string{
				{"btrfs", "property", "set", "-ts", "/top/deployments/hammer-old", "ro", "false"},
				{"btrfs", "subvolume", "delete", "-c", "-R", "/top/deployments/hammer-old"},
			})).To(Succeed())
		})
	})

	Describe("SetReadOnlyRecursive", func() {
		It("applies ro to the top subvolume and every nested one", func() {
			runner.SideEffect = func(command string, args ...string) ([]byte, error) {
				if command == "btrfs" && len(args) > 0 && args[0] == "subvolume" && args[1] == "show" {
					return []byte("deployments/hammer-x\n"), nil
				}
				if command == "btrfs" && len(args) > 0 && args[0] == "subvolume" && args[1] == "list" {
					return []byte("ID 302 gen 481 top level 5 path deployments/hammer-x/var\n"), nil
				}
				return nil, nil
			}

			Expect(btrfs.SetReadOnlyRecursive(s, "/top/deployments/hammer-x", true)).To(Succeed())
			Expect(runner.IncludesCmds([][]string{
				{"btrfs", "property", "set", "-ts", "/top/deployments/hammer-x", "ro", "true"},
				{"btrfs", "property", "set", "-ts", "/top/deployments/hammer-x/var", "ro", "true"},
			})).To(Succeed())
		})
	})
})
