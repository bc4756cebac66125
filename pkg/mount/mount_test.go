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

package mount_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hackeros/hammer/pkg/log"
	"github.com/hackeros/hammer/pkg/mount"
	"github.com/hackeros/hammer/pkg/sys"
	sysmock "github.com/hackeros/hammer/pkg/sys/mock"
)

func TestMountSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Mount test suite")
}

var _ = Describe("EnsureTopMounted", Label("mount"), func() {
	var runner *sysmock.Runner
	var mounter *sysmock.Mounter
	var s *sys.System
	var fs sys.FS
	var cleanup func()

	BeforeEach(func() {
		runner = sysmock.NewRunner()
		mounter = sysmock.NewMounter()
		fs, _, cleanup = sysmock.TestFS(nil)
		var err error
		s, err = sys.NewSystem(sys.WithRunner(runner), sys.WithMounter(mounter), sys.WithFS(fs), sys.WithLogger(log.New(log.WithDiscardAll())))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	It("mounts the top subvolume when not already mounted", func() {
		Expect(mount.EnsureTopMounted(s, "/dev/sda2", "/mnt/top")).To(Succeed())
		Expect(runner.IncludesCmds([][]string{
			{"mount", "-o", "subvol=/", "/dev/sda2", "/mnt/top"},
		})).To(Succeed())
	})

	It("is a no-op when already mounted", func() {
		Expect(mounter.Mount("/dev/sda2", "/mnt/top", "btrfs", []string{"subvol=/"})).To(Succeed())
		runner.ClearCmds()

		Expect(mount.EnsureTopMounted(s, "/dev/sda2", "/mnt/top")).To(Succeed())
		Expect(runner.GetCmds()).To(BeEmpty())
	})
})

var _ = Describe("ChrootMounts", Label("mount"), func() {
	var runner *sysmock.Runner
	var mounter *sysmock.Mounter
	var s *sys.System
	var fs sys.FS
	var root string
	var cleanup func()

	BeforeEach(func() {
		runner = sysmock.NewRunner()
		mounter = sysmock.NewMounter()
		fs, root, cleanup = sysmock.TestFS(nil)
		var err error
		s, err = sys.NewSystem(sys.WithRunner(runner), sys.WithMounter(mounter), sys.WithFS(fs), sys.WithLogger(log.New(log.WithDiscardAll())))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	It("bind mounts every default path and unmounts in reverse on Close", func() {
		cm, err := mount.NewChrootMounts(s, root)
		Expect(err).NotTo(HaveOccurred())
		mounts, err := mounter.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(mounts).To(HaveLen(len(mount.DefaultBinds)))

		Expect(cm.Close()).To(Succeed())
		mounts, err = mounter.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(mounts).To(BeEmpty())
	})
})
