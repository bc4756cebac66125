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

package deployment_test

import (
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hackeros/hammer/pkg/deployment"
	"github.com/hackeros/hammer/pkg/log"
	"github.com/hackeros/hammer/pkg/sys"
	sysmock "github.com/hackeros/hammer/pkg/sys/mock"
)

func TestDeploymentSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Deployment test suite")
}

var _ = Describe("NewName", Label("deployment"), func() {
	It("produces a lexically sortable, UTC-based name", func() {
		t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		t2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
		n1 := deployment.NewName(t1)
		n2 := deployment.NewName(t2)
		Expect(n1).To(Equal("hammer-20240101000000"))
		Expect(n1 < n2).To(BeTrue())
	})
})

var _ = Describe("Store", Label("deployment"), func() {
	var runner *sysmock.Runner
	var s *sys.System
	var fs sys.FS
	var root string
	var cleanup func()
	var st *deployment.Store

	BeforeEach(func() {
		runner = sysmock.NewRunner()
		fs, root, cleanup = sysmock.TestFS(nil)
		var err error
		s, err = sys.NewSystem(sys.WithRunner(runner), sys.WithFS(fs), sys.WithLogger(log.New(log.WithDiscardAll())))
		Expect(err).NotTo(HaveOccurred())
		st = deployment.NewStore(s, root, "/deployments")
	})

	AfterEach(func() {
		cleanup()
	})

	It("creates, seals and records a deployment as current", func() {
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			switch {
			case command == "btrfs" && len(args) > 1 && args[1] == "snapshot":
				return nil, fs.Mkdir(args[len(args)-1], 0755)
			case command == "btrfs" && len(args) > 0 && args[0] == "subvolume" && args[1] == "show":
				return []byte("deployments/hammer-1\n\tName: \t\t\thammer-1\n\tSubvolume ID: \t\t42\n"), nil
			case command == "btrfs" && len(args) > 0 && args[0] == "subvolume" && args[1] == "list":
				return []byte(""), nil
			default:
				return []byte(""), nil
			}
		}

		d, err := st.Create("hammer-1", root, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Meta.Status).To(Equal(deployment.StatusBuilding))

		d.Meta.SystemVersion = "abc123"
		Expect(st.Seal(d)).To(Succeed())
		Expect(d.Meta.Status).To(Equal(deployment.StatusReady))

		Expect(st.SetCurrent(d)).To(Succeed())
		Expect(d.Meta.Status).To(Equal(deployment.StatusCurrent))

		Expect(runner.IncludesCmds([][]string{
			{"btrfs", "subvolume", "snapshot", root, root + "/deployments/hammer-1"},
			{"btrfs", "property", "set", "-ts", root + "/deployments/hammer-1", "ro", "true"},
			{"btrfs", "subvolume", "set-default", "42"},
		})).To(Succeed())

		loaded, err := st.Load("hammer-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Meta.SystemVersion).To(Equal("abc123"))
		Expect(loaded.Meta.Status).To(Equal(deployment.StatusCurrent))
	})

	It("lists deployments in chronological order", func() {
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			if command == "btrfs" && len(args) > 1 && args[1] == "snapshot" {
				return nil, fs.Mkdir(args[len(args)-1], 0755)
			}
			return []byte("deployments/x\n\tSubvolume ID: \t\t1\n"), nil
		}
		_, err := st.Create("hammer-20240102000000", root, true)
		Expect(err).NotTo(HaveOccurred())
		_, err = st.Create("hammer-20240101000000", root, true)
		Expect(err).NotTo(HaveOccurred())

		for _, name := range []string{"hammer-20240102000000", "hammer-20240101000000"} {
			d, err := st.Load(name)
			Expect(err).NotTo(HaveOccurred())
			d.Meta.Status = deployment.StatusReady
			Expect(st.WriteMetadata(d)).To(Succeed())
		}

		list, err := st.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].Name).To(Equal("hammer-20240101000000"))
		Expect(list[1].Name).To(Equal("hammer-20240102000000"))
	})

	It("retains current, previous and building deployments during cleanup", func() {
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			if command == "btrfs" && len(args) > 1 && args[1] == "snapshot" {
				return nil, fs.Mkdir(args[len(args)-1], 0755)
			}
			return []byte("deployments/x\n\tSubvolume ID: \t\t1\n"), nil
		}

		statuses := map[string]deployment.Status{
			"hammer-20240101000000": deployment.StatusBroken,
			"hammer-20240102000000": deployment.StatusBroken,
			"hammer-20240103000000": deployment.StatusPrevious,
			"hammer-20240104000000": deployment.StatusCurrent,
		}
		for name, status := range statuses {
			_, err := st.Create(name, root, true)
			Expect(err).NotTo(HaveOccurred())
			d, err := st.Load(name)
			Expect(err).NotTo(HaveOccurred())
			d.Meta.Status = status
			Expect(st.WriteMetadata(d)).To(Succeed())
		}

		removed, err := st.Cleanup(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(ConsistOf("hammer-20240101000000", "hammer-20240102000000"))

		var deleted []string
		for _, cmd := range runner.GetCmds() {
			if strings.Join(cmd, " ") == "" {
				continue
			}
			if len(cmd) >= 3 && cmd[0] == "btrfs" && cmd[1] == "subvolume" && cmd[2] == "delete" {
				deleted = append(deleted, cmd[len(cmd)-1])
			}
		}
		Expect(deleted).To(HaveLen(2))
	})

	It("shrinks the total deployment count down to retain, not just the disposable ones", func() {
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			if command == "btrfs" && len(args) > 1 && args[1] == "snapshot" {
				return nil, fs.Mkdir(args[len(args)-1], 0755)
			}
			return []byte("deployments/x\n\tSubvolume ID: \t\t1\n"), nil
		}

		statuses := map[string]deployment.Status{
			"hammer-20240101000000": deployment.StatusBroken,
			"hammer-20240102000000": deployment.StatusBroken,
			"hammer-20240103000000": deployment.StatusBroken,
			"hammer-20240104000000": deployment.StatusBroken,
			"hammer-20240105000000": deployment.StatusBroken,
			"hammer-20240106000000": deployment.StatusBroken,
			"hammer-20240107000000": deployment.StatusPrevious,
			"hammer-20240108000000": deployment.StatusCurrent,
		}
		for name, status := range statuses {
			_, err := st.Create(name, root, true)
			Expect(err).NotTo(HaveOccurred())
			d, err := st.Load(name)
			Expect(err).NotTo(HaveOccurred())
			d.Meta.Status = status
			Expect(st.WriteMetadata(d)).To(Succeed())
		}

		removed, err := st.Cleanup(5)
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(HaveLen(3))
		Expect(removed).To(ConsistOf(
			"hammer-20240101000000", "hammer-20240102000000", "hammer-20240103000000",
		))
	})
})
