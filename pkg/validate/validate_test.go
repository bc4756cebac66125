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

package validate_test

import (
	"syscall"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hackeros/hammer/pkg/deployment"
	"github.com/hackeros/hammer/pkg/herrors"
	"github.com/hackeros/hammer/pkg/log"
	"github.com/hackeros/hammer/pkg/sys"
	sysmock "github.com/hackeros/hammer/pkg/sys/mock"
	"github.com/hackeros/hammer/pkg/validate"
)

func TestValidateSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validate test suite")
}

var _ = Describe("PostMutation", Label("validate"), func() {
	var s *sys.System
	var fs sys.FS
	var root string
	var cleanup func()

	AfterEach(func() {
		if cleanup != nil {
			cleanup()
		}
	})

	It("fails when no kernel is present", func() {
		fs, root, cleanup = sysmock.TestFS(nil)
		var err error
		s, err = sys.NewSystem(sys.WithFS(fs), sys.WithLogger(log.New(log.WithDiscardAll())))
		Expect(err).NotTo(HaveOccurred())

		err = validate.PostMutation(s, root+"/deployments/hammer-1")
		Expect(err).To(HaveOccurred())
		herr, ok := herrors.As(err, herrors.KindFilesystem)
		Expect(ok).To(BeTrue())
		Expect(herr.Op).To(Equal("post-mutation validate"))
	})

	It("succeeds when a matching kernel and initrd are present", func() {
		fs, root, cleanup = sysmock.TestFS(map[string]string{
			"/deployments/hammer-1/boot/vmlinuz-6.1.0":    "kernel",
			"/deployments/hammer-1/boot/initrd.img-6.1.0": "initrd",
		})
		var err error
		s, err = sys.NewSystem(sys.WithFS(fs), sys.WithLogger(log.New(log.WithDiscardAll())))
		Expect(err).NotTo(HaveOccurred())

		Expect(validate.PostMutation(s, root+"/deployments/hammer-1")).To(Succeed())
	})
})

var _ = Describe("freeBytes via Preflight", Label("validate"), func() {
	It("rejects a non-root process", func() {
		fs, _, cleanup := sysmock.TestFS(nil)
		defer cleanup()
		s, err := sys.NewSystem(sys.WithFS(fs), sys.WithLogger(log.New(log.WithDiscardAll())))
		Expect(err).NotTo(HaveOccurred())

		err = validate.Preflight(s, "/")
		if err == nil {
			Skip("test process unexpectedly runs as root")
		}
		_, ok := herrors.As(err, herrors.KindPrecondition)
		Expect(ok).To(BeTrue())
	})

	It("syscall.Statfs, which the statfs hook defaults to, succeeds on /", func() {
		var st syscall.Statfs_t
		err := syscall.Statfs("/", &st)
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("CurrentDeployment", Label("validate"), func() {
	It("rejects a writable current deployment", func() {
		runner := sysmock.NewRunner()
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			return []byte("ro=false"), nil
		}
		fs, root, cleanup := sysmock.TestFS(nil)
		defer cleanup()
		s, err := sys.NewSystem(sys.WithRunner(runner), sys.WithFS(fs), sys.WithLogger(log.New(log.WithDiscardAll())))
		Expect(err).NotTo(HaveOccurred())

		d := &deployment.Deployment{Name: "hammer-1", Path: root + "/deployments/hammer-1"}
		err = validate.CurrentDeployment(s, d)
		Expect(err).To(HaveOccurred())
		_, ok := herrors.As(err, herrors.KindPrecondition)
		Expect(ok).To(BeTrue())
	})

	It("accepts a read-only current deployment", func() {
		runner := sysmock.NewRunner()
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			return []byte("ro=true"), nil
		}
		fs, root, cleanup := sysmock.TestFS(nil)
		defer cleanup()
		s, err := sys.NewSystem(sys.WithRunner(runner), sys.WithFS(fs), sys.WithLogger(log.New(log.WithDiscardAll())))
		Expect(err).NotTo(HaveOccurred())

		d := &deployment.Deployment{Name: "hammer-1", Path: root + "/deployments/hammer-1"}
		Expect(validate.CurrentDeployment(s, d)).To(Succeed())
	})
})
