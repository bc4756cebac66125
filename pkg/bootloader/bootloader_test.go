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
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hackeros/hammer/pkg/bootloader"
	"github.com/hackeros/hammer/pkg/log"
	"github.com/hackeros/hammer/pkg/sys"
	sysmock "github.com/hackeros/hammer/pkg/sys/mock"
)

func TestBootloaderSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Bootloader test suite")
}

var _ = Describe("Bootloader tests", Label("bootloader", "grub", "none"), func() {
	var s *sys.System
	var cleanup func()

	BeforeEach(func() {
		fs, _, cl := sysmock.TestFS(nil)
		cleanup = cl
		var err error
		s, err = sys.NewSystem(sys.WithFS(fs), sys.WithLogger(log.New(log.WithDiscardAll())))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	It("creates a new bootloader for every known name", func() {
		for _, name := range []string{bootloader.BootNone, bootloader.BootGrub} {
			b, err := bootloader.New(name, s)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).NotTo(BeNil())
		}
	})

	It("returns unsupported error for an unknown bootloader", func() {
		b, err := bootloader.New("bogus", s)
		Expect(b).To(BeNil())
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, errors.ErrUnsupported)).To(BeTrue(), err.Error())
	})

	It("None.Regenerate is a no-op", func() {
		n := bootloader.NewNone(s)
		Expect(n.Regenerate(nil)).To(Succeed())
	})
})
