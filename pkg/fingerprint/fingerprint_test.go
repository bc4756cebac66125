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

package fingerprint_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hackeros/hammer/pkg/fingerprint"
)

func TestFingerprintSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Fingerprint test suite")
}

var _ = Describe("Compute", Label("fingerprint"), func() {
	It("is stable for identical inputs", func() {
		a := fingerprint.Compute([]byte("htop 3.2\n"), []string{"vim", "curl"}, []byte("release"))
		b := fingerprint.Compute([]byte("htop 3.2\n"), []string{"vim", "curl"}, []byte("release"))
		Expect(a).To(Equal(b))
	})

	It("is independent of override package order", func() {
		a := fingerprint.Compute([]byte("htop 3.2\n"), []string{"vim", "curl"}, []byte("release"))
		b := fingerprint.Compute([]byte("htop 3.2\n"), []string{"curl", "vim"}, []byte("release"))
		Expect(a).To(Equal(b))
	})

	It("changes when the package list changes", func() {
		a := fingerprint.Compute([]byte("htop 3.2\n"), nil, nil)
		b := fingerprint.Compute([]byte("htop 3.3\n"), nil, nil)
		Expect(a).NotTo(Equal(b))
	})

	It("changes when the release file changes", func() {
		a := fingerprint.Compute([]byte("htop 3.2\n"), nil, []byte("release-a"))
		b := fingerprint.Compute([]byte("htop 3.2\n"), nil, []byte("release-b"))
		Expect(a).NotTo(Equal(b))
	})
})
