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

// Package fingerprint computes the content-addressed "system_version" used
// to short-circuit a no-op refresh: a SHA-256 over the canonical package
// list, sorted staged override names, and the upstream release file
// content, so two deployments built from the same inputs hash identically
// regardless of the order packages were requested in.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Compute returns the hex-encoded SHA-256 fingerprint over packageList (the
// canonical, newline-separated `dpkg -l`-style package manifest),
// overridePackages (packages explicitly layered on top of the base image),
// and releaseFile (the upstream suite's Release file content, empty if not
// fetched). overridePackages is sorted before hashing so fingerprinting is
// independent of the order packages were named on the command line.
func Compute(packageList []byte, overridePackages []string, releaseFile []byte) string {
	sorted := append([]string(nil), overridePackages...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write(packageList)
	h.Write([]byte{0})
	for _, pkg := range sorted {
		h.Write([]byte(pkg))
		h.Write([]byte{0})
	}
	h.Write(releaseFile)

	return hex.EncodeToString(h.Sum(nil))
}
