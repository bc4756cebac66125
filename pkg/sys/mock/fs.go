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

package mock

import (
	"os"
	"path/filepath"

	"github.com/hackeros/hammer/pkg/sys"
	"github.com/hackeros/hammer/pkg/sys/vfs"
)

// TestFS builds a real, temp-dir-rooted sys.FS preloaded with files, and
// returns the FS, its root directory, and a cleanup function. Tests use a
// real filesystem rather than an in-memory fake so Btrfs/chroot-adjacent
// path handling behaves identically to production.
func TestFS(files map[string]string) (sys.FS, string, func()) {
	root, err := os.MkdirTemp("", "hammer-test-fs-")
	if err != nil {
		panic(err)
	}

	for path, content := range files {
		full := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			panic(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			panic(err)
		}
	}

	return vfs.OSFS(), root, func() { _ = os.RemoveAll(root) }
}
