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

import "github.com/hackeros/hammer/pkg/sys"

var _ sys.Syscall = (*Syscall)(nil)

// Syscall is a no-op fake of sys.Syscall for tests that never actually
// cross into a chroot.
type Syscall struct {
	ChrootCalls []string
	ChdirCalls  []string
	ChrootErr   error
	ChdirErr    error
}

func (s *Syscall) Chroot(path string) error {
	s.ChrootCalls = append(s.ChrootCalls, path)
	return s.ChrootErr
}

func (s *Syscall) Chdir(path string) error {
	s.ChdirCalls = append(s.ChdirCalls, path)
	return s.ChdirErr
}
