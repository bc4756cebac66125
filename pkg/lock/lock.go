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

// Package lock implements the engine's process-wide mutual exclusion:
// a sentinel file whose atomic creation is the lock, and whose removal is
// the release. Unlike a plain existence check, creation uses O_CREAT|O_EXCL
// so two processes racing to acquire the lock cannot both observe it absent
// and both proceed.
package lock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Lock holds a process-wide sentinel file at path.
type Lock struct {
	path string
}

// ErrHeld is wrapped into the error returned by Acquire when the lock is
// already held by another invocation.
var ErrHeld = fmt.Errorf("a transaction is already in progress")

// New returns a Lock bound to the given sentinel file path. It does not
// acquire the lock.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Acquire atomically creates the sentinel file, writing the calling
// process's PID and the verb name into it for diagnostics. It fails fast
// with ErrHeld if the file already exists.
func (l *Lock) Acquire(verb string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrHeld, l.describeHolder())
		}
		return fmt.Errorf("acquiring lock %s: %w", l.path, err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%d\n%s\n", os.Getpid(), verb)
	return err
}

// Release removes the sentinel file. Removing an already-absent lock file
// is not an error, since cleanup may race a process that already exited.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lock %s: %w", l.path, err)
	}
	return nil
}

// Held reports whether the sentinel file currently exists.
func (l *Lock) Held() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Holder returns the PID and verb recorded by whoever holds the lock, for
// `status`/`cleanup` diagnostics. Returns ok=false if the lock is not held
// or its content cannot be parsed.
func (l *Lock) Holder() (pid int, verb string, ok bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, "", false
	}
	lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	if len(lines) < 2 {
		return 0, "", false
	}
	pid, err = strconv.Atoi(lines[0])
	if err != nil {
		return 0, "", false
	}
	return pid, lines[1], true
}

func (l *Lock) describeHolder() string {
	pid, verb, ok := l.Holder()
	if !ok {
		return fmt.Sprintf("lock file %s exists", l.path)
	}
	return fmt.Sprintf("held by pid %d running %q", pid, verb)
}
