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

// Package herrors defines the engine's abstract error taxonomy: every error
// a transaction can fail with is one of Precondition, ExternalTool,
// Filesystem, Transaction or Fatal, each wrapping its underlying cause so
// the CLI boundary can print a single-line reason while the log file keeps
// the full chain.
package herrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why a transaction failed.
type Kind string

const (
	// KindPrecondition covers checks that must hold before any mutation:
	// not running as root, target not Btrfs, current missing/not read-only,
	// lock already held.
	KindPrecondition Kind = "precondition"
	// KindExternalTool covers a subprocess (btrfs, mount, apt, dpkg,
	// update-grub, update-initramfs) exiting nonzero.
	KindExternalTool Kind = "external_tool"
	// KindFilesystem covers metadata read/write, symlink operations, and
	// directory walks failing for reasons other than a subprocess failing.
	KindFilesystem Kind = "filesystem"
	// KindTransaction covers verb-specific idempotency short-circuits, e.g.
	// "package already installed" or "fingerprint unchanged".
	KindTransaction Kind = "transaction"
	// KindFatal covers invariant violations that indicate the engine's own
	// bookkeeping is inconsistent, e.g. a deployment marked ready without
	// the ro property set.
	KindFatal Kind = "fatal"
)

// Error wraps a cause with a taxonomy Kind and enough context to build the
// CLI's single-line diagnostic and the log file's full entry.
type Error struct {
	Kind   Kind
	Op     string // the operation being attempted, e.g. "install htop"
	Detail string // extra context, e.g. a stderr tail
	cause  error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Summary returns the single-line, user-facing reason: operation, kind and
// the cause's message, without the Detail (e.g. stderr tail) that Error
// includes.
func (e *Error) Summary() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.cause)
}

func newError(kind Kind, op string, detail string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, cause: errors.WithStack(cause)}
}

// Precondition wraps cause as a precondition failure.
func Precondition(op string, cause error) *Error {
	return newError(KindPrecondition, op, "", cause)
}

// ExternalTool wraps cause as a failed subprocess, with stderrTail captured
// for the log file.
func ExternalTool(op, stderrTail string, cause error) *Error {
	return newError(KindExternalTool, op, stderrTail, cause)
}

// Filesystem wraps cause as a filesystem operation failure.
func Filesystem(op string, cause error) *Error {
	return newError(KindFilesystem, op, "", cause)
}

// Transaction wraps cause as a verb-specific transaction-level failure,
// such as an idempotency short-circuit.
func Transaction(op string, cause error) *Error {
	return newError(KindTransaction, op, "", cause)
}

// Fatal wraps cause as an invariant violation.
func Fatal(op string, cause error) *Error {
	return newError(KindFatal, op, "", cause)
}

// As reports whether err (or something it wraps) is a *Error of the given
// kind, returning it if so.
func As(err error, kind Kind) (*Error, bool) {
	var herr *Error
	if !errors.As(err, &herr) {
		return nil, false
	}
	return herr, herr.Kind == kind
}
