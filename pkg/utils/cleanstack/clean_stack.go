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

// Package cleanstack provides a LIFO stack of cleanup callbacks, used by the
// transaction controller to unwind mounts, chroots and snapshots in the
// opposite order they were created, regardless of where a step fails.
package cleanstack

import "errors"

type jobKind int

const (
	kindAlways jobKind = iota
	kindErrorOnly
	kindSuccessOnly
)

// Job wraps a single pushed cleanup callback.
type Job struct {
	fn func() error
}

// Run executes the job's callback.
func (j *Job) Run() error {
	return j.fn()
}

// CleanStack is a LIFO stack of cleanup callbacks.
type CleanStack struct {
	jobs []entry
}

type entry struct {
	kind jobKind
	fn   func() error
}

// NewCleanStack returns an empty CleanStack.
func NewCleanStack() *CleanStack {
	return &CleanStack{}
}

// Push adds a callback that always runs on Cleanup.
func (c *CleanStack) Push(fn func() error) {
	c.jobs = append(c.jobs, entry{kind: kindAlways, fn: fn})
}

// PushErrorOnly adds a callback that only runs on Cleanup if an error is
// already in flight at the point this job is reached.
func (c *CleanStack) PushErrorOnly(fn func() error) {
	c.jobs = append(c.jobs, entry{kind: kindErrorOnly, fn: fn})
}

// PushSuccessOnly adds a callback that only runs on Cleanup if no error is
// in flight at the point this job is reached.
func (c *CleanStack) PushSuccessOnly(fn func() error) {
	c.jobs = append(c.jobs, entry{kind: kindSuccessOnly, fn: fn})
}

// Pop removes and returns the most recently pushed job, or nil if the stack
// is empty. Callers normally use Cleanup instead; Pop exists for callers
// that need to run a single rollback step outside of the full unwind.
func (c *CleanStack) Pop() *Job {
	if len(c.jobs) == 0 {
		return nil
	}
	last := c.jobs[len(c.jobs)-1]
	c.jobs = c.jobs[:len(c.jobs)-1]
	return &Job{fn: last.fn}
}

// Cleanup runs every remaining job in LIFO order. err is the error already
// in flight, if any, before cleanup begins; PushErrorOnly/PushSuccessOnly
// jobs are gated against the running error state as cleanup proceeds, so a
// cleanup failure partway through can still trigger a later error-only job.
// Any error returned by a job is joined onto the running error and included
// in the final return value.
func (c *CleanStack) Cleanup(err error) error {
	for len(c.jobs) > 0 {
		e := c.jobs[len(c.jobs)-1]
		c.jobs = c.jobs[:len(c.jobs)-1]

		switch e.kind {
		case kindErrorOnly:
			if err == nil {
				continue
			}
		case kindSuccessOnly:
			if err != nil {
				continue
			}
		}

		if jobErr := e.fn(); jobErr != nil {
			err = errors.Join(err, jobErr)
		}
	}
	return err
}
