/*
Copyright © 2022 - 2025 SUSE LLC

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

package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/hackeros/hammer/pkg/log"
)

type run struct {
	logger log.Logger
}

type RunOption func(r *run)

func WithLogger(l log.Logger) RunOption {
	return func(r *run) {
		r.logger = l
	}
}

func NewRunner(opts ...RunOption) *run {
	r := &run{}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r run) InitCmd(command string, args ...string) *exec.Cmd {
	return exec.Command(command, args...)
}

func (r run) RunCmd(cmd *exec.Cmd) ([]byte, error) {
	return cmd.CombinedOutput()
}

func (r run) Run(command string, args ...string) ([]byte, error) {
	return r.RunEnv(command, nil, args...)
}

// RunEnv runs command with the given environment appended to the current
// process environment. Used to set DEBIAN_FRONTEND=noninteractive and
// similar for package manager invocations inside the chroot.
func (r run) RunEnv(command string, envs []string, args ...string) ([]byte, error) {
	r.debug(fmt.Sprintf("Running cmd: '%s %s'", command, strings.Join(args, " ")))
	cmd := r.InitCmd(command, args...)
	if len(envs) > 0 {
		cmd.Env = append(os.Environ(), envs...)
	}
	out, err := r.RunCmd(cmd)
	if err != nil {
		r.debug(fmt.Sprintf("'%s' command reported an error: %s", command, err.Error()))
		r.debug(fmt.Sprintf("'%s' command output: %s", command, out))
	}
	return out, err
}

func (r run) RunContext(ctx context.Context, command string, args ...string) ([]byte, error) {
	r.debug(fmt.Sprintf("Running cmd: '%s %s'", command, strings.Join(args, " ")))
	cmd := exec.CommandContext(ctx, command, args...)
	out, err := r.RunCmd(cmd)
	if err != nil {
		r.debug(fmt.Sprintf("'%s' command reported an error: %s", command, err.Error()))
	}
	return out, err
}

// RunContextParseOutput streams stdout/stderr line by line to the given
// handlers instead of buffering the whole output, used for long-running
// package manager operations where the caller wants to surface progress.
func (r run) RunContextParseOutput(ctx context.Context, stdoutH, stderrH func(line string), command string, args ...string) error {
	r.debug(fmt.Sprintf("Running cmd: '%s %s'", command, strings.Join(args, " ")))
	cmd := exec.CommandContext(ctx, command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	scan := func(rd io.Reader, handler func(string)) {
		scanner := bufio.NewScanner(rd)
		for scanner.Scan() {
			if handler != nil {
				handler(scanner.Text())
			}
		}
	}
	scan(stdout, stdoutH)
	scan(stderr, stderrH)

	return cmd.Wait()
}

// RunInteractive runs command with stdio inherited from the controlling
// terminal, for package manager steps that prompt or render progress when
// not forced into noninteractive mode.
func (r run) RunInteractive(command string, args ...string) error {
	r.debug(fmt.Sprintf("Running interactive cmd: '%s %s'", command, strings.Join(args, " ")))
	cmd := r.InitCmd(command, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (r run) debug(msg string) {
	if r.logger != nil {
		r.logger.Debug(msg)
	}
}
