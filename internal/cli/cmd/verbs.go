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

package cmd

import (
	"github.com/urfave/cli/v2"
)

// RefreshFlags holds the flags accepted by the refresh command. force
// bypasses the fingerprint idempotency short-circuit; preview-etc is
// reserved for a future diff-before-apply mode and is currently a no-op,
// accepted so existing operator scripts don't break.
type RefreshFlags struct {
	Force      bool
	PreviewEtc bool
}

var RefreshArgs RefreshFlags

func NewInitCommand(action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Bootstrap the first deployment from the running root",
		Action: action,
	}
}

func NewInstallCommand(action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "Install a package into a new deployment",
		ArgsUsage: "<package>",
		Action:    action,
	}
}

func NewRemoveCommand(action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a package in a new deployment",
		ArgsUsage: "<package>",
		Action:    action,
	}
}

func NewRefreshCommand(action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:      "refresh",
		Aliases:   []string{"update"},
		Usage:     "Apply a full distribution upgrade in a new deployment",
		ArgsUsage: "[--force]",
		Action:    action,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "force",
				Usage:       "Run the transaction even if the fingerprint would not change",
				Destination: &RefreshArgs.Force,
			},
			&cli.BoolFlag{
				Name:        "preview-etc",
				Usage:       "Reserved for previewing configuration-file changes before applying",
				Destination: &RefreshArgs.PreviewEtc,
			},
		},
	}
}

func NewLayerCommand(action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:      "layer",
		Usage:     "Stage a local package file into a new deployment",
		ArgsUsage: "<path>",
		Action:    action,
	}
}

func NewSwitchCommand(action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:      "switch",
		Usage:     "Switch the current deployment to the named or previous one",
		ArgsUsage: "[deployment]",
		Action:    action,
	}
}

func NewRollbackCommand(action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:      "rollback",
		Usage:     "Switch to the Nth-most-recent deployment before current",
		ArgsUsage: "[n]",
		Action:    action,
	}
}

func NewCleanupCommand(action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:   "cleanup",
		Usage:  "Clear stale transaction state and garbage-collect old deployments",
		Action: action,
	}
}

func NewStatusCommand(action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Print the current deployment and its metadata",
		Action: action,
	}
}

func NewListCommand(action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "Print every deployment and its metadata",
		Action: action,
	}
}
