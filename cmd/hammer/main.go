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

package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hackeros/hammer/internal/cli/action"
	"github.com/hackeros/hammer/internal/cli/app"
	"github.com/hackeros/hammer/internal/cli/cmd"
	"github.com/hackeros/hammer/internal/cli/version"
)

func main() {
	commands := []*cli.Command{
		cmd.NewInitCommand(action.Init),
		cmd.NewInstallCommand(action.Install),
		cmd.NewRemoveCommand(action.Remove),
		cmd.NewRefreshCommand(action.Refresh),
		cmd.NewLayerCommand(action.Layer),
		cmd.NewSwitchCommand(action.Switch),
		cmd.NewRollbackCommand(action.Rollback),
		cmd.NewCleanupCommand(action.Cleanup),
		cmd.NewStatusCommand(action.Status),
		cmd.NewListCommand(action.List),
	}

	a := app.New(cmd.Usage, cmd.GlobalFlags(), cmd.Setup, cmd.Teardown, commands...)
	a.Commands = append(a.Commands, version.NewVersionCommand(a.Name))

	if err := a.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
