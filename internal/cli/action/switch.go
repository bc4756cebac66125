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

package action

import (
	"github.com/urfave/cli/v2"
)

// Switch moves current to the named deployment, or to whoever the
// previous symlink names when no argument is given.
func Switch(ctx *cli.Context) error {
	name := ctx.Args().First()

	s, e, err := engineFrom(ctx)
	if err != nil {
		return err
	}

	s.Logger().Info("switching to %q", name)
	if err := e.Switch(name); err != nil {
		return reportErr(s, "switch", err)
	}

	s.Logger().Info("switch complete")
	return nil
}
