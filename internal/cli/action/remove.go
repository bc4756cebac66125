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
	"fmt"

	"github.com/urfave/cli/v2"
)

func Remove(ctx *cli.Context) error {
	pkg := ctx.Args().First()
	if pkg == "" {
		return fmt.Errorf("remove requires a package name")
	}

	s, e, err := engineFrom(ctx)
	if err != nil {
		return err
	}

	s.Logger().Info("removing %s", pkg)
	if err := e.Remove(pkg); err != nil {
		return reportErr(s, fmt.Sprintf("remove %s", pkg), err)
	}

	s.Logger().Info("removed %s", pkg)
	return nil
}
