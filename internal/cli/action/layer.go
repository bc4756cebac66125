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

func Layer(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("layer requires a path to a local package file")
	}

	s, e, err := engineFrom(ctx)
	if err != nil {
		return err
	}

	s.Logger().Info("layering %s", path)
	if err := e.Layer(path); err != nil {
		return reportErr(s, fmt.Sprintf("layer %s", path), err)
	}

	s.Logger().Info("layered %s", path)
	return nil
}
