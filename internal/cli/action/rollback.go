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
	"strconv"

	"github.com/urfave/cli/v2"
)

// Rollback switches to the Nth-most-recent deployment before current,
// defaulting to 1 (the immediately preceding one) when no argument is
// given.
func Rollback(ctx *cli.Context) error {
	n := 1
	if arg := ctx.Args().First(); arg != "" {
		parsed, err := strconv.Atoi(arg)
		if err != nil || parsed < 1 {
			return fmt.Errorf("rollback requires a positive integer, got %q", arg)
		}
		n = parsed
	}

	s, e, err := engineFrom(ctx)
	if err != nil {
		return err
	}

	s.Logger().Info("rolling back %d deployment(s)", n)
	if err := e.Rollback(n); err != nil {
		return reportErr(s, "rollback", err)
	}

	s.Logger().Info("rollback complete")
	return nil
}
