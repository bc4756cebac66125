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
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hackeros/hammer/internal/cli/cmd"
)

func Refresh(ctx *cli.Context) error {
	s, e, err := engineFrom(ctx)
	if err != nil {
		return err
	}

	ctxCancel, stop := signal.NotifyContext(ctx.Context, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	force := cmd.RefreshArgs.Force
	s.Logger().Info("refreshing (force=%v)", force)

	upToDate, err := e.Refresh(ctxCancel, force)
	if err != nil {
		return reportErr(s, "refresh", err)
	}
	if upToDate {
		s.Logger().Info("already up to date")
		return nil
	}

	s.Logger().Info("refresh complete")
	return nil
}
