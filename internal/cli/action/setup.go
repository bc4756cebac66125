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

// Package action holds one function per CLI verb: each extracts flags and
// positional arguments, pulls the *sys.System and *config.Config that
// Setup stashed in the app metadata, builds a *transaction.Engine, and
// logs the engine's result with a single summary line before returning an
// exit code, matching the rest of the verb set.
package action

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/hackeros/hammer/pkg/config"
	"github.com/hackeros/hammer/pkg/sys"
	"github.com/hackeros/hammer/pkg/transaction"
)

func systemFrom(ctx *cli.Context) (*sys.System, error) {
	if ctx.App.Metadata == nil || ctx.App.Metadata["system"] == nil {
		return nil, fmt.Errorf("error setting up initial configuration")
	}
	return ctx.App.Metadata["system"].(*sys.System), nil
}

func configFrom(ctx *cli.Context) (*config.Config, error) {
	if ctx.App.Metadata == nil || ctx.App.Metadata["config"] == nil {
		return nil, fmt.Errorf("error setting up initial configuration")
	}
	return ctx.App.Metadata["config"].(*config.Config), nil
}

func engineFrom(ctx *cli.Context) (*sys.System, *transaction.Engine, error) {
	s, err := systemFrom(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := configFrom(ctx)
	if err != nil {
		return nil, nil, err
	}
	e, err := transaction.New(s, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("building transaction engine: %w", err)
	}
	return s, e, nil
}

// reportErr logs the single-line reason a failed verb produced, matching
// upgrade.go's "upgrade failed: %v" pattern, and returns it as a
// cli.ExitError so main's cli.App exits non-zero without urfave/cli also
// dumping a stack trace.
func reportErr(s *sys.System, op string, err error) error {
	s.Logger().Error("%s: %+v", op, err)
	return cli.Exit(err.Error(), 1)
}
