// Scalelabel Core
// Copyright (c) 2026 The Scalelabel Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Scalelabel Core.
//
// Scalelabel Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Scalelabel Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Scalelabel Core.  If not, see <http://www.gnu.org/licenses/>.

// Package printer hands finished label images to the thermal printer via
// an external driver CLI, with retry handling for a busy USB device.
package printer

import (
	"context"
	"os/exec"
	"strings"
)

// CommandExecutor provides an abstraction over exec.Command for testability.
// This allows the driver CLI to be mocked in tests without a real printer.
type CommandExecutor interface {
	// Run executes a command, waits for completion and returns the
	// command's diagnostic output alongside any error.
	Run(ctx context.Context, name string, args ...string) (output string, err error)
}

// RealCommandExecutor uses actual exec.Command to execute system commands.
// This is the production implementation used in normal operation.
type RealCommandExecutor struct{}

// Run executes a system command using exec.CommandContext. The driver CLI
// writes its failure reasons to stderr, so stderr is preferred as the
// diagnostic output and stdout is the fallback.
func (*RealCommandExecutor) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	out := strings.TrimSpace(stderr.String())
	if out == "" {
		out = strings.TrimSpace(stdout.String())
	}
	return out, err
}
