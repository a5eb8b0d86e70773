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

package printer

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	driverCommand = "brother_ql"

	// A busy USB device recovers within a print or two, so a handful of
	// linearly spaced retries covers it without stalling the control loop
	// for long.
	retryAttempts  = 4
	retryBaseDelay = 350 * time.Millisecond
)

// busyMarkers identify a transient USB claim failure in the driver's
// output. Anything else is treated as a hard failure.
var busyMarkers = []string{
	"resource busy",
	"errno 16",
	"usb.core.usberror",
}

// IsDeviceBusy reports whether driver output describes a transiently busy
// device worth retrying.
func IsDeviceBusy(output string, err error) bool {
	combined := strings.ToLower(output)
	if err != nil {
		combined += " " + strings.ToLower(err.Error())
	}
	for _, marker := range busyMarkers {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}

// Settings is the fixed identity of the target printer.
type Settings struct {
	Model      string
	Backend    string
	Identifier string
	MediaSize  string
}

// Dispatcher sends label images to the thermal printer through the driver
// CLI, retrying when the USB device is momentarily claimed by a previous
// job.
type Dispatcher struct {
	executor CommandExecutor
	clock    clockwork.Clock
	settings Settings
}

func NewDispatcher(settings Settings) *Dispatcher {
	return NewDispatcherWithExecutor(settings, &RealCommandExecutor{}, clockwork.NewRealClock())
}

// NewDispatcherWithExecutor injects the executor and clock, for tests.
func NewDispatcherWithExecutor(settings Settings, executor CommandExecutor, clock clockwork.Clock) *Dispatcher {
	return &Dispatcher{
		executor: executor,
		clock:    clock,
		settings: settings,
	}
}

// SavePNG writes a rendered label to disk, creating the archive directory
// on demand.
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create label dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create label file: %w", err)
	}

	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode label: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close label file: %w", err)
	}
	return nil
}

// Dispatch prints a saved label image. Busy-device failures are retried
// with a linearly growing delay; any other failure aborts immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, imagePath string, cutPaper bool) error {
	args := []string{
		"-b", d.settings.Backend,
		"-m", d.settings.Model,
		"-p", d.settings.Identifier,
		"print",
		"-l", d.settings.MediaSize,
	}
	if !cutPaper {
		args = append(args, "--no-cut")
	}
	args = append(args, imagePath)

	var lastOutput string
	var lastErr error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		output, err := d.executor.Run(ctx, driverCommand, args...)
		if err == nil {
			log.Info().Msgf("printed label: %s", imagePath)
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("print cancelled: %w", ctx.Err())
		}

		if !IsDeviceBusy(output, err) {
			if output != "" {
				return fmt.Errorf("print failed: %w: %s", err, output)
			}
			return fmt.Errorf("print failed: %w", err)
		}

		lastOutput = output
		lastErr = err
		log.Warn().Msgf("printer busy (attempt %d/%d): %s", attempt, retryAttempts, output)

		if attempt < retryAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("print cancelled: %w", ctx.Err())
			case <-d.clock.After(retryBaseDelay * time.Duration(attempt)):
			}
		}
	}

	return fmt.Errorf("printer busy after %d attempts: %w: %s",
		retryAttempts, lastErr, lastOutput)
}
