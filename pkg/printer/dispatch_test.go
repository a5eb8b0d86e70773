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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	output string
	err    error
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   [][]string
	results []fakeResult
}

func (f *fakeExecutor) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)

	idx := len(f.calls) - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	r := f.results[idx]
	return r.output, r.err
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testSettings() Settings {
	return Settings{
		Model:      "QL-810W",
		Backend:    "pyusb",
		Identifier: "usb://0x04f9:0x209c",
		MediaSize:  "62x100",
	}
}

func newTestDispatcher(exec CommandExecutor, clock clockwork.Clock) *Dispatcher {
	return &Dispatcher{executor: exec, clock: clock, settings: testSettings()}
}

func TestDispatch_BuildsDriverArgs(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{results: []fakeResult{{}}}
	d := newTestDispatcher(exec, clockwork.NewFakeClock())

	require.NoError(t, d.Dispatch(context.Background(), "/tmp/label.png", true))

	require.Len(t, exec.calls, 1)
	assert.Equal(t, []string{
		"brother_ql",
		"-b", "pyusb",
		"-m", "QL-810W",
		"-p", "usb://0x04f9:0x209c",
		"print",
		"-l", "62x100",
		"/tmp/label.png",
	}, exec.calls[0])
}

func TestDispatch_NoCutFlag(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{results: []fakeResult{{}}}
	d := newTestDispatcher(exec, clockwork.NewFakeClock())

	require.NoError(t, d.Dispatch(context.Background(), "/tmp/label.png", false))

	require.Len(t, exec.calls, 1)
	assert.Contains(t, exec.calls[0], "--no-cut")
	assert.Equal(t, "/tmp/label.png", exec.calls[0][len(exec.calls[0])-1],
		"image path stays the final argument")
}

func TestDispatch_RetriesWhileBusy(t *testing.T) {
	t.Parallel()

	busy := fakeResult{output: "usb.core.USBError: [Errno 16] Resource busy", err: errors.New("exit status 1")}
	exec := &fakeExecutor{results: []fakeResult{busy, busy, {}}}
	clock := clockwork.NewFakeClock()
	d := newTestDispatcher(exec, clock)

	done := make(chan error, 1)
	go func() {
		done <- d.Dispatch(context.Background(), "/tmp/label.png", true)
	}()

	// Delay grows linearly with the attempt number.
	clock.BlockUntil(1)
	clock.Advance(retryBaseDelay)
	clock.BlockUntil(1)
	clock.Advance(2 * retryBaseDelay)

	require.NoError(t, <-done)
	assert.Equal(t, 3, exec.callCount())
}

func TestDispatch_BusyExhaustsAttempts(t *testing.T) {
	t.Parallel()

	busy := fakeResult{output: "resource busy", err: errors.New("exit status 1")}
	exec := &fakeExecutor{results: []fakeResult{busy}}
	clock := clockwork.NewFakeClock()
	d := newTestDispatcher(exec, clock)

	done := make(chan error, 1)
	go func() {
		done <- d.Dispatch(context.Background(), "/tmp/label.png", true)
	}()

	for attempt := 1; attempt < retryAttempts; attempt++ {
		clock.BlockUntil(1)
		clock.Advance(retryBaseDelay * time.Duration(attempt))
	}

	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Equal(t, retryAttempts, exec.callCount())
}

func TestDispatch_HardFailureDoesNotRetry(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{results: []fakeResult{
		{output: "no printer found at usb://0x04f9:0x209c", err: errors.New("exit status 2")},
	}}
	d := newTestDispatcher(exec, clockwork.NewFakeClock())

	err := d.Dispatch(context.Background(), "/tmp/label.png", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no printer found")
	assert.Equal(t, 1, exec.callCount())
}

func TestIsDeviceBusy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		err    error
		want   bool
	}{
		{name: "resource busy in output", output: "open failed: Resource busy", want: true},
		{name: "errno in output", output: "[Errno 16] device claimed", want: true},
		{name: "pyusb exception type", output: "usb.core.USBError: timeout", want: true},
		{name: "busy in error only", err: errors.New("RESOURCE BUSY"), want: true},
		{name: "unrelated failure", output: "no such device", err: errors.New("exit status 1"), want: false},
		{name: "empty", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, IsDeviceBusy(tt.output, tt.err))
		})
	}
}
