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

package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ScalelabelProject/scalelabel-core/pkg/config"
	"github.com/ScalelabelProject/scalelabel-core/pkg/database"
	"github.com/ScalelabelProject/scalelabel-core/pkg/printer"
	"github.com/ScalelabelProject/scalelabel-core/pkg/scale"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingExecutor pretends every driver invocation succeeds.
type countingExecutor struct {
	mu    sync.Mutex
	calls int
}

func (e *countingExecutor) Run(_ context.Context, _ string, _ ...string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return "", nil
}

func (e *countingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type coordFixture struct {
	coord        *Coordinator
	state        *State
	exec         *countingExecutor
	printLogPath string
}

func newCoordFixture(t *testing.T, autoPrint bool) *coordFixture {
	t.Helper()

	defaults := config.BaseDefaults
	defaults.Scale.StableIterations = 3
	defaults.Service.AutoPrint = autoPrint

	cfg, err := config.NewConfig(t.TempDir(), defaults)
	require.NoError(t, err)

	state := NewState()
	state.SetCuts([]database.CutItem{
		{CutName: "Ribeye", PricePerKg: 24.9},
		{CutName: "Sirloin", PricePerKg: 19.5},
	})

	exec := &countingExecutor{}
	dispatcher := printer.NewDispatcherWithExecutor(printer.Settings{
		Model:      "QL-810W",
		Backend:    "pyusb",
		Identifier: "usb://test",
		MediaSize:  "62x100",
	}, exec, clockwork.NewRealClock())

	dataDir := t.TempDir()
	printLogPath := filepath.Join(dataDir, config.PrintLogFile)
	coord := NewCoordinator(cfg, state, dispatcher,
		filepath.Join(dataDir, config.PrintedLabelsDir), printLogPath)

	return &coordFixture{
		coord:        coord,
		state:        state,
		exec:         exec,
		printLogPath: printLogPath,
	}
}

// feedStable pushes enough identical readings through the coordinator to
// cross the stability threshold.
func (f *coordFixture) feedStable(ctx context.Context, weight float64) {
	for range 3 {
		f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: weight})
	}
}

// awaitResult waits for the print worker and completes the result the way
// the control loop would.
func (f *coordFixture) awaitResult(t *testing.T) {
	t.Helper()

	select {
	case res := <-f.coord.Results():
		f.coord.HandlePrintResult(res)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for print result")
	}
}

func TestCoordinator_AutoPrintsOnceOnStableWeight(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, true)
	ctx := context.Background()

	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventConnected})
	require.True(t, f.state.SelectCut("Ribeye"))

	f.feedStable(ctx, 1.25)
	f.awaitResult(t)

	// The same stable weight keeps arriving but must not print again.
	f.feedStable(ctx, 1.25)

	assert.Equal(t, 1, f.exec.count())

	entries, err := database.LoadPrintLog(f.printLogPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Ribeye", entries[0].CutName)
	assert.InDelta(t, 1.25, entries[0].WeightKg, 1e-9)
	assert.InDelta(t, 31.13, entries[0].TotalPrice, 1e-9)
}

func TestCoordinator_RePrintsAfterWeightChange(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, true)
	ctx := context.Background()
	require.True(t, f.state.SelectCut("Ribeye"))

	f.feedStable(ctx, 1.25)
	f.awaitResult(t)

	// A new item on the scale settles at a different weight.
	f.feedStable(ctx, 0.8)
	f.awaitResult(t)

	assert.Equal(t, 2, f.exec.count())
}

func TestCoordinator_InFlightWeightChangeStillPrints(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, true)
	ctx := context.Background()
	require.True(t, f.state.SelectCut("Ribeye"))

	// The first item starts printing.
	f.feedStable(ctx, 1.25)

	// A second item settles while the first label is still in the
	// printer; the in-flight guard skips it for now.
	f.feedStable(ctx, 2.00)

	// Completing the first print must only mark 1.25 acted. The next
	// 2.00 sample is still an unacted stable value and prints.
	f.awaitResult(t)
	assert.Equal(t, 1, f.exec.count())
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 2.00})
	f.awaitResult(t)
	assert.Equal(t, 2, f.exec.count())
}

func TestCoordinator_ManualPrintKeepsAutoPrintEligible(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, true)
	ctx := context.Background()
	require.True(t, f.state.SelectCut("Ribeye"))

	// Two samples are not stable yet; the operator prints by hand.
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 1.25})
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 1.25})

	reply := make(chan error, 1)
	f.coord.RequestPrint(ctx, reply)
	f.awaitResult(t)
	require.NoError(t, <-reply)

	// Manual prints leave the acted memory alone, so the weight still
	// auto-prints once it stabilizes.
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 1.25})
	f.awaitResult(t)
	assert.Equal(t, 2, f.exec.count())
}

func TestCoordinator_WaitingBelowFloor(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, true)
	ctx := context.Background()
	require.True(t, f.state.SelectCut("Ribeye"))

	// A stable weight under the floor reports waiting instead of
	// printing.
	f.feedStable(ctx, 0.005)
	assert.True(t, f.state.Status().Waiting)
	assert.Equal(t, 0, f.exec.count())

	// A printable weight clears it.
	f.feedStable(ctx, 1.25)
	f.awaitResult(t)
	assert.False(t, f.state.Status().Waiting)
	assert.Equal(t, 1, f.exec.count())
}

func TestCoordinator_FloorBlocksAutoPrint(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, true)
	ctx := context.Background()
	require.True(t, f.state.SelectCut("Ribeye"))

	// An empty scale is perfectly stable at zero; near-zero drift is
	// just as ineligible.
	f.feedStable(ctx, 0.0)
	f.feedStable(ctx, 0.005)

	assert.Equal(t, 0, f.exec.count())
}

func TestCoordinator_NoSelectionNoAutoPrint(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, true)
	f.feedStable(context.Background(), 1.25)

	assert.Equal(t, 0, f.exec.count())
}

func TestCoordinator_AutoPrintDisabled(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, false)
	ctx := context.Background()
	require.True(t, f.state.SelectCut("Ribeye"))

	f.feedStable(ctx, 1.25)

	assert.Equal(t, 0, f.exec.count())
}

func TestCoordinator_OfflineResetsStability(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, true)
	ctx := context.Background()
	require.True(t, f.state.SelectCut("Ribeye"))

	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 1.25})
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 1.25})
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventOffline, Err: "unplugged"})

	status := f.state.Status()
	assert.Equal(t, ScaleOffline, status.ScaleStatus)
	assert.Equal(t, OfflineWeight, status.DisplayWeight)

	// The pre-disconnect samples must not count toward stability.
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventConnected})
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 1.25})
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 1.25})
	assert.Equal(t, 0, f.exec.count())

	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 1.25})
	f.awaitResult(t)
	assert.Equal(t, 1, f.exec.count())
}

func TestCoordinator_ManualPrintGuards(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, false)
	ctx := context.Background()
	reply := make(chan error, 1)

	// No reading yet.
	f.coord.RequestPrint(ctx, reply)
	assert.ErrorIs(t, <-reply, ErrScaleOffline)

	// Reading but nothing selected.
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 1.25})
	f.coord.RequestPrint(ctx, reply)
	assert.ErrorIs(t, <-reply, ErrNoCutSelected)

	// Below the printable floor.
	require.True(t, f.state.SelectCut("Ribeye"))
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 0.002})
	f.coord.RequestPrint(ctx, reply)
	assert.ErrorIs(t, <-reply, ErrBelowMinimumWeight)

	assert.Equal(t, 0, f.exec.count())
}

func TestCoordinator_ManualPrintSucceeds(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, false)
	ctx := context.Background()
	require.True(t, f.state.SelectCut("Sirloin"))

	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 0.8})

	reply := make(chan error, 1)
	f.coord.RequestPrint(ctx, reply)
	f.awaitResult(t)

	require.NoError(t, <-reply)
	assert.Equal(t, 1, f.exec.count())

	entries, err := database.LoadPrintLog(f.printLogPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Sirloin", entries[0].CutName)
}

func TestCoordinator_SecondPrintRejectedWhileInFlight(t *testing.T) {
	t.Parallel()

	f := newCoordFixture(t, false)
	ctx := context.Background()
	require.True(t, f.state.SelectCut("Ribeye"))
	f.coord.HandleEvent(ctx, scale.Event{Kind: scale.EventWeight, Weight: 1.25})

	first := make(chan error, 1)
	f.coord.RequestPrint(ctx, first)

	second := make(chan error, 1)
	f.coord.RequestPrint(ctx, second)
	assert.ErrorIs(t, <-second, ErrPrintInProgress)

	f.awaitResult(t)
	require.NoError(t, <-first)
	assert.Equal(t, 1, f.exec.count())
}
