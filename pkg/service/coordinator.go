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
	"errors"
	"fmt"
	"strconv"

	"github.com/ScalelabelProject/scalelabel-core/pkg/config"
	"github.com/ScalelabelProject/scalelabel-core/pkg/database"
	"github.com/ScalelabelProject/scalelabel-core/pkg/label"
	"github.com/ScalelabelProject/scalelabel-core/pkg/printer"
	"github.com/ScalelabelProject/scalelabel-core/pkg/scale"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrPrintInProgress    = errors.New("a print is already in progress")
	ErrScaleOffline       = errors.New("no weight reading available")
	ErrNoCutSelected      = errors.New("no cut selected")
	ErrBelowMinimumWeight = errors.New("weight below printable minimum")
)

type printResult struct {
	err   error
	reply chan<- error
	// actedValue is the display value an auto print was triggered for,
	// empty for manual prints. Manual prints never touch the acted
	// memory, so a stable weight stays eligible for its auto print.
	actedValue string
}

// Coordinator reacts to scale events and decides when a label gets
// printed. All methods are called from the service control loop only; the
// actual print runs in a worker goroutine and reports back through
// Results so the loop keeps consuming events while the printer works.
type Coordinator struct {
	cfg          *config.Instance
	state        *State
	compositor   *label.Compositor
	dispatcher   *printer.Dispatcher
	clock        clockwork.Clock
	results      chan printResult
	labelsDir    string
	printLogPath string
	tracker      scale.Tracker
	inFlight     bool
}

func NewCoordinator(
	cfg *config.Instance,
	state *State,
	dispatcher *printer.Dispatcher,
	labelsDir, printLogPath string,
) *Coordinator {
	return &Coordinator{
		cfg:          cfg,
		state:        state,
		compositor:   label.NewCompositor(),
		dispatcher:   dispatcher,
		clock:        clockwork.NewRealClock(),
		results:      make(chan printResult, 1),
		labelsDir:    labelsDir,
		printLogPath: printLogPath,
	}
}

// Results delivers outcomes of worker prints back to the control loop.
func (c *Coordinator) Results() <-chan printResult {
	return c.results
}

// HandleEvent applies one scale event: status updates, stability tracking
// and, on a newly stable reading, the auto-print decision.
func (c *Coordinator) HandleEvent(ctx context.Context, ev scale.Event) {
	switch ev.Kind {
	case scale.EventOffline:
		c.tracker.Reset()
		c.state.SetScaleOffline(ev.Err)
	case scale.EventConnected:
		c.state.SetScaleConnected()
	case scale.EventWeight:
		display, newlyStable := c.tracker.Observe(ev.Weight, uint(c.cfg.StableIterations()))
		c.state.SetWeight(ev.Weight, display)
		if newlyStable {
			c.maybeAutoPrint(ctx, ev.Weight)
		}
	}
}

// maybeAutoPrint fires a print for a newly stable weight when every guard
// passes. Guards that fail are quiet besides a debug log: fluctuating or
// empty-scale readings are the normal case, not an error.
func (c *Coordinator) maybeAutoPrint(ctx context.Context, weight float64) {
	if !c.cfg.AutoPrint() {
		return
	}
	if c.inFlight {
		return
	}
	if _, ok := c.state.Selection(); !ok {
		log.Debug().Msg("stable weight with no cut selected, skipping auto print")
		return
	}
	if weight < c.cfg.MinPrintWeightKg() {
		log.Debug().Msgf("stable weight %s below printable minimum, waiting", scale.FormatWeight(weight))
		c.state.SetWaiting(true)
		return
	}
	c.state.SetWaiting(false)

	log.Info().Msgf("auto printing at stable weight %s kg", scale.FormatWeight(weight))
	c.startPrint(ctx, weight, nil, scale.FormatWeight(weight))
}

// RequestPrint starts a manual print of the current reading. The result
// is delivered on reply once the worker finishes.
func (c *Coordinator) RequestPrint(ctx context.Context, reply chan<- error) {
	fail := func(err error) {
		if reply != nil {
			reply <- err
		}
	}

	if c.inFlight {
		fail(ErrPrintInProgress)
		return
	}
	weight, ok := c.state.Weight()
	if !ok {
		fail(ErrScaleOffline)
		return
	}
	if _, selected := c.state.Selection(); !selected {
		fail(ErrNoCutSelected)
		return
	}
	if weight < c.cfg.MinPrintWeightKg() {
		fail(ErrBelowMinimumWeight)
		return
	}

	c.startPrint(ctx, weight, reply, "")
}

// HandlePrintResult finishes a print: clears the in-flight flag, records
// the acted value of a successful auto print so the same stable reading
// does not print again, and forwards the outcome to a waiting manual
// caller. A failure leaves the acted memory clear, so the reading stays
// eligible. The mark carries the value the print was triggered for; if
// the scale settled at a new weight while the worker ran, that newer
// value remains unmarked and prints in its turn.
func (c *Coordinator) HandlePrintResult(res printResult) {
	c.inFlight = false
	if res.err != nil {
		log.Error().Err(res.err).Msg("print failed")
	} else if res.actedValue != "" {
		c.tracker.MarkActed(res.actedValue)
	}
	if res.reply != nil {
		res.reply <- res.err
	}
}

// startPrint snapshots everything the worker needs and hands off. While
// the worker runs, the in-flight flag keeps the same stable reading from
// queueing a second job.
func (c *Coordinator) startPrint(ctx context.Context, weight float64, reply chan<- error, actedValue string) {
	cut, ok := c.state.Selection()
	if !ok {
		if reply != nil {
			reply <- ErrNoCutSelected
		}
		return
	}

	c.inFlight = true

	session := c.state.Session()
	labelCfg := c.state.LabelConfig()
	cutPaper := c.cfg.CutPaper()

	go func() {
		err := c.printOnce(ctx, cut, session, labelCfg, weight, cutPaper)
		c.results <- printResult{err: err, reply: reply, actedValue: actedValue}
	}()
}

// printOnce renders, archives, prints and logs one label. Only one worker
// runs at a time, guarded by the in-flight flag, so the compositor and
// the print log are never touched concurrently.
func (c *Coordinator) printOnce(
	ctx context.Context,
	cut database.CutItem,
	session database.SessionData,
	labelCfg label.Config,
	weight float64,
	cutPaper bool,
) error {
	totalPrice := database.Round(weight*cut.PricePerKg, 2)

	values := map[string]string{
		label.KeyCutName:    cut.CutName,
		label.KeyWeightKg:   scale.FormatWeight(weight),
		label.KeyPricePerKg: strconv.FormatFloat(cut.PricePerKg, 'f', 2, 64),
		label.KeyTax:        strconv.FormatFloat(cut.Tax, 'f', -1, 64),
		label.KeyTotalPrice: strconv.FormatFloat(totalPrice, 'f', 2, 64),
	}
	for key, value := range session {
		values[key] = value
	}

	img, err := c.compositor.Render(labelCfg, values)
	if err != nil {
		return fmt.Errorf("failed to render label: %w", err)
	}

	path := printer.LabelPath(c.labelsDir, cut.CutName, scale.FormatWeight(weight), c.clock.Now())
	if err := printer.SavePNG(img, path); err != nil {
		return err
	}

	if err := c.dispatcher.Dispatch(ctx, path, cutPaper); err != nil {
		return err
	}

	entry := database.NewPrintLogEntry(c.clock.Now(), cut.CutName, weight, cut.PricePerKg, totalPrice)
	if err := database.AppendPrintLog(c.printLogPath, entry); err != nil {
		// The label is already out; a logging failure must not read as a
		// failed print.
		log.Error().Err(err).Msg("printed label but failed to append print log")
	}
	return nil
}
