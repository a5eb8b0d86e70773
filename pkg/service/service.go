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
	"os"
	"path/filepath"
	"time"

	"github.com/ScalelabelProject/scalelabel-core/pkg/config"
	"github.com/ScalelabelProject/scalelabel-core/pkg/database"
	"github.com/ScalelabelProject/scalelabel-core/pkg/label"
	"github.com/ScalelabelProject/scalelabel-core/pkg/printer"
	"github.com/ScalelabelProject/scalelabel-core/pkg/scale"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

var ErrUnknownCut = errors.New("unknown cut")

// Service is the running daemon: the scale session, the control loop and
// the data files, bundled behind the methods the API layer calls.
type Service struct {
	cfg           *config.Instance
	state         *State
	scaleSession  *scale.Session
	watcher       *fsnotify.Watcher
	cancel        context.CancelFunc
	done          chan struct{}
	printReqs     chan chan error
	printLogPath  string
	logArchiveDir string
}

// Start loads the data files, connects to the scale and runs the control
// loop. The caller is responsible for calling Stop on shutdown.
func Start(cfg *config.Instance, dataDir string) (*Service, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	state := NewState()

	cuts, err := database.LoadCuts(cfg.CutsDBPath())
	if err != nil {
		return nil, err
	}
	state.SetCuts(cuts)
	log.Info().Msgf("loaded %d cuts from catalog", len(cuts))

	session, err := database.LoadSession(cfg.SessionPath())
	if err != nil {
		return nil, err
	}
	state.SetSession(session)

	labelCfg, err := label.LoadConfig(cfg.LabelConfigPath())
	if err != nil {
		return nil, err
	}
	state.SetLabelConfig(labelCfg)

	printerCfg := cfg.Printer()
	dispatcher := printer.NewDispatcher(printer.Settings{
		Model:      printerCfg.Model,
		Backend:    printerCfg.Backend,
		Identifier: printerCfg.Identifier,
		MediaSize:  printerCfg.MediaSize,
	})

	svc := &Service{
		cfg:           cfg,
		state:         state,
		printReqs:     make(chan chan error),
		printLogPath:  filepath.Join(dataDir, config.PrintLogFile),
		logArchiveDir: filepath.Join(dataDir, config.LogArchiveDir),
		done:          make(chan struct{}),
	}

	labelsDir := filepath.Join(dataDir, config.PrintedLabelsDir)
	coord := NewCoordinator(cfg, state, dispatcher, labelsDir, svc.printLogPath)

	scaleCfg := cfg.Scale()
	svc.scaleSession = scale.NewSession(scaleCfg.Port, scaleCfg.BaudRate, cfg.ReconnectDelay())

	// Label layout edits apply without a restart. A watcher failure only
	// costs hot reload, not the service.
	watcher, err := label.StartConfigWatch(cfg.LabelConfigPath(), state.SetLabelConfig)
	if err != nil {
		log.Warn().Err(err).Msg("label config watcher unavailable")
	} else {
		svc.watcher = watcher
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc.cancel = cancel

	go svc.scaleSession.Run(ctx)
	go svc.controlLoop(ctx, coord)

	log.Info().Msgf("service started, scale on %s", svc.scaleSession.Path())
	return svc, nil
}

// controlLoop serializes everything that touches the stability tracker:
// scale events, manual print requests and print worker results.
func (s *Service) controlLoop(ctx context.Context, coord *Coordinator) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.scaleSession.Events():
			coord.HandleEvent(ctx, ev)
		case reply := <-s.printReqs:
			coord.RequestPrint(ctx, reply)
		case res := <-coord.Results():
			coord.HandlePrintResult(res)
		}
	}
}

// Stop shuts the service down and waits for the control loop to exit.
func (s *Service) Stop() {
	s.cancel()
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	<-s.done
	log.Info().Msg("service stopped")
}

// Status reports the live service state.
func (s *Service) Status() StatusSnapshot {
	snap := s.state.Status()
	snap.AutoPrint = s.cfg.AutoPrint()
	snap.CutPaper = s.cfg.CutPaper()
	return snap
}

// Cuts returns the cut catalog.
func (s *Service) Cuts() []database.CutItem {
	return s.state.Cuts()
}

// SelectCut makes a catalog entry the active cut.
func (s *Service) SelectCut(name string) error {
	if !s.state.SelectCut(name) {
		return fmt.Errorf("%w: %s", ErrUnknownCut, name)
	}
	log.Info().Msgf("selected cut: %s", name)
	return nil
}

// Print requests a manual print of the current weight and waits for the
// outcome.
func (s *Service) Print(ctx context.Context) error {
	reply := make(chan error, 1)

	select {
	case s.printReqs <- reply:
	case <-ctx.Done():
		return fmt.Errorf("print request not accepted: %w", ctx.Err())
	case <-s.done:
		return errors.New("service is stopped")
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return fmt.Errorf("print request abandoned: %w", ctx.Err())
	}
}

// PrintLog returns all entries of the active print log.
func (s *Service) PrintLog() ([]database.PrintLogEntry, error) {
	return database.LoadPrintLog(s.printLogPath)
}

// Summary aggregates the active print log per cut.
func (s *Service) Summary() (database.PrintLogSummary, error) {
	entries, err := database.LoadPrintLog(s.printLogPath)
	if err != nil {
		return database.PrintLogSummary{}, err
	}
	return database.Summarize(entries), nil
}

// RotateLog archives the active print log, typically at the end of a
// working session. Returns the archived path, empty when there was
// nothing to rotate.
func (s *Service) RotateLog() (string, error) {
	return database.RotatePrintLog(s.printLogPath, s.logArchiveDir, time.Now())
}

// PrintSettings carries updates for the printing behavior toggles. Nil
// fields are left unchanged.
type PrintSettings struct {
	AutoPrint        *bool
	StableIterations *int
	CutPaper         *bool
}

// UpdatePrintSettings applies the given toggles and persists them.
func (s *Service) UpdatePrintSettings(ps PrintSettings) error {
	if ps.AutoPrint != nil {
		s.cfg.SetAutoPrint(*ps.AutoPrint)
		log.Info().Msgf("auto print set to %t", *ps.AutoPrint)
	}
	if ps.StableIterations != nil {
		s.cfg.SetStableIterations(*ps.StableIterations)
		log.Info().Msgf("stable iterations set to %d", s.cfg.StableIterations())
	}
	if ps.CutPaper != nil {
		s.cfg.SetCutPaper(*ps.CutPaper)
		log.Info().Msgf("cut paper set to %t", *ps.CutPaper)
	}
	return s.cfg.Save()
}
