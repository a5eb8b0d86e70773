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

// Package service runs the scale session, auto-print coordination and API
// server as one unit.
package service

import (
	"github.com/ScalelabelProject/scalelabel-core/pkg/database"
	"github.com/ScalelabelProject/scalelabel-core/pkg/helpers/syncutil"
	"github.com/ScalelabelProject/scalelabel-core/pkg/label"
)

// Scale status values reported over the API. A session is connected once
// the port opens and live once the first reading parses.
const (
	ScaleOffline   = "offline"
	ScaleConnected = "connected"
	ScaleLive      = "live"
)

// OfflineWeight is displayed while no reading is available.
const OfflineWeight = "n/a"

// StatusSnapshot is a point-in-time view of the service for the API.
type StatusSnapshot struct {
	ScaleStatus   string            `json:"scale_status"`
	ScaleError    string            `json:"scale_error,omitempty"`
	DisplayWeight string            `json:"weight"`
	WeightKg      float64           `json:"weight_kg"`
	SelectedCut   *database.CutItem `json:"selected_cut,omitempty"`
	TotalPrice    float64           `json:"total_price"`
	AutoPrint     bool              `json:"auto_print"`
	CutPaper      bool              `json:"cut_paper"`
	Waiting       bool              `json:"waiting"`
}

// State holds everything shared between the control loop and API handlers.
// All access goes through the mutex; the control loop is the only writer
// of weight and scale status.
type State struct {
	scaleStatus   string
	scaleError    string
	displayWeight string
	weightKg      float64
	weightValid   bool
	waiting       bool
	selection     *database.CutItem
	session       database.SessionData
	cuts          []database.CutItem
	labelCfg      label.Config
	mu            syncutil.RWMutex
}

func NewState() *State {
	return &State{
		scaleStatus:   ScaleOffline,
		displayWeight: OfflineWeight,
		session:       database.NewSessionData(),
		labelCfg: label.Config{
			Fields:      label.DefaultFields(),
			LineSpacing: label.DefaultLineSpacing,
		},
	}
}

func (s *State) SetScaleOffline(errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scaleStatus = ScaleOffline
	s.scaleError = errMsg
	s.displayWeight = OfflineWeight
	s.weightKg = 0
	s.weightValid = false
	s.waiting = false
}

func (s *State) SetScaleConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scaleStatus = ScaleConnected
	s.scaleError = ""
}

// SetWeight records a parsed reading. The first reading promotes the
// session from connected to live.
func (s *State) SetWeight(weightKg float64, display string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weightKg = weightKg
	s.displayWeight = display
	s.weightValid = true
	s.scaleStatus = ScaleLive
}

// SetWaiting flags that a stable weight sits under the printable floor,
// so the operator sees why no label comes out.
func (s *State) SetWaiting(waiting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting = waiting
}

// Weight returns the latest reading and whether one is available.
func (s *State) Weight() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weightKg, s.weightValid
}

func (s *State) SetCuts(cuts []database.CutItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cuts = cuts
}

func (s *State) Cuts() []database.CutItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]database.CutItem, len(s.cuts))
	copy(out, s.cuts)
	return out
}

// SelectCut picks the active cut by catalog name.
func (s *State) SelectCut(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cut, ok := database.FindCut(s.cuts, name)
	if !ok {
		return false
	}
	s.selection = &cut
	return true
}

func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
}

// Selection returns a copy of the active cut, if any.
func (s *State) Selection() (database.CutItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return database.CutItem{}, false
	}
	return *s.selection, true
}

func (s *State) SetSession(session database.SessionData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

func (s *State) Session() database.SessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(database.SessionData, len(s.session))
	for k, v := range s.session {
		out[k] = v
	}
	return out
}

func (s *State) SetLabelConfig(cfg label.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labelCfg = cfg
}

func (s *State) LabelConfig() label.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labelCfg
}

// Status assembles the API status view. The auto-print and cut-paper
// toggles live in the app config and are filled in by the API layer.
func (s *State) Status() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatusSnapshot{
		ScaleStatus:   s.scaleStatus,
		ScaleError:    s.scaleError,
		DisplayWeight: s.displayWeight,
		WeightKg:      s.weightKg,
		Waiting:       s.waiting,
	}
	if s.selection != nil {
		cut := *s.selection
		snap.SelectedCut = &cut
		if s.weightValid {
			snap.TotalPrice = database.Round(s.weightKg*cut.PricePerKg, 2)
		}
	}
	return snap
}
