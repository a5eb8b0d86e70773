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

package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	AppName = "scalelabel"

	CfgFile         = "config.toml"
	LabelConfigFile = "label_config.json"
	CutsDBFile      = "cuts_db.json"
	SessionFile     = "session_default.json"
	PrintLogFile    = "print_log.jsonl"

	PrintedLabelsDir = "printed_labels"
	LogArchiveDir    = "logs"
)

// DefaultConfigDir returns the platform config directory for the service.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultDataDir returns the platform data directory, which holds the print
// log, rendered label images and log archives.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// LabelConfigPath returns the path of the label field config payload.
func (c *Instance) LabelConfigPath() string {
	return filepath.Join(filepath.Dir(c.cfgPath), LabelConfigFile)
}

// CutsDBPath returns the path of the cuts database file.
func (c *Instance) CutsDBPath() string {
	return filepath.Join(filepath.Dir(c.cfgPath), CutsDBFile)
}

// SessionPath returns the path of the default session metadata file.
func (c *Instance) SessionPath() string {
	return filepath.Join(filepath.Dir(c.cfgPath), SessionFile)
}
