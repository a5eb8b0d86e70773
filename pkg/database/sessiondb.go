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

package database

import (
	"encoding/json"
	"fmt"
	"os"
)

// SessionFields are the batch-level values that stay fixed across an
// entire working session and appear on every label.
var SessionFields = []string{
	"farm_name",
	"logo_path",
	"animal_number",
	"farm_number",
	"due_date_4_7",
	"due_date_frozen",
	"birth_country",
	"life_country",
	"slaughter_country",
	"packaged_country",
}

// SessionData maps session field keys to their values. Every known field
// is always present, defaulting to empty.
type SessionData map[string]string

// NewSessionData returns a session with all fields empty.
func NewSessionData() SessionData {
	data := make(SessionData, len(SessionFields))
	for _, key := range SessionFields {
		data[key] = ""
	}
	return data
}

// LoadSession reads persisted session metadata. Unknown keys are dropped
// and missing ones default to empty, so the result always has exactly the
// known fields. A missing file is an empty session.
func LoadSession(path string) (SessionData, error) {
	session := NewSessionData()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return session, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}

	for _, key := range SessionFields {
		if v, ok := stored[key]; ok {
			session[key] = v
		}
	}
	return session, nil
}

// SaveSession persists session metadata, keeping only known fields.
func SaveSession(path string, session SessionData) error {
	out := NewSessionData()
	for _, key := range SessionFields {
		if v, ok := session[key]; ok {
			out[key] = v
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}
