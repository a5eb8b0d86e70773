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

// Package database persists the small JSON data files the service works
// from: the cut catalog, session metadata and the print log.
package database

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// CutItem is one entry of the cut catalog: a product name with its
// pricing.
type CutItem struct {
	CutName    string  `json:"cut_name"`
	PricePerKg float64 `json:"price_per_kg"`
	Tax        float64 `json:"tax"`
}

// rawCutItem tolerates hand-edited catalogs. Very old files stored the
// price under weight_kg, which is read as a fallback.
type rawCutItem struct {
	CutName    *string  `json:"cut_name"`
	PricePerKg *float64 `json:"price_per_kg"`
	WeightKg   *float64 `json:"weight_kg"`
	Tax        *float64 `json:"tax"`
}

// LoadCuts reads the cut catalog. A missing file is an empty catalog;
// malformed entries and entries without a name are skipped.
func LoadCuts(path string) ([]CutItem, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cuts db: %w", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse cuts db: %w", err)
	}

	cuts := make([]CutItem, 0, len(items))
	for _, item := range items {
		var raw rawCutItem
		if err := json.Unmarshal(item, &raw); err != nil {
			log.Debug().Err(err).Msg("skipping malformed cuts db entry")
			continue
		}
		if raw.CutName == nil {
			continue
		}

		name := strings.TrimSpace(*raw.CutName)
		if name == "" {
			continue
		}

		cut := CutItem{CutName: name}
		switch {
		case raw.PricePerKg != nil:
			cut.PricePerKg = *raw.PricePerKg
		case raw.WeightKg != nil:
			cut.PricePerKg = *raw.WeightKg
		}
		if raw.Tax != nil {
			cut.Tax = *raw.Tax
		}

		cuts = append(cuts, cut)
	}

	return cuts, nil
}

// SaveCuts persists the cut catalog in the current format.
func SaveCuts(path string, cuts []CutItem) error {
	if cuts == nil {
		cuts = []CutItem{}
	}

	data, err := json.MarshalIndent(cuts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cuts db: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cuts db: %w", err)
	}
	return nil
}

// FindCut returns the catalog entry matching name, if any.
func FindCut(cuts []CutItem, name string) (CutItem, bool) {
	for _, cut := range cuts {
		if cut.CutName == name {
			return cut, true
		}
	}
	return CutItem{}, false
}
