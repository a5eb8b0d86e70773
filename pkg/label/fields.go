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

// Package label renders printable label images from a user-configurable
// ordered field layout.
package label

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// FreeTextKeyPrefix marks field entries that draw a literal line of
	// text instead of a named value. Free-text entries may repeat and may
	// be deleted, but never carry a known field's identity.
	FreeTextKeyPrefix = "__empty_line__"

	DefaultLineSpacing = 8
	MaxLineSpacing     = 120
	DefaultFontSize    = 24
	MinFontSize        = 8
	MaxFontSize        = 120
)

// Well-known field keys.
const (
	KeyCutName    = "cut_name"
	KeyWeightKg   = "weight_kg"
	KeyPricePerKg = "price_per_kg"
	KeyTax        = "tax"
	KeyTotalPrice = "total_price"
	KeyFarmName   = "farm_name"
	KeyLogoPath   = "logo_path"
)

// fieldDefs is the full set of known fields in default rendering order.
var fieldDefs = []struct {
	Key   string
	Label string
}{
	{KeyCutName, "Cut"},
	{KeyWeightKg, "Weight KG"},
	{KeyPricePerKg, "Price / KG"},
	{KeyTax, "Tax"},
	{KeyTotalPrice, "Total price"},
	{KeyFarmName, "Farm"},
	{KeyLogoPath, "Logo"},
	{"animal_number", "Animal Number"},
	{"farm_number", "Farm Number"},
	{"due_date_4_7", "Due date 4-7"},
	{"due_date_frozen", "Due date frozen"},
	{"birth_country", "Birth Country"},
	{"life_country", "Life Country"},
	{"slaughter_country", "Slaugther Country"},
	{"packaged_country", "Packaged Country"},
}

// FieldEntry is one row of the label layout. The ordered sequence of
// entries defines rendering order top to bottom.
type FieldEntry struct {
	Key       string `json:"key"`
	PrintName string `json:"print_name"`
	Show      bool   `json:"show"`
	FontSize  int    `json:"font_size"`
}

// Config is the persisted label layout payload.
type Config struct {
	Fields      []FieldEntry `json:"fields"`
	LineSpacing int          `json:"line_spacing"`
}

// IsFreeTextKey reports whether a field key denotes a free-text line.
func IsFreeTextKey(key string) bool {
	return strings.HasPrefix(key, FreeTextKeyPrefix)
}

// NewFreeTextEntry returns a fresh free-text entry. An empty key generates
// a unique one.
func NewFreeTextEntry(key string) FieldEntry {
	if key == "" {
		key = fmt.Sprintf("%s%d", FreeTextKeyPrefix, time.Now().UnixNano())
	}
	return FieldEntry{
		Key:      key,
		Show:     true,
		FontSize: DefaultFontSize,
	}
}

// DefaultFields returns the built-in layout: every known field present,
// everything but the logo shown, with per-field default font sizes.
func DefaultFields() []FieldEntry {
	defaults := make([]FieldEntry, 0, len(fieldDefs))
	for _, def := range fieldDefs {
		entry := FieldEntry{
			Key:       def.Key,
			PrintName: def.Label,
			Show:      def.Key != KeyLogoPath,
			FontSize:  DefaultFontSize,
		}

		switch def.Key {
		case KeyCutName:
			entry.FontSize = 52
		case KeyWeightKg, KeyTotalPrice:
			entry.FontSize = 34
		case KeyFarmName:
			entry.FontSize = 28
		}

		defaults = append(defaults, entry)
	}
	return defaults
}

// FieldLabel returns the display label of a known field key, or the key
// itself when unknown.
func FieldLabel(key string) string {
	for _, def := range fieldDefs {
		if def.Key == key {
			return def.Label
		}
	}
	return key
}

// ClampLineSpacing bounds a line spacing value to its valid range.
func ClampLineSpacing(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxLineSpacing {
		return MaxLineSpacing
	}
	return v
}

func clampFontSize(v int) int {
	if v < MinFontSize {
		return MinFontSize
	}
	if v > MaxFontSize {
		return MaxFontSize
	}
	return v
}

// Normalize validates an ordered field list: duplicate known fields and
// unknown keys are dropped, font sizes are clamped, and any known field
// missing from the input is appended with its defaults. Normalization is
// idempotent.
func Normalize(entries []FieldEntry) []FieldEntry {
	defaultsByKey := make(map[string]FieldEntry, len(fieldDefs))
	for _, entry := range DefaultFields() {
		defaultsByKey[entry.Key] = entry
	}

	normalized := make([]FieldEntry, 0, len(fieldDefs))
	seenDefaults := make(map[string]bool)
	seenCustom := make(map[string]bool)

	for _, raw := range entries {
		key := strings.TrimSpace(raw.Key)
		if key == "" {
			continue
		}

		if _, known := defaultsByKey[key]; known {
			if seenDefaults[key] {
				continue
			}
			seenDefaults[key] = true
		} else if IsFreeTextKey(key) {
			if seenCustom[key] {
				continue
			}
			seenCustom[key] = true
		} else {
			continue
		}

		normalized = append(normalized, FieldEntry{
			Key:       key,
			PrintName: strings.TrimSpace(raw.PrintName),
			Show:      raw.Show,
			FontSize:  clampFontSize(raw.FontSize),
		})
	}

	for _, def := range fieldDefs {
		if !seenDefaults[def.Key] {
			normalized = append(normalized, defaultsByKey[def.Key])
		}
	}

	return normalized
}

// rawEntry distinguishes absent keys from zero values so defaults can fill
// the gaps in hand-edited or partial payloads.
type rawEntry struct {
	Key       string      `json:"key"`
	PrintName *string     `json:"print_name"`
	Show      *bool       `json:"show"`
	FontSize  json.Number `json:"font_size"`
}

// parsePayload accepts either the current payload object or a legacy bare
// array of field entries. Malformed entries are skipped, never fatal.
func parsePayload(data []byte) Config {
	var items []json.RawMessage
	lineSpacing := DefaultLineSpacing

	var payload struct {
		Fields      []json.RawMessage `json:"fields"`
		LineSpacing *int              `json:"line_spacing"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		items = payload.Fields
		if payload.LineSpacing != nil {
			lineSpacing = ClampLineSpacing(*payload.LineSpacing)
		}
	} else if err := json.Unmarshal(data, &items); err != nil {
		return Config{Fields: DefaultFields(), LineSpacing: DefaultLineSpacing}
	}

	defaultsByKey := make(map[string]FieldEntry, len(fieldDefs))
	for _, entry := range DefaultFields() {
		defaultsByKey[entry.Key] = entry
	}

	entries := make([]FieldEntry, 0, len(items))
	for _, item := range items {
		var raw rawEntry
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}

		key := strings.TrimSpace(raw.Key)
		if key == "" {
			continue
		}

		base, known := defaultsByKey[key]
		if !known {
			if !IsFreeTextKey(key) {
				continue
			}
			base = NewFreeTextEntry(key)
		}

		entry := base
		if raw.PrintName != nil {
			entry.PrintName = strings.TrimSpace(*raw.PrintName)
		}
		if raw.Show != nil {
			entry.Show = *raw.Show
		}
		if raw.FontSize != "" {
			if size, err := strconv.Atoi(raw.FontSize.String()); err == nil {
				entry.FontSize = size
			} else if f, err := raw.FontSize.Float64(); err == nil {
				entry.FontSize = int(f)
			}
		}

		entries = append(entries, entry)
	}

	return Config{Fields: Normalize(entries), LineSpacing: lineSpacing}
}

// LoadConfig reads and normalizes the label layout payload. A missing file
// yields the built-in defaults; a broken file falls back to defaults for
// whatever cannot be parsed.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{Fields: DefaultFields(), LineSpacing: DefaultLineSpacing}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read label config: %w", err)
	}

	return parsePayload(data), nil
}

// SaveConfig normalizes and persists the label layout payload.
func SaveConfig(path string, cfg Config) error {
	out := Config{
		Fields:      Normalize(cfg.Fields),
		LineSpacing: ClampLineSpacing(cfg.LineSpacing),
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal label config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write label config: %w", err)
	}
	return nil
}
