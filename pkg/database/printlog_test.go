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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrintLogEntry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	entry := NewPrintLogEntry(now, "Ribeye", 1.23456789, 24.98765, 30.855)

	assert.Equal(t, "2026-03-14 15:09:26", entry.Time)
	assert.InDelta(t, 1.2346, entry.WeightKg, 1e-9)
	assert.InDelta(t, 24.9877, entry.PricePerKg, 1e-9)
	assert.InDelta(t, 30.86, entry.TotalPrice, 1e-9)
}

func TestPrintLogAppendAndLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "print_log.jsonl")
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	first := NewPrintLogEntry(now, "Ribeye", 1.25, 24.9, 31.125)
	second := NewPrintLogEntry(now.Add(time.Minute), "Sirloin", 0.8, 19.5, 15.6)
	require.NoError(t, AppendPrintLog(path, first))
	require.NoError(t, AppendPrintLog(path, second))

	entries, err := LoadPrintLog(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0])
	assert.Equal(t, second, entries[1])
}

func TestLoadPrintLog_SkipsMalformedLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "print_log.jsonl")
	content := `{"time":"2026-03-14 15:09:26","cut_name":"Ribeye","weight_kg":1.25,"price_per_kg":24.9,"total_price":31.13}
this line is not json

{"time":"2026-03-14 15:10:00","cut_name":"Sirloin","weight_kg":0.8,"price_per_kg":19.5,"total_price":15.6}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	entries, err := LoadPrintLog(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Ribeye", entries[0].CutName)
	assert.Equal(t, "Sirloin", entries[1].CutName)
}

func TestLoadPrintLog_MissingFile(t *testing.T) {
	t.Parallel()

	entries, err := LoadPrintLog(filepath.Join(t.TempDir(), "print_log.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRotatePrintLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "print_log.jsonl")
	archive := filepath.Join(dir, "logs")
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	require.NoError(t, AppendPrintLog(path, NewPrintLogEntry(now, "Ribeye", 1, 2, 2)))

	archived, err := RotatePrintLog(path, archive, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "print_log_20260314_150926.jsonl"), archived)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "active log must be gone after rotation")

	entries, err := LoadPrintLog(archived)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRotatePrintLog_CollisionSuffix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "print_log.jsonl")
	archive := filepath.Join(dir, "logs")
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	require.NoError(t, AppendPrintLog(path, NewPrintLogEntry(now, "Ribeye", 1, 2, 2)))
	first, err := RotatePrintLog(path, archive, now)
	require.NoError(t, err)

	require.NoError(t, AppendPrintLog(path, NewPrintLogEntry(now, "Sirloin", 1, 2, 2)))
	second, err := RotatePrintLog(path, archive, now)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, filepath.Join(archive, "print_log_20260314_150926_2.jsonl"), second)
}

func TestRotatePrintLog_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "print_log.jsonl")

	archived, err := RotatePrintLog(path, filepath.Join(dir, "logs"), time.Now())
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	now := time.Now()
	entries := []PrintLogEntry{
		NewPrintLogEntry(now, "Ribeye", 1.25, 24.9, 31.13),
		NewPrintLogEntry(now, "Ribeye", 0.75, 24.9, 18.68),
		NewPrintLogEntry(now, "Sirloin", 0.8, 19.5, 15.6),
	}

	summary := Summarize(entries)

	assert.Equal(t, 3, summary.Labels)
	assert.InDelta(t, 2.8, summary.TotalWeightKg, 1e-9)
	assert.InDelta(t, 65.41, summary.TotalPrice, 1e-9)

	require.Len(t, summary.Cuts, 2)
	assert.Equal(t, "Ribeye", summary.Cuts[0].CutName)
	assert.Equal(t, 2, summary.Cuts[0].Labels)
	assert.InDelta(t, 2.0, summary.Cuts[0].TotalWeightKg, 1e-9)
	assert.InDelta(t, 49.81, summary.Cuts[0].TotalPrice, 1e-9)
	assert.Equal(t, "Sirloin", summary.Cuts[1].CutName)
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	summary := Summarize(nil)
	assert.Zero(t, summary.Labels)
	assert.Empty(t, summary.Cuts)
}
