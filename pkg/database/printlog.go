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
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const printLogTimeLayout = "2006-01-02 15:04:05"

// PrintLogEntry is one printed label, appended as a JSON line.
type PrintLogEntry struct {
	Time       string  `json:"time"`
	CutName    string  `json:"cut_name"`
	WeightKg   float64 `json:"weight_kg"`
	PricePerKg float64 `json:"price_per_kg"`
	TotalPrice float64 `json:"total_price"`
}

// Round rounds to the given number of decimal places.
func Round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

// NewPrintLogEntry builds a log entry with the canonical roundings:
// weights and unit prices to 4 places, totals to 2.
func NewPrintLogEntry(now time.Time, cutName string, weightKg, pricePerKg, totalPrice float64) PrintLogEntry {
	return PrintLogEntry{
		Time:       now.Format(printLogTimeLayout),
		CutName:    cutName,
		WeightKg:   Round(weightKg, 4),
		PricePerKg: Round(pricePerKg, 4),
		TotalPrice: Round(totalPrice, 2),
	}
}

// AppendPrintLog adds one entry to the print log file.
func AppendPrintLog(path string, entry PrintLogEntry) error {
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("failed to marshal print log entry: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open print log: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append print log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close print log: %w", err)
	}
	return nil
}

// LoadPrintLog reads all entries from the print log, skipping malformed
// lines. A missing file is an empty log.
func LoadPrintLog(path string) ([]PrintLogEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open print log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []PrintLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry PrintLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			log.Debug().Err(err).Msg("skipping malformed print log line")
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read print log: %w", err)
	}

	return entries, nil
}

// RotatePrintLog moves the current log into the archive directory with a
// timestamped name and leaves no active log behind. Rotating an empty or
// missing log is a no-op. The archived path is returned.
func RotatePrintLog(path, archiveDir string, now time.Time) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat print log: %w", err)
	}

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log archive dir: %w", err)
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	base := fmt.Sprintf("%s_%s", stem, now.Format("20060102_150405"))

	target := filepath.Join(archiveDir, base+ext)
	for n := 2; ; n++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		target = filepath.Join(archiveDir, fmt.Sprintf("%s_%d%s", base, n, ext))
	}

	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("failed to archive print log: %w", err)
	}
	return target, nil
}

// CutSummary aggregates the printed labels of one cut.
type CutSummary struct {
	CutName       string  `json:"cut_name"`
	Labels        int     `json:"labels"`
	TotalWeightKg float64 `json:"total_weight_kg"`
	TotalPrice    float64 `json:"total_price"`
}

// PrintLogSummary is the session overview of everything printed so far.
type PrintLogSummary struct {
	Cuts          []CutSummary `json:"cuts"`
	Labels        int          `json:"labels"`
	TotalWeightKg float64      `json:"total_weight_kg"`
	TotalPrice    float64      `json:"total_price"`
}

// Summarize aggregates print log entries per cut plus grand totals. Cuts
// are sorted by name for stable output.
func Summarize(entries []PrintLogEntry) PrintLogSummary {
	byCut := make(map[string]*CutSummary)
	summary := PrintLogSummary{}

	for _, entry := range entries {
		cut, ok := byCut[entry.CutName]
		if !ok {
			cut = &CutSummary{CutName: entry.CutName}
			byCut[entry.CutName] = cut
		}
		cut.Labels++
		cut.TotalWeightKg += entry.WeightKg
		cut.TotalPrice += entry.TotalPrice

		summary.Labels++
		summary.TotalWeightKg += entry.WeightKg
		summary.TotalPrice += entry.TotalPrice
	}

	summary.Cuts = make([]CutSummary, 0, len(byCut))
	for _, cut := range byCut {
		cut.TotalWeightKg = Round(cut.TotalWeightKg, 4)
		cut.TotalPrice = Round(cut.TotalPrice, 2)
		summary.Cuts = append(summary.Cuts, *cut)
	}
	sort.Slice(summary.Cuts, func(i, j int) bool {
		return summary.Cuts[i].CutName < summary.Cuts[j].CutName
	})

	summary.TotalWeightKg = Round(summary.TotalWeightKg, 4)
	summary.TotalPrice = Round(summary.TotalPrice, 2)
	return summary
}
