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

// Package scale reads weight values from a serial digital scale. It parses
// the scale's line-oriented output, debounces readings into a stable weight
// signal and manages the serial connection lifecycle.
package scale

import (
	"regexp"
	"strconv"
)

// weightRe extracts a signed decimal number loosely followed by a "kg" unit
// marker, e.g. "+ 0.0335kg". Anything else on the line is ignored.
var weightRe = regexp.MustCompile(`(?i)([-+]?\d+(?:\.\d+)?)\s*kg`)

// ParseWeight extracts a weight in kg from one raw serial line. It is
// permissive: invalid bytes and any surrounding junk are ignored, and a line
// with no recognizable reading reports ok=false rather than an error.
func ParseWeight(line []byte) (weight float64, ok bool) {
	m := weightRe.FindSubmatch(line)
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// FormatWeight renders a weight value in the canonical 4-decimal form used
// for stability comparison and display.
func FormatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
