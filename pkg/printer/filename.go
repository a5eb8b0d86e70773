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

package printer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const timestampLayout = "20060102_150405"

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	underscores = regexp.MustCompile(`_+`)
)

// SanitizePart reduces arbitrary text to a safe filename fragment.
func SanitizePart(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "label"
	}
	return s
}

// LabelPath returns a unique path under dir for an archived label image,
// named from the cut, the weight text and a timestamp. Same-second
// collisions get a numeric suffix.
func LabelPath(dir, cutName, weight string, now time.Time) string {
	base := fmt.Sprintf("%s_%skg_%s",
		SanitizePart(cutName), SanitizePart(weight), now.Format(timestampLayout))

	path := filepath.Join(dir, base+".png")
	for n := 2; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.png", base, n))
	}
}
