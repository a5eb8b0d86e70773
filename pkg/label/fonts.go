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

package label

import (
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// fontCandidates is searched in order for a usable TrueType font. Bare
// names resolve relative to the working directory so a bundled font next
// to the binary wins over system fonts.
var fontCandidates = []string{
	"OpenSans-Light.ttf",
	"OpenSans-Regular.ttf",
	"DejaVuSans.ttf",
	"LiberationSans-Regular.ttf",
	"NotoSans-Regular.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/liberation/LiberationSans-Regular.ttf",
	"/usr/share/fonts/google-noto/NotoSans-Regular.ttf",
}

// fontCache loads one TrueType font and hands out faces by point size.
// Faces are cached because opentype face creation is not cheap and the
// same handful of sizes repeats on every label. Not safe for concurrent
// use; the compositor renders one label at a time.
type fontCache struct {
	font  *opentype.Font
	faces map[int]font.Face
}

func newFontCache() *fontCache {
	fc := &fontCache{faces: make(map[int]font.Face)}

	for _, candidate := range fontCandidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			log.Debug().Err(err).Msgf("unusable font candidate: %s", candidate)
			continue
		}
		log.Debug().Msgf("using label font: %s", candidate)
		fc.font = parsed
		break
	}

	if fc.font == nil {
		log.Warn().Msg("no TrueType font found, falling back to builtin bitmap font")
	}
	return fc
}

// Face returns a font face for the given point size, falling back to the
// builtin fixed-size bitmap font when no TrueType font is available.
func (fc *fontCache) Face(size int) font.Face {
	size = clampFontSize(size)
	if face, ok := fc.faces[size]; ok {
		return face
	}

	if fc.font == nil {
		return basicfont.Face7x13
	}

	face, err := opentype.NewFace(fc.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		log.Warn().Err(err).Msgf("failed to create font face at size %d", size)
		return basicfont.Face7x13
	}

	fc.faces[size] = face
	return face
}
