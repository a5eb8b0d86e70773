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
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"

	// Logo files may be PNG or JPEG.
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Canvas geometry for the 62x100 continuous label at printer resolution.
const (
	CanvasWidth  = 1109
	CanvasHeight = 696

	canvasMargin = 28
	logoBoxW     = 250
	logoBoxH     = 180
	qrSize       = 240
)

// Compositor renders label images: text lines top-down on the left, the
// farm logo top-right, a QR code of the label data bottom-right. Rendering
// is deterministic for a given layout and value set.
type Compositor struct {
	fonts *fontCache
}

func NewCompositor() *Compositor {
	return &Compositor{fonts: newFontCache()}
}

// Render draws one label. Hidden fields and named fields with empty values
// are skipped without advancing the cursor; free-text entries always
// occupy a line, so an empty one acts as a spacer.
func (c *Compositor) Render(cfg Config, values map[string]string) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	spacing := ClampLineSpacing(cfg.LineSpacing)
	y := canvasMargin

	for _, entry := range Normalize(cfg.Fields) {
		if !entry.Show {
			continue
		}

		if IsFreeTextKey(entry.Key) {
			if entry.PrintName != "" {
				c.drawText(img, c.fonts.Face(entry.FontSize), canvasMargin, y, entry.PrintName)
			}
			y += clampFontSize(entry.FontSize) + spacing
			continue
		}

		if entry.Key == KeyLogoPath {
			c.drawLogo(img, values[KeyLogoPath])
			continue
		}

		value := values[entry.Key]
		if value == "" {
			continue
		}

		text := value
		if entry.PrintName != "" {
			text = fmt.Sprintf("%s: %s", entry.PrintName, value)
		}

		c.drawText(img, c.fonts.Face(entry.FontSize), canvasMargin, y, text)
		// The cursor advance is the configured size plus spacing, not the
		// face's own metrics, so the layout is identical whichever font
		// file was found.
		y += clampFontSize(entry.FontSize) + spacing
	}

	if err := c.drawQR(img, values); err != nil {
		return nil, err
	}

	return img, nil
}

func (c *Compositor) drawText(img *image.RGBA, face font.Face, x, top int, text string) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(x),
			Y: fixed.I(top) + face.Metrics().Ascent,
		},
	}
	drawer.DrawString(text)
}

// drawLogo places the logo in a fixed box at the top-right corner, scaled
// down to fit while preserving aspect ratio. A missing or unreadable logo
// is skipped so a bad path never blocks printing.
func (c *Compositor) drawLogo(img *image.RGBA, path string) {
	if path == "" {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		log.Debug().Err(err).Msgf("skipping unreadable logo: %s", path)
		return
	}
	defer func() { _ = f.Close() }()

	logo, _, err := image.Decode(f)
	if err != nil {
		log.Debug().Err(err).Msgf("skipping undecodable logo: %s", path)
		return
	}

	srcW := logo.Bounds().Dx()
	srcH := logo.Bounds().Dy()
	if srcW <= 0 || srcH <= 0 {
		return
	}

	w, h := srcW, srcH
	if w > logoBoxW {
		h = h * logoBoxW / w
		w = logoBoxW
	}
	if h > logoBoxH {
		w = w * logoBoxH / h
		h = logoBoxH
	}
	if w < 1 || h < 1 {
		return
	}

	x0 := CanvasWidth - canvasMargin - w
	y0 := canvasMargin
	dst := image.Rect(x0, y0, x0+w, y0+h)
	draw.CatmullRom.Scale(img, dst, logo, logo.Bounds(), draw.Over, nil)
}

// drawQR encodes the label values as JSON and stamps the code at the
// bottom-right corner. The logo path is a local filesystem detail and is
// left out of the payload; empty values are kept so the payload keys are
// the same on every label.
func (c *Compositor) drawQR(img *image.RGBA, values map[string]string) error {
	payload := make(map[string]string, len(values))
	for k, v := range values {
		if k == KeyLogoPath {
			continue
		}
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode QR payload: %w", err)
	}

	code, err := qrcode.New(string(data), qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	qrImg := code.Image(qrSize)
	x0 := CanvasWidth - canvasMargin - qrSize
	y0 := CanvasHeight - canvasMargin - qrSize
	dst := image.Rect(x0, y0, x0+qrSize, y0+qrSize)
	draw.Draw(img, dst, qrImg, qrImg.Bounds().Min, draw.Src)

	return nil
}
