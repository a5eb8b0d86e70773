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

package scale

// Tracker decides when a weight reading has settled and prevents acting
// twice on the same settled value. Values are compared on their canonical
// formatted text, not raw float equality.
//
// Tracker is not safe for concurrent use. It is owned by the service control
// loop and must only be touched from there.
type Tracker struct {
	lastValue string
	acted     string
	count     uint
}

// Observe feeds one parsed weight into the tracker. It returns the canonical
// display text for the value and whether the value has just become stable:
// seen for at least required consecutive readings and not yet acted upon.
//
// Any change of value clears the acted memory, so a weight that stabilizes,
// fluctuates by one sample and settles back at the same reading is eligible
// to trigger again.
func (t *Tracker) Observe(value float64, required uint) (display string, newlyStable bool) {
	if required < 1 {
		required = 1
	}

	formatted := FormatWeight(value)
	if formatted == t.lastValue {
		t.count++
	} else {
		t.lastValue = formatted
		t.count = 1
		t.acted = ""
	}

	newlyStable = t.count >= required && t.acted != t.lastValue
	return t.lastValue, newlyStable
}

// MarkActed records that the given display value has been acted upon,
// suppressing repeat triggers until the value changes. The mark only
// applies while the tracker still holds that value: if the reading moved
// on while the action ran, the newer value stays eligible.
func (t *Tracker) MarkActed(value string) {
	if value == t.lastValue {
		t.acted = value
	}
}

// Reset returns the tracker to its empty initial state. Called on
// disconnect so a reconnect does not believe the old reading is still
// stable.
func (t *Tracker) Reset() {
	*t = Tracker{}
}
