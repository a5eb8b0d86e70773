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

package config

import (
	"strconv"
	"time"
)

const DefaultAPIPort = 7518

func (c *Instance) Scale() Scale {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Scale
}

// StableIterations returns the number of consecutive identical readings
// required before a weight is considered settled. Always at least 1.
func (c *Instance) StableIterations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Scale.StableIterations < 1 {
		return 1
	}
	return c.vals.Scale.StableIterations
}

func (c *Instance) SetStableIterations(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 {
		n = 1
	}
	c.vals.Scale.StableIterations = n
}

func (c *Instance) ReconnectDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Scale.ReconnectDelayMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.vals.Scale.ReconnectDelayMS) * time.Millisecond
}

func (c *Instance) MinPrintWeightKg() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Scale.MinPrintWeightKg <= 0 {
		return BaseDefaults.Scale.MinPrintWeightKg
	}
	return c.vals.Scale.MinPrintWeightKg
}

func (c *Instance) Printer() Printer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Printer
}

func (c *Instance) CutPaper() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Printer.CutPaper
}

func (c *Instance) SetCutPaper(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Printer.CutPaper = enabled
}

func (c *Instance) AutoPrint() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Service.AutoPrint
}

func (c *Instance) SetAutoPrint(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Service.AutoPrint = enabled
}

func (c *Instance) APIPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiPortLocked()
}

// apiPortLocked returns the API port. Caller must hold mu (read or write).
func (c *Instance) apiPortLocked() int {
	if c.vals.Service.APIPort == nil {
		return DefaultAPIPort
	}
	return *c.vals.Service.APIPort
}

func (c *Instance) APIListen() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Service.APIListen == "" {
		return ":" + strconv.Itoa(c.apiPortLocked())
	}
	return c.vals.Service.APIListen
}

func (c *Instance) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Service.DeviceID
}
