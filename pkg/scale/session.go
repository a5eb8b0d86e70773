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

import (
	"context"
	"strings"
	"time"

	"github.com/ScalelabelProject/scalelabel-core/pkg/scale/testutils"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	readTimeout = 500 * time.Millisecond
	// maxLineSize caps the line buffer; a scale emits short readings, so
	// anything longer is garbage and discarded until the next delimiter.
	maxLineSize = 512
	eventBuffer = 16
)

type EventKind int

const (
	// EventOffline reports the serial device is unavailable. The session
	// keeps retrying with a fixed delay.
	EventOffline EventKind = iota
	// EventConnected reports the serial device opened successfully.
	EventConnected
	// EventWeight carries one parsed weight reading.
	EventWeight
)

type Event struct {
	Err    string
	Weight float64
	Kind   EventKind
}

// Session owns the serial connection to the scale: open, read loop, error
// handling and reconnect with a fixed delay. Parsed readings and status
// transitions are emitted as Events on a buffered channel; the reader never
// blocks on a slow consumer.
type Session struct {
	portFactory    testutils.SerialPortFactory
	events         chan Event
	path           string
	baud           int
	reconnectDelay time.Duration
}

func NewSession(path string, baud int, reconnectDelay time.Duration) *Session {
	return &Session{
		portFactory:    testutils.DefaultSerialPortFactory,
		events:         make(chan Event, eventBuffer),
		path:           path,
		baud:           baud,
		reconnectDelay: reconnectDelay,
	}
}

// Events returns the channel of session events, consumed by the service
// control loop.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) Path() string {
	return s.path
}

// Run blocks until ctx is cancelled, maintaining the connection to the
// scale. Open failures and read errors report offline status, wait the
// reconnect delay and retry; there is no backoff growth because hardware
// reconnection is the common case, not overload.
func (s *Session) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		port, err := s.portFactory(s.path, &serial.Mode{
			BaudRate: s.baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			log.Debug().Err(err).Msgf("failed to open scale port: %s", s.path)
			s.emit(Event{Kind: EventOffline, Err: err.Error()})
			if !sleepContext(ctx, s.reconnectDelay) {
				return
			}
			continue
		}

		if err := port.SetReadTimeout(readTimeout); err != nil {
			log.Warn().Err(err).Msg("failed to set scale read timeout")
			_ = port.Close()
			s.emit(Event{Kind: EventOffline, Err: err.Error()})
			if !sleepContext(ctx, s.reconnectDelay) {
				return
			}
			continue
		}

		log.Info().Msgf("opened scale port: %s", s.path)
		s.emit(Event{Kind: EventConnected})

		err = s.readLoop(ctx, port)
		if closeErr := port.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("error closing scale port")
		}

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			log.Warn().Err(err).Msg("scale read failed, reconnecting")
			s.emit(Event{Kind: EventOffline, Err: err.Error()})
		}

		if !sleepContext(ctx, s.reconnectDelay) {
			return
		}
	}
}

// readLoop reads the port until ctx is cancelled or an I/O error occurs.
// A read timeout yields zero bytes and loops again; blank and unparsable
// lines are ignored.
func (s *Session) readLoop(ctx context.Context, port testutils.SerialPort) error {
	buf := make([]byte, 1024)
	var lineBuf []byte
	overflowed := false

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := port.Read(buf)

		// Process any bytes read, even if there's an error
		for i := range n {
			b := buf[i]

			// Handle both \n and \r as line delimiters
			if b == '\n' || b == '\r' {
				if overflowed {
					overflowed = false
					lineBuf = lineBuf[:0]
					continue
				}

				if len(lineBuf) > 0 {
					s.handleLine(lineBuf)
					lineBuf = lineBuf[:0]
				}
				continue
			}

			if overflowed {
				continue
			}

			if len(lineBuf) >= maxLineSize {
				log.Warn().Str("path", s.path).Msg("line overflow, discarding data until next delimiter")
				lineBuf = lineBuf[:0]
				overflowed = true
				continue
			}

			lineBuf = append(lineBuf, b)
		}

		if err != nil {
			return err
		}
	}
}

func (s *Session) handleLine(line []byte) {
	if strings.TrimSpace(string(line)) == "" {
		return
	}

	weight, ok := ParseWeight(line)
	if !ok {
		log.Debug().Msgf("unparsed scale line: %q", string(line))
		return
	}

	s.emit(Event{Kind: EventWeight, Weight: weight})
}

// emit delivers an event without ever blocking the read loop: if the
// consumer has fallen behind, the oldest buffered event is dropped to make
// room.
func (s *Session) emit(ev Event) {
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
