// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package modbus

import (
	"context"
	"fmt"
	"io"
	"sync"

	goserial "github.com/hootrhino/goserial"
)

// SerialTransport drives a Framer over a raw byte-oriented port: reads are
// pumped into the framer's buffer until a complete frame checks out or the
// caller's context expires, and writes go through BuildPacket. It owns the
// framer exclusively, matching the one-reader-per-framer scheduling model.
type SerialTransport struct {
	mu      sync.Mutex
	port    io.ReadWriteCloser
	framer  Framer
	readBuf []byte
	logger  *SimpleLogger
}

// NewSerialTransport wraps an already-open port around framer. readBufSize
// bounds each individual Read call; 256 matches the largest RTU ADU. A nil
// logger discards trace output.
func NewSerialTransport(port io.ReadWriteCloser, framer Framer, readBufSize int, logger *SimpleLogger) *SerialTransport {
	if readBufSize <= 0 {
		readBufSize = 256
	}
	return &SerialTransport{
		port:    port,
		framer:  framer,
		readBuf: make([]byte, readBufSize),
		logger:  orDiscard(logger),
	}
}

// OpenRTUSerialTransport opens a serial port via goserial with cfg and
// returns a transport driving an RTUFramer over it.
func OpenRTUSerialTransport(cfg *goserial.Config, decoder Decoder, logger *SimpleLogger) (*SerialTransport, error) {
	port, err := goserial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("modbus: open serial port: %w", err)
	}
	return NewSerialTransport(port, NewRTUFramer(decoder, logger), 256, logger), nil
}

// Close closes the underlying port.
func (t *SerialTransport) Close() error {
	return t.port.Close()
}

// Send serialises pdu via the framer and writes the complete packet,
// retrying partial writes until the whole packet is on the wire or a write
// fails.
func (t *SerialTransport) Send(pdu PDU) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	packet, err := t.framer.BuildPacket(pdu)
	if err != nil {
		return err
	}
	written := 0
	for written < len(packet) {
		n, err := t.port.Write(packet[written:])
		if err != nil {
			return fmt.Errorf("modbus: write failed after %d of %d bytes: %w", written, len(packet), err)
		}
		written += n
	}
	return nil
}

// Receive blocks, pumping bytes from the port into the framer, until a
// complete frame checks out, ctx is cancelled, or a read fails. On success
// it returns the frame (function code + body) and advances the framer past
// it.
func (t *SerialTransport) Receive(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if t.framer.CheckFrame() {
			frame := t.framer.GetFrame()
			t.framer.AdvanceFrame()
			return frame, nil
		}
		if t.framer.IsFrameReady() {
			// Ready but invalid: malformed or integrity failure. Resync and
			// keep looking at what's already buffered before reading more.
			t.framer.AdvanceFrame()
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, err := t.readWithContext(ctx)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			t.framer.AddToFrame(t.readBuf[:n])
		}
	}
}

func (t *SerialTransport) readWithContext(ctx context.Context) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := t.port.Read(t.readBuf)
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		return r.n, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
