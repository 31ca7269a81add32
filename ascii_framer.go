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
	"bytes"
	"encoding/hex"
)

const (
	asciiStart = ':'
	asciiCR    = '\r'
	asciiLF    = '\n'
)

// asciiHeader is the cache CheckFrame populates for the ASCII framer.
type asciiHeader struct {
	unitID  uint8
	lrc     byte
	start   int // index of ':' within the buffer
	crlfEnd int // index one past the trailing '\n'
	valid   bool
}

// ASCIIFramer implements Framer for the printable-hex wire format:
// ':' hex(uid) hex(function) hex(body...) hex(lrc) CR LF.
type ASCIIFramer struct {
	buf    byteBuffer
	header asciiHeader
	logger *SimpleLogger
}

// NewASCIIFramer returns an empty ASCII framer. A nil logger discards its
// trace output.
func NewASCIIFramer(logger *SimpleLogger) *ASCIIFramer {
	return &ASCIIFramer{logger: orDiscard(logger)}
}

// AddToFrame implements Framer.
func (f *ASCIIFramer) AddToFrame(data []byte) {
	f.buf.append(data)
}

func (f *ASCIIFramer) findFrame() (start, crlfEnd int, ok bool) {
	b := f.buf.bytes()
	start = bytes.IndexByte(b, asciiStart)
	if start < 0 {
		return 0, 0, false
	}
	crlf := bytes.Index(b[start:], []byte{asciiCR, asciiLF})
	if crlf < 0 {
		return start, 0, false
	}
	return start, start + crlf + 2, true
}

// IsFrameReady implements Framer.
func (f *ASCIIFramer) IsFrameReady() bool {
	_, _, ok := f.findFrame()
	return ok
}

// CheckFrame implements Framer.
func (f *ASCIIFramer) CheckFrame() bool {
	f.header = asciiHeader{}
	start, crlfEnd, ok := f.findFrame()
	if !ok {
		return false
	}
	hexSpan := f.buf.bytes()[start+1 : crlfEnd-2]
	decoded := make([]byte, hex.DecodedLen(len(hexSpan)))
	if _, err := hex.Decode(decoded, hexSpan); err != nil {
		return false
	}
	if len(decoded) < 3 {
		return false
	}
	body, trailer := decoded[:len(decoded)-1], decoded[len(decoded)-1]
	if LRC8(body) != trailer {
		return false
	}
	f.header = asciiHeader{
		unitID:  decoded[0],
		lrc:     trailer,
		start:   start,
		crlfEnd: crlfEnd,
		valid:   true,
	}
	return true
}

// GetFrame implements Framer.
func (f *ASCIIFramer) GetFrame() []byte {
	if !f.header.valid {
		return nil
	}
	hexSpan := f.buf.bytes()[f.header.start+1 : f.header.crlfEnd-2]
	decoded := make([]byte, hex.DecodedLen(len(hexSpan)))
	hex.Decode(decoded, hexSpan)
	return decoded[1 : len(decoded)-1]
}

// AdvanceFrame implements Framer. On a failed check, bytes up to and
// including a found start delimiter are dropped so the next scan starts
// fresh; if no delimiter was found at all, the whole buffer is discarded.
func (f *ASCIIFramer) AdvanceFrame() {
	if f.header.valid {
		f.buf.drop(f.header.crlfEnd)
		f.header = asciiHeader{}
		return
	}
	start, _, found := f.findFrame()
	if !found {
		if bytes.IndexByte(f.buf.bytes(), asciiStart) < 0 {
			f.logger.Write([]byte("DEBUG: ASCII resync, no start delimiter buffered, discarding all"))
			f.buf.drop(f.buf.len())
			return
		}
		f.logger.Write([]byte("DEBUG: ASCII resync, dropping past stale start delimiter"))
		f.buf.drop(start + 1)
		return
	}
	f.buf.drop(start + 1)
}

// PopulateResult implements Framer.
func (f *ASCIIFramer) PopulateResult(pdu PDU) {
	pdu.GetHeader().UnitID = f.header.unitID
}

// BuildPacket implements Framer.
func (f *ASCIIFramer) BuildPacket(pdu PDU) ([]byte, error) {
	body, err := pdu.Encode()
	if err != nil {
		return nil, err
	}
	h := pdu.GetHeader()
	decoded := make([]byte, 0, 2+len(body)+1)
	decoded = append(decoded, h.UnitID, h.FunctionCode)
	decoded = append(decoded, body...)
	decoded = append(decoded, LRC8(decoded))

	encoded := make([]byte, hex.EncodedLen(len(decoded)))
	hex.Encode(encoded, decoded)
	upper := bytes.ToUpper(encoded)

	packet := make([]byte, 0, 1+len(upper)+2)
	packet = append(packet, asciiStart)
	packet = append(packet, upper...)
	packet = append(packet, asciiCR, asciiLF)
	return packet, nil
}
