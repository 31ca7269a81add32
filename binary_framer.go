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

import "bytes"

const (
	binaryStart = 0x7B
	binaryEnd   = 0x7D
)

// binaryHeader is the cache CheckFrame populates for the Binary framer.
type binaryHeader struct {
	unitID uint8
	start  int // index of 0x7B
	end    int // index of 0x7D
	valid  bool
}

// BinaryFramer implements Framer for the proprietary delimiter-framed
// format: '{' uid fn body crc(2) '}'. Delimiter bytes appearing in the
// payload or CRC are not escaped; see checkCRC16LE/crc16LE note in
// DESIGN.md on the CRC's wire endianness.
type BinaryFramer struct {
	buf    byteBuffer
	header binaryHeader
	logger *SimpleLogger
}

// NewBinaryFramer returns an empty Binary framer. A nil logger discards
// its trace output.
func NewBinaryFramer(logger *SimpleLogger) *BinaryFramer {
	return &BinaryFramer{logger: orDiscard(logger)}
}

// AddToFrame implements Framer.
func (f *BinaryFramer) AddToFrame(data []byte) {
	f.buf.append(data)
}

func (f *BinaryFramer) findFrame() (start, end int, ok bool) {
	b := f.buf.bytes()
	start = bytes.IndexByte(b, binaryStart)
	if start < 0 {
		return 0, 0, false
	}
	endOffset := bytes.IndexByte(b[start+1:], binaryEnd)
	if endOffset < 0 {
		return start, 0, false
	}
	return start, start + 1 + endOffset, true
}

// IsFrameReady implements Framer.
func (f *BinaryFramer) IsFrameReady() bool {
	_, _, ok := f.findFrame()
	return ok
}

// CheckFrame implements Framer.
func (f *BinaryFramer) CheckFrame() bool {
	f.header = binaryHeader{}
	start, end, ok := f.findFrame()
	if !ok {
		return false
	}
	inner := f.buf.bytes()[start+1 : end]
	if len(inner) < 3 {
		return false
	}
	if !checkCRC16LE(inner) {
		return false
	}
	f.header = binaryHeader{unitID: inner[0], start: start, end: end, valid: true}
	return true
}

// GetFrame implements Framer.
func (f *BinaryFramer) GetFrame() []byte {
	if !f.header.valid {
		return nil
	}
	b := f.buf.bytes()
	return append([]byte(nil), b[f.header.start+2:f.header.end-2]...)
}

// AdvanceFrame implements Framer. On a failed check, bytes up to and
// including a found start delimiter are dropped so the next scan starts
// fresh; if no start delimiter was found at all, the whole buffer is
// discarded.
func (f *BinaryFramer) AdvanceFrame() {
	if f.header.valid {
		f.buf.drop(f.header.end + 1)
		f.header = binaryHeader{}
		return
	}
	start, _, found := f.findFrame()
	if !found && bytes.IndexByte(f.buf.bytes(), binaryStart) < 0 {
		f.logger.Write([]byte("DEBUG: Binary resync, no start delimiter buffered, discarding all"))
		f.buf.drop(f.buf.len())
		return
	}
	f.logger.Write([]byte("DEBUG: Binary resync, dropping past stale start delimiter"))
	f.buf.drop(start + 1)
}

// PopulateResult implements Framer.
func (f *BinaryFramer) PopulateResult(pdu PDU) {
	pdu.GetHeader().UnitID = f.header.unitID
}

// BuildPacket implements Framer.
func (f *BinaryFramer) BuildPacket(pdu PDU) ([]byte, error) {
	body, err := pdu.Encode()
	if err != nil {
		return nil, err
	}
	h := pdu.GetHeader()
	inner := make([]byte, 0, 2+len(body)+2)
	inner = append(inner, h.UnitID, h.FunctionCode)
	inner = append(inner, body...)
	trailer := crc16LE(inner)
	inner = append(inner, trailer[0], trailer[1])

	packet := make([]byte, 0, len(inner)+2)
	packet = append(packet, binaryStart)
	packet = append(packet, inner...)
	packet = append(packet, binaryEnd)
	return packet, nil
}
