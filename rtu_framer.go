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

// rtuHeader is the cache CheckFrame populates for the RTU framer.
type rtuHeader struct {
	unitID uint8
	length int // total on-wire length, uid..crc inclusive
	valid  bool
}

// RTUFramer implements Framer for the serial RTU wire format:
// uid(1) fn(1) body(N) crc(2, little-endian). Body length has no
// transport-level field; it is derived from decoder's function-code shape
// table, so RTUFramer needs a Decoder to find a frame's end.
type RTUFramer struct {
	buf     byteBuffer
	decoder Decoder
	header  rtuHeader
	logger  *SimpleLogger
}

// NewRTUFramer returns an empty RTU framer that consults decoder to size
// frames by function code. A nil logger discards its trace output.
func NewRTUFramer(decoder Decoder, logger *SimpleLogger) *RTUFramer {
	return &RTUFramer{decoder: decoder, logger: orDiscard(logger)}
}

// AddToFrame implements Framer.
func (f *RTUFramer) AddToFrame(data []byte) {
	f.buf.append(data)
}

// IsFrameReady implements Framer.
func (f *RTUFramer) IsFrameReady() bool {
	return f.buf.len() >= 4
}

// frameLength computes the total on-wire frame length for the function
// code at the head of the buffer, using the decoder's shape table. ok is
// false if not enough bytes have arrived yet to know the length, or if
// the function code is unrecognised.
func (f *RTUFramer) frameLength() (total int, ok bool) {
	b := f.buf.bytes()
	if len(b) < 2 {
		return 0, false
	}
	functionCode := b[1]
	shape, ok := f.decoder.Shape(functionCode)
	if !ok {
		return 0, false
	}
	bodyLen, ok := shape.BodyLength(b[2:])
	if !ok {
		return 0, false
	}
	total = 2 + bodyLen + 2 // uid + fn + body + crc
	if len(b) < total {
		return 0, false
	}
	return total, true
}

// CheckFrame implements Framer. header is only cached once both the
// length and the CRC have validated, so a CRC failure leaves header
// invalid and AdvanceFrame resyncs one byte at a time.
func (f *RTUFramer) CheckFrame() bool {
	f.header = rtuHeader{}
	if !f.IsFrameReady() {
		return false
	}
	total, ok := f.frameLength()
	if !ok {
		return false
	}
	if !checkCRC16LE(f.buf.bytes()[:total]) {
		return false
	}
	f.header = rtuHeader{unitID: f.buf.bytes()[0], length: total, valid: true}
	return true
}

// GetFrame implements Framer.
func (f *RTUFramer) GetFrame() []byte {
	if !f.header.valid {
		return nil
	}
	b := f.buf.bytes()
	return append([]byte(nil), b[1:f.header.length-2]...)
}

// AdvanceFrame implements Framer. A check failure resyncs one byte at a
// time, since RTU has no delimiter to scan for.
func (f *RTUFramer) AdvanceFrame() {
	if f.header.valid {
		f.buf.drop(f.header.length)
	} else {
		f.logger.Write([]byte("DEBUG: RTU resync, dropping 1 byte"))
		f.buf.drop(1)
	}
	f.header = rtuHeader{}
}

// PopulateResult implements Framer.
func (f *RTUFramer) PopulateResult(pdu PDU) {
	pdu.GetHeader().UnitID = f.header.unitID
}

// BuildPacket implements Framer.
func (f *RTUFramer) BuildPacket(pdu PDU) ([]byte, error) {
	body, err := pdu.Encode()
	if err != nil {
		return nil, err
	}
	h := pdu.GetHeader()
	packet := make([]byte, 0, 2+len(body)+2)
	packet = append(packet, h.UnitID, h.FunctionCode)
	packet = append(packet, body...)
	trailer := crc16LE(packet)
	packet = append(packet, trailer[0], trailer[1])
	return packet, nil
}
