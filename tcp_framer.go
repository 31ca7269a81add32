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
	"encoding/binary"
	"fmt"
)

// tcpHeader is the cache CheckFrame populates for the MBAP framer.
type tcpHeader struct {
	transactionID uint16
	protocolID    uint16
	length        uint16 // unit + function + body
	unitID        uint8
	valid         bool
}

// TCPFramer implements Framer for the TCP/MBAP wire format:
// tid(2) pid(2) len(2) uid(1) fn(1) body(len-2), all big-endian.
type TCPFramer struct {
	buf    byteBuffer
	header tcpHeader
	logger *SimpleLogger
}

// NewTCPFramer returns an empty TCP/MBAP framer. A nil logger discards its
// trace output.
func NewTCPFramer(logger *SimpleLogger) *TCPFramer {
	return &TCPFramer{logger: orDiscard(logger)}
}

// AddToFrame implements Framer.
func (f *TCPFramer) AddToFrame(data []byte) {
	f.buf.append(data)
}

// IsFrameReady implements Framer.
func (f *TCPFramer) IsFrameReady() bool {
	if f.buf.len() < 8 {
		return false
	}
	length := binary.BigEndian.Uint16(f.buf.bytes()[4:6])
	return f.buf.len() >= 6+int(length)
}

// CheckFrame implements Framer.
func (f *TCPFramer) CheckFrame() bool {
	f.header = tcpHeader{}
	if !f.IsFrameReady() {
		return false
	}
	b := f.buf.bytes()
	length := binary.BigEndian.Uint16(b[4:6])
	if length < 2 {
		return false
	}
	f.header = tcpHeader{
		transactionID: binary.BigEndian.Uint16(b[0:2]),
		protocolID:    binary.BigEndian.Uint16(b[2:4]),
		length:        length,
		unitID:        b[6],
		valid:         true,
	}
	return true
}

// GetFrame implements Framer.
func (f *TCPFramer) GetFrame() []byte {
	if !f.header.valid {
		return nil
	}
	b := f.buf.bytes()
	end := 6 + int(f.header.length)
	return append([]byte(nil), b[7:end]...)
}

// AdvanceFrame implements Framer. A malformed header forfeits the whole
// buffer rather than guessing at a resync point: there is no reliable
// length to skip past.
func (f *TCPFramer) AdvanceFrame() {
	if f.header.valid {
		f.buf.drop(6 + int(f.header.length))
	} else {
		f.logger.Write([]byte(fmt.Sprintf("WARNING: discarding %d buffered bytes after malformed MBAP header", f.buf.len())))
		f.buf.drop(f.buf.len())
	}
	f.header = tcpHeader{}
}

// PopulateResult implements Framer.
func (f *TCPFramer) PopulateResult(pdu PDU) {
	h := pdu.GetHeader()
	h.TransactionID = f.header.transactionID
	h.ProtocolID = f.header.protocolID
	h.UnitID = f.header.unitID
}

// BuildPacket implements Framer.
func (f *TCPFramer) BuildPacket(pdu PDU) ([]byte, error) {
	body, err := pdu.Encode()
	if err != nil {
		return nil, err
	}
	h := pdu.GetHeader()
	length := uint16(2 + len(body))
	packet := make([]byte, 7, 7+len(body))
	binary.BigEndian.PutUint16(packet[0:2], h.TransactionID)
	binary.BigEndian.PutUint16(packet[2:4], h.ProtocolID)
	binary.BigEndian.PutUint16(packet[4:6], length)
	packet[6] = h.UnitID
	packet = append(packet, h.FunctionCode)
	packet = append(packet, body...)
	return packet, nil
}
