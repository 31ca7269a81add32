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

// Standard Modbus function codes this registry understands. Naming and
// values follow aldas-go-modbus-client/packet's constants.
const (
	FunctionReadCoils              = uint8(1)
	FunctionReadDiscreteInputs     = uint8(2)
	FunctionReadHoldingRegisters   = uint8(3)
	FunctionReadInputRegisters     = uint8(4)
	FunctionWriteSingleCoil        = uint8(5)
	FunctionWriteSingleRegister    = uint8(6)
	FunctionWriteMultipleCoils     = uint8(15)
	FunctionWriteMultipleRegisters = uint8(16)
)

// ReadRequest is the request body shared by function codes 1-4: a start
// address and an item quantity.
type ReadRequest struct {
	Header
	StartAddress uint16
	Quantity     uint16
}

// GetHeader implements PDU.
func (r *ReadRequest) GetHeader() *Header { return &r.Header }

// Encode implements PDU.
func (r *ReadRequest) Encode() ([]byte, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], r.StartAddress)
	binary.BigEndian.PutUint16(body[2:4], r.Quantity)
	return body, nil
}

// Decode implements Message.
func (r *ReadRequest) Decode(body []byte) error {
	if len(body) != 4 {
		return fmt.Errorf("modbus: read request body must be 4 bytes, got %d", len(body))
	}
	r.StartAddress = binary.BigEndian.Uint16(body[0:2])
	r.Quantity = binary.BigEndian.Uint16(body[2:4])
	return nil
}

// ReadResponse is the response body shared by function codes 1-4: a byte
// count followed by that many data bytes (packed coils, or big-endian
// register words).
type ReadResponse struct {
	Header
	Data []byte
}

// GetHeader implements PDU.
func (r *ReadResponse) GetHeader() *Header { return &r.Header }

// Encode implements PDU.
func (r *ReadResponse) Encode() ([]byte, error) {
	if len(r.Data) > 255 {
		return nil, fmt.Errorf("modbus: read response data too long: %d bytes", len(r.Data))
	}
	body := make([]byte, 1+len(r.Data))
	body[0] = byte(len(r.Data))
	copy(body[1:], r.Data)
	return body, nil
}

// Decode implements Message.
func (r *ReadResponse) Decode(body []byte) error {
	if len(body) < 1 || len(body) != 1+int(body[0]) {
		return fmt.Errorf("modbus: read response byte count does not match body length")
	}
	r.Data = append([]byte(nil), body[1:]...)
	return nil
}

// SingleWriteRequest is the request/response body shared by function
// codes 5 and 6: an address and a single 16-bit value (a coil request
// packs 0xFF00/0x0000 into that value).
type SingleWriteRequest struct {
	Header
	Address uint16
	Value   uint16
}

// GetHeader implements PDU.
func (w *SingleWriteRequest) GetHeader() *Header { return &w.Header }

// Encode implements PDU.
func (w *SingleWriteRequest) Encode() ([]byte, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], w.Address)
	binary.BigEndian.PutUint16(body[2:4], w.Value)
	return body, nil
}

// Decode implements Message.
func (w *SingleWriteRequest) Decode(body []byte) error {
	if len(body) != 4 {
		return fmt.Errorf("modbus: single write body must be 4 bytes, got %d", len(body))
	}
	w.Address = binary.BigEndian.Uint16(body[0:2])
	w.Value = binary.BigEndian.Uint16(body[2:4])
	return nil
}

// MultiWriteRequest is the request body shared by function codes 15 and
// 16: a start address, a quantity, and a byte-count-prefixed data block.
type MultiWriteRequest struct {
	Header
	StartAddress uint16
	Quantity     uint16
	Data         []byte
}

// GetHeader implements PDU.
func (w *MultiWriteRequest) GetHeader() *Header { return &w.Header }

// Encode implements PDU.
func (w *MultiWriteRequest) Encode() ([]byte, error) {
	if len(w.Data) > 255 {
		return nil, fmt.Errorf("modbus: multi write data too long: %d bytes", len(w.Data))
	}
	body := make([]byte, 5+len(w.Data))
	binary.BigEndian.PutUint16(body[0:2], w.StartAddress)
	binary.BigEndian.PutUint16(body[2:4], w.Quantity)
	body[4] = byte(len(w.Data))
	copy(body[5:], w.Data)
	return body, nil
}

// Decode implements Message.
func (w *MultiWriteRequest) Decode(body []byte) error {
	if len(body) < 5 || len(body) != 5+int(body[4]) {
		return fmt.Errorf("modbus: multi write byte count does not match body length")
	}
	w.StartAddress = binary.BigEndian.Uint16(body[0:2])
	w.Quantity = binary.BigEndian.Uint16(body[2:4])
	w.Data = append([]byte(nil), body[5:]...)
	return nil
}

// MultiWriteResponse is the response body shared by function codes 15 and
// 16: an echoed start address and quantity, with no data.
type MultiWriteResponse struct {
	Header
	StartAddress uint16
	Quantity     uint16
}

// GetHeader implements PDU.
func (w *MultiWriteResponse) GetHeader() *Header { return &w.Header }

// Encode implements PDU.
func (w *MultiWriteResponse) Encode() ([]byte, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], w.StartAddress)
	binary.BigEndian.PutUint16(body[2:4], w.Quantity)
	return body, nil
}

// Decode implements Message.
func (w *MultiWriteResponse) Decode(body []byte) error {
	if len(body) != 4 {
		return fmt.Errorf("modbus: multi write response body must be 4 bytes, got %d", len(body))
	}
	w.StartAddress = binary.BigEndian.Uint16(body[0:2])
	w.Quantity = binary.BigEndian.Uint16(body[2:4])
	return nil
}

// NewRequestDecoder returns the Decoder a server uses to interpret frames
// sent by a client: fixed-shape reads and single writes, byte-count-at-4
// multi writes.
func NewRequestDecoder() Decoder {
	r := newMessageRegistry()
	read := func() Message { return &ReadRequest{} }
	for _, fc := range []uint8{FunctionReadCoils, FunctionReadDiscreteInputs, FunctionReadHoldingRegisters, FunctionReadInputRegisters} {
		r.register(fc, fixedShape(4), read)
	}
	single := func() Message { return &SingleWriteRequest{} }
	r.register(FunctionWriteSingleCoil, fixedShape(4), single)
	r.register(FunctionWriteSingleRegister, fixedShape(4), single)
	multi := func() Message { return &MultiWriteRequest{} }
	r.register(FunctionWriteMultipleCoils, byteCountShape(4), multi)
	r.register(FunctionWriteMultipleRegisters, byteCountShape(4), multi)
	return r
}

// NewResponseDecoder returns the Decoder a client uses to interpret frames
// sent back by a server: byte-count-at-0 read responses, fixed-shape
// single and multi write responses.
func NewResponseDecoder() Decoder {
	r := newMessageRegistry()
	read := func() Message { return &ReadResponse{} }
	for _, fc := range []uint8{FunctionReadCoils, FunctionReadDiscreteInputs, FunctionReadHoldingRegisters, FunctionReadInputRegisters} {
		r.register(fc, byteCountShape(0), read)
	}
	single := func() Message { return &SingleWriteRequest{} }
	r.register(FunctionWriteSingleCoil, fixedShape(4), single)
	r.register(FunctionWriteSingleRegister, fixedShape(4), single)
	multi := func() Message { return &MultiWriteResponse{} }
	r.register(FunctionWriteMultipleCoils, fixedShape(4), multi)
	r.register(FunctionWriteMultipleRegisters, fixedShape(4), multi)
	return r
}
