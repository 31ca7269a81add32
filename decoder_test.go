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

import "testing"

func TestMessageRegistryExceptionBeatsRegistration(t *testing.T) {
	r := newMessageRegistry()
	r.register(FunctionReadHoldingRegisters, byteCountShape(0), func() Message { return &ReadResponse{} })

	msg, err := r.Lookup(FunctionReadHoldingRegisters | ExceptionBit)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, ok := msg.(*ExceptionMessage); !ok {
		t.Fatalf("expected *ExceptionMessage, got %T", msg)
	}
}

func TestMessageRegistryUnknownFunction(t *testing.T) {
	r := newMessageRegistry()
	_, err := r.Lookup(0x2B)
	if err == nil {
		t.Fatal("expected ErrUnknownFunction")
	}
	if _, ok := err.(*ErrUnknownFunction); !ok {
		t.Fatalf("expected *ErrUnknownFunction, got %T", err)
	}
}

func TestBodyShapeFixed(t *testing.T) {
	shape := fixedShape(4)
	n, ok := shape.BodyLength(nil)
	if !ok || n != 4 {
		t.Fatalf("BodyLength = (%d, %v), want (4, true)", n, ok)
	}
}

func TestBodyShapeByteCountWaitsForOffset(t *testing.T) {
	shape := byteCountShape(4)
	if _, ok := shape.BodyLength([]byte{0, 0, 0}); ok {
		t.Fatal("expected ok=false before the byte-count byte has arrived")
	}
	n, ok := shape.BodyLength([]byte{0, 0, 0, 0, 3})
	if !ok || n != 8 {
		t.Fatalf("BodyLength = (%d, %v), want (8, true)", n, ok)
	}
}

func TestExceptionMessageDecodeAndError(t *testing.T) {
	e := &ExceptionMessage{Header: Header{UnitID: 1, FunctionCode: FunctionReadHoldingRegisters | ExceptionBit}}
	if err := e.Decode([]byte{0x02}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if e.ExceptionCode != 0x02 {
		t.Fatalf("ExceptionCode = %#x, want 0x02", e.ExceptionCode)
	}
	if e.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}
