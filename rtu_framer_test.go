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
	"testing"
)

func TestRTUFramerCheckAndGetFrame(t *testing.T) {
	f := NewRTUFramer(NewRequestDecoder(), nil)
	f.AddToFrame([]byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0xfc, 0x1b})

	if !f.CheckFrame() {
		t.Fatal("expected checkFrame=true")
	}
	want := []byte{0x01, 0x00, 0x00, 0x00, 0x01}
	if got := f.GetFrame(); !bytes.Equal(got, want) {
		t.Errorf("getFrame = % x, want % x", got, want)
	}

	var pdu RawPDU
	f.PopulateResult(&pdu)
	if pdu.UnitID != 0 {
		t.Errorf("unitID mismatch: got %d, want 0", pdu.UnitID)
	}
}

func TestRTUFramerBuildPacket(t *testing.T) {
	f := NewRTUFramer(NewRequestDecoder(), nil)
	pdu := NewRawPDU(1, nil)
	pdu.UnitID = 0xff

	got, err := f.BuildPacket(pdu)
	if err != nil {
		t.Fatalf("BuildPacket: %v", err)
	}
	want := []byte{0xff, 0x01, 0x81, 0x80}
	if !bytes.Equal(got, want) {
		t.Errorf("buildPacket = % x, want % x", got, want)
	}
}

func TestRTUFramerUnknownFunctionWaits(t *testing.T) {
	f := NewRTUFramer(NewRequestDecoder(), nil)
	f.AddToFrame([]byte{0x00, 0x7f, 0x00, 0x00})
	if f.CheckFrame() {
		t.Fatal("expected checkFrame=false for an unregistered function code")
	}
}

func TestRTUFramerResyncDropsOneByte(t *testing.T) {
	f := NewRTUFramer(NewRequestDecoder(), nil)
	// Corrupt CRC on an otherwise well-formed frame.
	f.AddToFrame([]byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00})
	if f.CheckFrame() {
		t.Fatal("expected checkFrame=false for a bad CRC")
	}
	before := f.buf.len()
	f.AdvanceFrame()
	if f.buf.len() != before-1 {
		t.Fatalf("expected AdvanceFrame to drop exactly 1 byte, buffer went from %d to %d", before, f.buf.len())
	}
}

func TestRTUFramerRoundTripThroughDecoder(t *testing.T) {
	framer := NewRTUFramer(NewResponseDecoder(), nil)
	resp := &ReadResponse{Data: []byte{0xff, 0xff}}
	resp.FunctionCode = FunctionReadHoldingRegisters
	resp.UnitID = 0x11

	packet, err := framer.BuildPacket(resp)
	if err != nil {
		t.Fatalf("BuildPacket: %v", err)
	}

	framer.AddToFrame(packet)
	if !framer.CheckFrame() {
		t.Fatal("expected checkFrame=true on the built packet")
	}
	frame := framer.GetFrame()
	decoder := NewResponseDecoder()
	msg, err := decoder.Lookup(frame[0])
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if err := msg.Decode(frame[1:]); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := msg.(*ReadResponse)
	if !bytes.Equal(got.Data, resp.Data) {
		t.Errorf("round trip data mismatch: got % x, want % x", got.Data, resp.Data)
	}
}
