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

// Framer is the shared contract every transport variant implements. A
// Framer instance is owned by exactly one transport reader and must never
// be shared across goroutines without external synchronisation: all of
// its operations run synchronously on the caller's own thread, per the
// cooperative scheduling model transports follow here.
type Framer interface {
	// AddToFrame appends data to the internal buffer. It never rejects
	// malformed input; malformed bytes are only ever discovered later, by
	// CheckFrame or AdvanceFrame.
	AddToFrame(data []byte)

	// IsFrameReady reports whether the buffer MAY hold a complete frame.
	// It is a cheap length check, not a validity check.
	IsFrameReady() bool

	// CheckFrame reports whether the buffer currently starts with a
	// well-formed, integrity-valid frame. It is idempotent and
	// side-effect-free except that it may cache parsed framing fields for
	// GetFrame/PopulateResult/AdvanceFrame to reuse.
	CheckFrame() bool

	// GetFrame returns the current frame's PDU payload (function code
	// byte plus body), or nil if CheckFrame is false. It never advances
	// the buffer.
	GetFrame() []byte

	// AdvanceFrame consumes the current frame's full on-wire length from
	// the buffer. If CheckFrame is false, it instead advances by the
	// minimum amount that restores alignment for the variant.
	AdvanceFrame()

	// PopulateResult stamps transport-level header fields cached by the
	// last CheckFrame into pdu's header. Fields a transport does not
	// carry are left at zero.
	PopulateResult(pdu PDU)

	// BuildPacket serialises pdu into a complete outbound ADU: header,
	// encoded body, and any trailer or integrity bytes the variant adds.
	BuildPacket(pdu PDU) ([]byte, error)
}

// byteBuffer is the growable, front-consumable buffer every Framer
// implementation keeps its unparsed bytes in. Append is amortised O(1);
// drop is O(k) in the number of bytes dropped, with no allocation beyond
// the initial backing array until it needs to grow again.
type byteBuffer struct {
	data []byte
}

func (b *byteBuffer) append(p []byte) {
	b.data = append(b.data, p...)
}

func (b *byteBuffer) len() int {
	return len(b.data)
}

func (b *byteBuffer) bytes() []byte {
	return b.data
}

// drop removes the first n bytes, or the entire buffer if n exceeds its
// length.
func (b *byteBuffer) drop(n int) {
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	b.data = b.data[n:]
}
