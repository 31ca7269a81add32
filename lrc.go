package modbus

// lrc implements the running Modbus LRC-8 accumulator: the two's-complement
// negation of the sum, mod 256, of every byte pushed into it. It matches the
// original goburrow/modbus lrc type that lrc_test.go exercises.
type lrc uint8

// reset reinitialises the accumulator to zero.
func (l *lrc) reset() *lrc {
	*l = 0
	return l
}

// pushByte folds a single byte into the running sum.
func (l *lrc) pushByte(b byte) *lrc {
	*l += lrc(b)
	return l
}

// pushBytes folds each byte of data into the running sum in order.
func (l *lrc) pushBytes(data []byte) *lrc {
	for _, b := range data {
		l.pushByte(b)
	}
	return l
}

// value returns the two's-complement LRC-8 checksum of the bytes pushed so far.
func (l *lrc) value() byte {
	return byte(-*l)
}

// LRC8 computes the Modbus LRC-8 checksum over data.
func LRC8(data []byte) byte {
	var l lrc
	l.reset()
	l.pushBytes(data)
	return l.value()
}
