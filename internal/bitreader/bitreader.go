// Package bitreader provides named, bit-width-explicit field extraction for
// packed sub-byte descriptor fields, built on top of github.com/icza/bitio
// the way asticode/go-astits parses PSI sections. It is used by the NIT
// satellite and terrestrial delivery descriptor decoders; TS packet
// headers (internal/tsreasm), section headers (internal/section) and the
// table decoders' fixed fields use plain shift/mask arithmetic.
package bitreader

import (
	"bytes"
	"io"

	"github.com/icza/bitio"
)

// Reader wraps a bitio.Reader over an in-memory section/descriptor buffer
// and turns read errors other than io.EOF into a sticky Err rather than
// forcing every call site to check one. Reading past the end of the buffer
// does not set Err.
type Reader struct {
	r   *bitio.Reader
	Err error
}

// New returns a Reader positioned at the start of b.
func New(b []byte) *Reader {
	return &Reader{r: bitio.NewReader(bytes.NewReader(b))}
}

// Bits reads n bits (n <= 64) MSB-first and returns them right-aligned.
func (r *Reader) Bits(n uint8) uint64 {
	if r.Err != nil {
		return 0
	}
	v, err := r.r.ReadBits(n)
	if err != nil && err != io.EOF {
		r.Err = err
	}
	return v
}

// Bool reads a single bit as a boolean flag.
func (r *Reader) Bool() bool {
	return r.Bits(1) != 0
}

// Byte reads 8 bits.
func (r *Reader) Byte() byte {
	return byte(r.Bits(8))
}

// Uint16 reads 16 bits.
func (r *Reader) Uint16() uint16 {
	return uint16(r.Bits(16))
}

// Skip discards n bits.
func (r *Reader) Skip(n uint8) {
	for n > 32 {
		r.Bits(32)
		n -= 32
	}
	if n > 0 {
		r.Bits(n)
	}
}
