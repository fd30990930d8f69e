package ext2

import (
	"bytes"
	"encoding/binary"
)

// All on-disk integers are little endian regardless of host byte order. Each
// decoder returns the value along with the number of bytes it consumed.

func DecodeUint16(b []byte) (uint16, int) {
	return binary.LittleEndian.Uint16(b), 2
}

func DecodeUint32(b []byte) (uint32, int) {
	return binary.LittleEndian.Uint32(b), 4
}

// decoder walks a fixed-size on-disk record field by field. Records are
// decoded from fixed-size arrays, so running off the end is a programming
// error and panics like any other out-of-range slice access.
type decoder struct {
	b   []byte
	off int
}

func (d *decoder) u16() uint16 {
	v, n := DecodeUint16(d.b[d.off:])
	d.off += n
	return v
}

func (d *decoder) u32() uint32 {
	v, n := DecodeUint32(d.b[d.off:])
	d.off += n
	return v
}

// bytes returns a copy of the next `n` bytes.
func (d *decoder) bytes(n int) []byte {
	out := make([]byte, n)
	d.off += copy(out, d.b[d.off:d.off+n])
	return out
}

// cstring decodes a NUL-padded fixed-width string field.
func (d *decoder) cstring(n int) string {
	b := d.b[d.off : d.off+n]
	d.off += n
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
