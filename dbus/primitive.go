package dbus

import (
	"encoding/binary"
	"math"
)

// orderFor maps a D-Bus byte-order flag ('l' or 'B') to the
// corresponding encoding/binary.ByteOrder, or nil if the flag is
// unrecognized.
func orderFor(flag byte) binary.ByteOrder {
	switch flag {
	case byteOrderLittle:
		return binary.LittleEndian
	case byteOrderBig:
		return binary.BigEndian
	default:
		return nil
	}
}

// wireReader is the Primitive Reader (spec.md §4.2): it reads
// fixed-width integers and doubles out of a ByteBuffer at a configured
// endianness, tracking a local byte offset (from the start of the
// message or the start of the body, per caller) so that alignment can
// be computed. Every method is transactional: on insufficient data the
// buffer's cursor and the reader's offset are both left untouched.
type wireReader struct {
	buf    *ByteBuffer
	order  binary.ByteOrder
	offset int
}

func newWireReader(buf *ByteBuffer, order binary.ByteOrder) *wireReader {
	return &wireReader{buf: buf, order: order}
}

// align advances the reader to the next boundary-aligned offset,
// consuming padding bytes from the buffer.
func (r *wireReader) align(boundary int) bool {
	off, ok := r.buf.Align(r.offset, boundary)
	if !ok {
		return false
	}
	r.offset = off
	return true
}

// readBytes reads n raw bytes with no alignment and no interpretation.
func (r *wireReader) readBytes(n int) ([]byte, bool) {
	p, ok := r.buf.Peek(n)
	if !ok {
		return nil, false
	}
	r.buf.Consume(n)
	r.offset += n
	return p, true
}

func (r *wireReader) readByte() (byte, bool) {
	p, ok := r.readBytes(1)
	if !ok {
		return 0, false
	}
	return p[0], true
}

func (r *wireReader) readUint16() (uint16, bool) {
	sp := r.buf.Savepoint()
	off := r.offset
	if !r.align(2) {
		return 0, false
	}
	p, ok := r.readBytes(2)
	if !ok {
		r.buf.Rollback(sp)
		r.offset = off
		return 0, false
	}
	return r.order.Uint16(p), true
}

func (r *wireReader) readUint32() (uint32, bool) {
	sp := r.buf.Savepoint()
	off := r.offset
	if !r.align(4) {
		return 0, false
	}
	p, ok := r.readBytes(4)
	if !ok {
		r.buf.Rollback(sp)
		r.offset = off
		return 0, false
	}
	return r.order.Uint32(p), true
}

func (r *wireReader) readUint64() (uint64, bool) {
	sp := r.buf.Savepoint()
	off := r.offset
	if !r.align(8) {
		return 0, false
	}
	p, ok := r.readBytes(8)
	if !ok {
		r.buf.Rollback(sp)
		r.offset = off
		return 0, false
	}
	return r.order.Uint64(p), true
}

func (r *wireReader) readInt16() (int16, bool) {
	v, ok := r.readUint16()
	return int16(v), ok
}

func (r *wireReader) readInt32() (int32, bool) {
	v, ok := r.readUint32()
	return int32(v), ok
}

func (r *wireReader) readInt64() (int64, bool) {
	v, ok := r.readUint64()
	return int64(v), ok
}

func (r *wireReader) readDouble() (float64, bool) {
	v, ok := r.readUint64()
	if !ok {
		return 0, false
	}
	return math.Float64frombits(v), true
}

// ReadLine scans buf for a CR LF terminator starting at the cursor and
// returns the bytes before it, decoded as UTF-8, with the cursor
// advanced past the terminator. It reports false (spec.md §4.2:
// "yields insufficient data") without consuming anything if no CR LF
// is found yet in the buffered bytes.
func ReadLine(buf *ByteBuffer) (string, bool) {
	data, ok := buf.Peek(buf.Remaining())
	if !ok {
		return "", false
	}
	for i := 0; i+1 < len(data); i++ {
		if data[i] == '\r' && data[i+1] == '\n' {
			buf.Consume(i + 2)
			return string(data[:i]), true
		}
	}
	return "", false
}
