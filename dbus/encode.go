package dbus

import (
	"encoding/binary"
	"math"
)

// wireWriter is the companion encoder to wireReader: it serializes
// values at a configured endianness, tracking the same kind of local
// byte offset so that the alignment rules are applied identically in
// both directions (spec.md §1: "the symmetric serializer follows the
// same rules in reverse").
type wireWriter struct {
	buf    []byte
	order  binary.ByteOrder
	offset int
}

func newWireWriter(order binary.ByteOrder) *wireWriter {
	return &wireWriter{order: order}
}

func (w *wireWriter) align(boundary int) {
	pad := padding(w.offset, boundary)
	if pad == 0 {
		return
	}
	w.buf = append(w.buf, make([]byte, pad)...)
	w.offset += pad
}

func (w *wireWriter) writeRaw(b []byte) {
	w.buf = append(w.buf, b...)
	w.offset += len(b)
}

func (w *wireWriter) writeByte(b byte) {
	w.writeRaw([]byte{b})
}

func (w *wireWriter) writeUint16(v uint16) {
	w.align(2)
	b := make([]byte, 2)
	w.order.PutUint16(b, v)
	w.writeRaw(b)
}

func (w *wireWriter) writeUint32(v uint32) {
	w.align(4)
	b := make([]byte, 4)
	w.order.PutUint32(b, v)
	w.writeRaw(b)
}

func (w *wireWriter) writeUint64(v uint64) {
	w.align(8)
	b := make([]byte, 8)
	w.order.PutUint64(b, v)
	w.writeRaw(b)
}

// reserveUint32 aligns to 4, writes a placeholder uint32, and returns
// its buffer position so the caller can patch in the real value once
// it is known (used for array and dict byte-length prefixes).
func (w *wireWriter) reserveUint32() int {
	w.align(4)
	pos := len(w.buf)
	w.writeRaw(make([]byte, 4))
	return pos
}

func (w *wireWriter) patchUint32(pos int, v uint32) {
	w.order.PutUint32(w.buf[pos:pos+4], v)
}

func (w *wireWriter) writeWireString(s string) error {
	if err := validateStringContent(s); err != nil {
		return err
	}
	w.writeUint32(uint32(len(s)))
	w.writeRaw([]byte(s))
	w.writeByte(0)
	return nil
}

func (w *wireWriter) writeWireSignature(s string) error {
	if err := ValidateSignature(s); err != nil {
		return err
	}
	if len(s) > maxSignatureLength {
		return sigErr(s, "signature exceeds 255 bytes")
	}
	w.writeByte(byte(len(s)))
	w.writeRaw([]byte(s))
	w.writeByte(0)
	return nil
}

func validateStringContent(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return &InvalidEncodingError{Reason: "NUL byte embedded in string"}
		}
	}
	return nil
}

// writeValue is the Value Writer: the symmetric counterpart of
// readValue. It encodes v according to v.Kind, using the same
// alignment rules as the reader.
func writeValue(w *wireWriter, v Value) error {
	switch v.Kind {
	case KindByte:
		w.writeByte(v.Byte)
		return nil
	case KindBoolean:
		u := uint32(0)
		if v.Bool {
			u = 1
		}
		w.writeUint32(u)
		return nil
	case KindInt16:
		w.writeUint16(uint16(v.Int16))
		return nil
	case KindUint16:
		w.writeUint16(v.Uint16)
		return nil
	case KindInt32:
		w.writeUint32(uint32(v.Int32))
		return nil
	case KindUint32:
		w.writeUint32(v.Uint32)
		return nil
	case KindInt64:
		w.writeUint64(uint64(v.Int64))
		return nil
	case KindUint64:
		w.writeUint64(v.Uint64)
		return nil
	case KindDouble:
		w.writeUint64(math.Float64bits(v.Double))
		return nil
	case KindString:
		return w.writeWireString(v.Str)
	case KindObjectPath:
		if err := validateObjectPath(v.Str); err != nil {
			return err
		}
		return w.writeWireString(v.Str)
	case KindSignature:
		return w.writeWireSignature(v.Sig)
	case KindVariant:
		if v.Variant == nil {
			return sigErr(v.Sig, "variant has no payload")
		}
		if err := w.writeWireSignature(v.Sig); err != nil {
			return err
		}
		return writeValue(w, *v.Variant)
	case KindStruct:
		w.align(8)
		for _, e := range v.Elems {
			if err := writeValue(w, e); err != nil {
				return err
			}
		}
		return nil
	case KindArray:
		elemSig := v.Sig[1:]
		elemAlign, err := AlignmentOf(elemSig)
		if err != nil {
			return err
		}
		lenPos := w.reserveUint32()
		w.align(elemAlign)
		start := w.offset
		for _, e := range v.Elems {
			if err := writeValue(w, e); err != nil {
				return err
			}
		}
		w.patchUint32(lenPos, uint32(w.offset-start))
		return nil
	case KindDict:
		lenPos := w.reserveUint32()
		w.align(8)
		start := w.offset
		for _, e := range v.Entries {
			w.align(8)
			if err := writeValue(w, e.Key); err != nil {
				return err
			}
			if err := writeValue(w, e.Val); err != nil {
				return err
			}
		}
		w.patchUint32(lenPos, uint32(w.offset-start))
		return nil
	default:
		return sigErr("", "cannot encode value of unknown kind")
	}
}

// EncodeValue serializes a single value at the given byte order,
// starting from a fresh (zero) local offset, as if it were the first
// thing in its containing body. It is the public entry point used by
// tests and callers that need to encode a standalone value.
func EncodeValue(order binary.ByteOrder, v Value) ([]byte, error) {
	w := newWireWriter(order)
	if err := writeValue(w, v); err != nil {
		return nil, err
	}
	return w.buf, nil
}
