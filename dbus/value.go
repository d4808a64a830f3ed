package dbus

import "unicode/utf8"

// readValue is the Value Reader (spec.md §4.4): a recursive function
// from a single complete type signature to a tagged Value. It
// dispatches on sig[0] and returns ErrNeedMore (propagated straight
// through, no local rollback — the enclosing Message Reader owns the
// savepoint for the whole message) when the buffer does not yet hold
// enough bytes.
func readValue(r *wireReader, sig string) (Value, error) {
	if len(sig) == 0 {
		return Value{}, sigErr(sig, "empty type signature")
	}
	switch sig[0] {
	case 'y':
		b, ok := r.readByte()
		if !ok {
			return Value{}, ErrNeedMore
		}
		return Value{Kind: KindByte, Byte: b}, nil
	case 'b':
		v, ok := r.readUint32()
		if !ok {
			return Value{}, ErrNeedMore
		}
		if v != 0 && v != 1 {
			return Value{}, &InvalidEncodingError{Reason: "boolean value not in {0,1}"}
		}
		return Value{Kind: KindBoolean, Bool: v == 1}, nil
	case 'n':
		v, ok := r.readInt16()
		if !ok {
			return Value{}, ErrNeedMore
		}
		return Value{Kind: KindInt16, Int16: v}, nil
	case 'q':
		v, ok := r.readUint16()
		if !ok {
			return Value{}, ErrNeedMore
		}
		return Value{Kind: KindUint16, Uint16: v}, nil
	case 'i':
		v, ok := r.readInt32()
		if !ok {
			return Value{}, ErrNeedMore
		}
		return Value{Kind: KindInt32, Int32: v}, nil
	case 'u':
		v, ok := r.readUint32()
		if !ok {
			return Value{}, ErrNeedMore
		}
		return Value{Kind: KindUint32, Uint32: v}, nil
	case 'x':
		v, ok := r.readInt64()
		if !ok {
			return Value{}, ErrNeedMore
		}
		return Value{Kind: KindInt64, Int64: v}, nil
	case 't':
		v, ok := r.readUint64()
		if !ok {
			return Value{}, ErrNeedMore
		}
		return Value{Kind: KindUint64, Uint64: v}, nil
	case 'd':
		v, ok := r.readDouble()
		if !ok {
			return Value{}, ErrNeedMore
		}
		return Value{Kind: KindDouble, Double: v}, nil
	case 's':
		s, err := readWireString(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindString, Str: s}, nil
	case 'o':
		s, err := readWireString(r)
		if err != nil {
			return Value{}, err
		}
		if err := validateObjectPath(s); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindObjectPath, Str: s}, nil
	case 'g':
		s, err := readWireSignature(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindSignature, Sig: s}, nil
	case 'v':
		innerSig, err := readWireSignature(r)
		if err != nil {
			return Value{}, err
		}
		end, verr := consumeType(innerSig, 0)
		if verr != nil {
			return Value{}, verr
		}
		if end != len(innerSig) {
			return Value{}, sigErr(innerSig, "variant signature must be exactly one complete type")
		}
		inner, err := readValue(r, innerSig)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindVariant, Sig: innerSig, Variant: &inner}, nil
	case '(':
		return readStruct(r, sig)
	case 'a':
		if len(sig) < 2 {
			return Value{}, sigErr(sig, "array type code with no element type")
		}
		if sig[1] == '{' {
			return readDict(r, sig)
		}
		return readArray(r, sig)
	default:
		return Value{}, sigErr(sig, "illegal type code "+quote(string(sig[0])))
	}
}

// readWireString reads a STRING or OBJECT_PATH payload: a u32 length,
// that many bytes, then a trailing NUL not counted in the length
// (spec.md §3).
func readWireString(r *wireReader) (string, error) {
	n, ok := r.readUint32()
	if !ok {
		return "", ErrNeedMore
	}
	b, ok := r.readBytes(int(n) + 1)
	if !ok {
		return "", ErrNeedMore
	}
	content := b[:n]
	for _, c := range content {
		if c == 0 {
			return "", &InvalidEncodingError{Reason: "NUL byte embedded in string"}
		}
	}
	if !utf8.Valid(content) {
		return "", &InvalidEncodingError{Reason: "string is not valid UTF-8"}
	}
	return string(content), nil
}

// readWireSignature reads a SIGNATURE payload: a one-byte length, that
// many bytes, then a trailing NUL.
func readWireSignature(r *wireReader) (string, error) {
	n, ok := r.readByte()
	if !ok {
		return "", ErrNeedMore
	}
	b, ok := r.readBytes(int(n) + 1)
	if !ok {
		return "", ErrNeedMore
	}
	content := string(b[:n])
	if err := ValidateSignature(content); err != nil {
		return "", err
	}
	return content, nil
}

// validateObjectPath checks the D-Bus object-path grammar: rooted at
// '/', segments of [A-Za-z0-9_], and no trailing '/' except the root
// path itself (spec.md §4.4).
func validateObjectPath(s string) error {
	if len(s) == 0 || s[0] != '/' {
		return &InvalidEncodingError{Reason: "object path must start with '/'"}
	}
	if s == "/" {
		return nil
	}
	if s[len(s)-1] == '/' {
		return &InvalidEncodingError{Reason: "object path must not end with '/'"}
	}
	segStart := 1
	for i := 1; i <= len(s); i++ {
		if i == len(s) || s[i] == '/' {
			if i == segStart {
				return &InvalidEncodingError{Reason: "object path has an empty segment"}
			}
			for j := segStart; j < i; j++ {
				if !isObjectPathChar(s[j]) {
					return &InvalidEncodingError{Reason: "object path segment contains an illegal character"}
				}
			}
			segStart = i + 1
		}
	}
	return nil
}

func isObjectPathChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
		return true
	default:
		return false
	}
}

// readStruct reads a STRUCT value: align to 8, then one value per
// inner type in order (spec.md §4.4). sig is the full "(...)" type.
func readStruct(r *wireReader, sig string) (Value, error) {
	if !r.align(8) {
		return Value{}, ErrNeedMore
	}
	inner := sig[1 : len(sig)-1]
	types, err := Split(inner)
	if err != nil {
		return Value{}, err
	}
	elems := make([]Value, 0, len(types))
	for _, t := range types {
		v, err := readValue(r, t)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
	return Value{Kind: KindStruct, Sig: sig, Elems: elems}, nil
}

// readArray reads an ARRAY value: a u32 byte-length, mandatory
// alignment to the element type's boundary (even for a zero-length
// array), then elements until the byte-length is exhausted (spec.md
// §4.4). sig is the full "a T" type.
func readArray(r *wireReader, sig string) (Value, error) {
	elemSig := sig[1:]
	elemAlign, err := AlignmentOf(elemSig)
	if err != nil {
		return Value{}, err
	}

	n, ok := r.readUint32()
	if !ok {
		return Value{}, ErrNeedMore
	}
	if !r.align(elemAlign) {
		return Value{}, ErrNeedMore
	}

	end := r.offset + int(n)
	var elems []Value
	for r.offset < end {
		v, err := readValue(r, elemSig)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
		if r.offset > end {
			return Value{}, &InvalidEncodingError{Reason: "array element overshoots declared array length"}
		}
	}
	return Value{Kind: KindArray, Sig: sig, Elems: elems}, nil
}

// readDict reads an "a{KV}" value as an array of dict-entry structs,
// applying last-write-wins for duplicate keys (spec.md §4.4). sig is
// the full "a{KV}" type.
func readDict(r *wireReader, sig string) (Value, error) {
	inner := sig[2 : len(sig)-1] // strip "a{" and "}"
	if len(inner) < 2 {
		return Value{}, sigErr(sig, "dict-entry must have a key and a value type")
	}
	keySig := inner[:1]
	if !isBasicType(inner[0]) {
		return Value{}, sigErr(sig, "dict-entry key must be a basic type")
	}
	valSig := inner[1:]
	if _, err := Split(valSig); err != nil {
		return Value{}, err
	}

	n, ok := r.readUint32()
	if !ok {
		return Value{}, ErrNeedMore
	}
	if !r.align(8) {
		return Value{}, ErrNeedMore
	}

	end := r.offset + int(n)
	var raw []DictEntry
	for r.offset < end {
		if !r.align(8) {
			return Value{}, ErrNeedMore
		}
		key, err := readValue(r, keySig)
		if err != nil {
			return Value{}, err
		}
		val, err := readValue(r, valSig)
		if err != nil {
			return Value{}, err
		}
		raw = append(raw, DictEntry{Key: key, Val: val})
		if r.offset > end {
			return Value{}, &InvalidEncodingError{Reason: "dict entry overshoots declared array length"}
		}
	}

	lastIdx := make(map[any]int, len(raw))
	for idx, e := range raw {
		lastIdx[e.Key.GoValue()] = idx
	}
	var entries []DictEntry
	for idx, e := range raw {
		if lastIdx[e.Key.GoValue()] == idx {
			entries = append(entries, e)
		}
	}
	return Value{Kind: KindDict, Sig: sig, Entries: entries}, nil
}
