package dbus

// requiredFields lists the header fields each message type must carry
// (spec.md §4.5 step 7). A message missing one of these is rejected as
// malformed rather than silently accepted with zero values.
var requiredFields = map[MessageType][]HeaderField{
	TypeMethodCall:   {FieldPath, FieldMember},
	TypeMethodReturn: {FieldReplySerial},
	TypeError:        {FieldErrorName, FieldReplySerial},
	TypeSignal:       {FieldPath, FieldInterface, FieldMember},
}

// peekDeclaredBodyLength reads the body_length field (bytes 4..8 of
// the fixed header) without consuming anything, so a StreamDriver can
// enforce a size cap before committing to parse a whole message.
func peekDeclaredBodyLength(buf *ByteBuffer) (uint32, bool) {
	header, ok := buf.Peek(8)
	if !ok {
		return 0, false
	}
	order := orderFor(header[0])
	if order == nil {
		return 0, false
	}
	return order.Uint32(header[4:8]), true
}

// ReadMessage is the Message Reader (spec.md §4.5): it parses one
// complete D-Bus message from buf, starting at the cursor. It is
// transactional at the whole-message granularity: on ErrNeedMore or any
// other error, buf's cursor is restored to where it was on entry, so a
// caller can retry once more bytes have arrived.
func ReadMessage(buf *ByteBuffer) (*DBusMessage, error) {
	sp := buf.Savepoint()
	msg, err := readMessage(buf)
	if err != nil {
		buf.Rollback(sp)
		return nil, err
	}
	return msg, nil
}

func readMessage(buf *ByteBuffer) (*DBusMessage, error) {
	endianByte, ok := buf.Peek(1)
	if !ok {
		return nil, ErrNeedMore
	}
	order := orderFor(endianByte[0])
	if order == nil {
		return nil, &MalformedHeaderError{Reason: "unrecognized byte-order flag " + quote(string(endianByte[0]))}
	}

	r := newWireReader(buf, order)
	r.readByte() // byte order, already inspected above

	typ, ok := r.readByte()
	if !ok {
		return nil, ErrNeedMore
	}
	flagsByte, ok := r.readByte()
	if !ok {
		return nil, ErrNeedMore
	}
	version, ok := r.readByte()
	if !ok {
		return nil, ErrNeedMore
	}
	if version != protocolVersion {
		return nil, &MalformedHeaderError{Reason: "unsupported protocol version"}
	}
	bodyLength, ok := r.readUint32()
	if !ok {
		return nil, ErrNeedMore
	}
	serial, ok := r.readUint32()
	if !ok {
		return nil, ErrNeedMore
	}
	if serial == 0 {
		return nil, &MalformedHeaderError{Reason: "serial must be nonzero"}
	}

	fieldsVal, err := readValue(r, "a(yv)")
	if err != nil {
		return nil, err
	}

	msg := &DBusMessage{
		BigEndian: endianByte[0] == byteOrderBig,
		Type:      MessageType(typ),
		Flags:     Flags(flagsByte),
		Version:   version,
		Serial:    serial,
	}
	if err := applyHeaderFields(msg, fieldsVal); err != nil {
		return nil, err
	}

	if !r.align(8) {
		return nil, ErrNeedMore
	}

	if err := checkRequiredFields(msg); err != nil {
		return nil, err
	}
	if bodyLength > 0 && !msg.HasSignature {
		return nil, &MalformedHeaderError{Reason: "non-empty body with no SIGNATURE header field"}
	}

	bodyStart := r.offset
	bodyEnd := bodyStart + int(bodyLength)
	if msg.HasSignature && msg.Signature != "" {
		types, err := Split(msg.Signature)
		if err != nil {
			return nil, err
		}
		body := make([]Value, 0, len(types))
		for _, t := range types {
			v, err := readValue(r, t)
			if err != nil {
				return nil, err
			}
			body = append(body, v)
		}
		msg.Body = body
	}
	if r.offset != bodyEnd {
		return nil, &InvalidEncodingError{Reason: "declared body length does not match encoded body"}
	}

	return msg, nil
}

// applyHeaderFields interprets a parsed "a(yv)" Value into msg's named
// fields, per the header-code table in spec.md §3. Unknown field codes
// are ignored, matching the D-Bus convention that header fields are an
// extensible set.
func applyHeaderFields(msg *DBusMessage, fields Value) error {
	for _, entry := range fields.Elems {
		if entry.Kind != KindStruct || len(entry.Elems) != 2 {
			return &MalformedHeaderError{Reason: "header field entry is not a (y,v) pair"}
		}
		codeVal, variant := entry.Elems[0], entry.Elems[1]
		if codeVal.Kind != KindByte || variant.Kind != KindVariant || variant.Variant == nil {
			return &MalformedHeaderError{Reason: "header field entry has the wrong shape"}
		}
		code := HeaderField(codeVal.Byte)
		v := *variant.Variant
		switch code {
		case FieldPath:
			if v.Kind != KindObjectPath {
				return &MalformedHeaderError{Reason: "PATH header field is not an object path"}
			}
			msg.Path = ObjectPath(v.Str)
		case FieldInterface:
			if v.Kind != KindString {
				return &MalformedHeaderError{Reason: "INTERFACE header field is not a string"}
			}
			msg.Interface = v.Str
		case FieldMember:
			if v.Kind != KindString {
				return &MalformedHeaderError{Reason: "MEMBER header field is not a string"}
			}
			msg.Member = v.Str
		case FieldErrorName:
			if v.Kind != KindString {
				return &MalformedHeaderError{Reason: "ERROR_NAME header field is not a string"}
			}
			msg.ErrorName = v.Str
		case FieldReplySerial:
			if v.Kind != KindUint32 {
				return &MalformedHeaderError{Reason: "REPLY_SERIAL header field is not a uint32"}
			}
			msg.ReplySerial = v.Uint32
		case FieldDestination:
			if v.Kind != KindString {
				return &MalformedHeaderError{Reason: "DESTINATION header field is not a string"}
			}
			msg.Destination = v.Str
		case FieldSender:
			if v.Kind != KindString {
				return &MalformedHeaderError{Reason: "SENDER header field is not a string"}
			}
			msg.Sender = v.Str
		case FieldSignature:
			if v.Kind != KindSignature {
				return &MalformedHeaderError{Reason: "SIGNATURE header field is not a signature"}
			}
			msg.Signature = v.Sig
			msg.HasSignature = true
		case FieldUnixFds:
			if v.Kind != KindUint32 {
				return &MalformedHeaderError{Reason: "UNIX_FDS header field is not a uint32"}
			}
			msg.UnixFds = v.Uint32
		}
	}
	return nil
}

func checkRequiredFields(msg *DBusMessage) error {
	for _, code := range requiredFields[msg.Type] {
		if !hasField(msg, code) {
			return &MalformedHeaderError{Reason: msg.Type.String() + " message is missing required header field " + code.String()}
		}
	}
	return nil
}

func hasField(msg *DBusMessage, code HeaderField) bool {
	switch code {
	case FieldPath:
		return msg.Path != ""
	case FieldInterface:
		return msg.Interface != ""
	case FieldMember:
		return msg.Member != ""
	case FieldErrorName:
		return msg.ErrorName != ""
	case FieldReplySerial:
		return msg.ReplySerial != 0
	default:
		return false
	}
}

// EncodeMessage is the Message Writer, the symmetric counterpart of
// ReadMessage: it serializes msg to a complete wire-format message,
// computing the body length and header-field array itself.
func EncodeMessage(msg *DBusMessage) ([]byte, error) {
	endianByte := byte(byteOrderLittle)
	if msg.BigEndian {
		endianByte = byteOrderBig
	}
	order := orderFor(endianByte)

	body := newWireWriter(order)
	if msg.HasSignature && msg.Signature != "" {
		for _, v := range msg.Body {
			if err := writeValue(body, v); err != nil {
				return nil, err
			}
		}
	}

	header := newWireWriter(order)
	header.writeByte(endianByte)
	header.writeByte(byte(msg.Type))
	header.writeByte(byte(msg.Flags))
	header.writeByte(protocolVersion)
	bodyLenPos := header.reserveUint32()
	header.writeUint32(msg.Serial)

	fields, err := buildHeaderFields(msg)
	if err != nil {
		return nil, err
	}
	if err := writeValue(header, fields); err != nil {
		return nil, err
	}
	header.align(8)
	header.patchUint32(bodyLenPos, uint32(len(body.buf)))

	out := make([]byte, 0, len(header.buf)+len(body.buf))
	out = append(out, header.buf...)
	out = append(out, body.buf...)
	return out, nil
}

func buildHeaderFields(msg *DBusMessage) (Value, error) {
	var elems []Value
	addField := func(code HeaderField, v Value) {
		elems = append(elems, Value{
			Kind: KindStruct,
			Sig:  "(yv)",
			Elems: []Value{
				{Kind: KindByte, Byte: byte(code)},
				{Kind: KindVariant, Sig: signatureFor(v), Variant: &v},
			},
		})
	}

	if msg.Path != "" {
		addField(FieldPath, Value{Kind: KindObjectPath, Str: string(msg.Path)})
	}
	if msg.Interface != "" {
		addField(FieldInterface, Value{Kind: KindString, Str: msg.Interface})
	}
	if msg.Member != "" {
		addField(FieldMember, Value{Kind: KindString, Str: msg.Member})
	}
	if msg.ErrorName != "" {
		addField(FieldErrorName, Value{Kind: KindString, Str: msg.ErrorName})
	}
	if msg.ReplySerial != 0 {
		addField(FieldReplySerial, Value{Kind: KindUint32, Uint32: msg.ReplySerial})
	}
	if msg.Destination != "" {
		addField(FieldDestination, Value{Kind: KindString, Str: msg.Destination})
	}
	if msg.Sender != "" {
		addField(FieldSender, Value{Kind: KindString, Str: msg.Sender})
	}
	if msg.HasSignature && msg.Signature != "" {
		addField(FieldSignature, Value{Kind: KindSignature, Sig: msg.Signature})
	}
	if msg.UnixFds != 0 {
		addField(FieldUnixFds, Value{Kind: KindUint32, Uint32: msg.UnixFds})
	}

	return Value{Kind: KindArray, Sig: "a(yv)", Elems: elems}, nil
}

func signatureFor(v Value) string {
	switch v.Kind {
	case KindByte:
		return "y"
	case KindBoolean:
		return "b"
	case KindInt16:
		return "n"
	case KindUint16:
		return "q"
	case KindInt32:
		return "i"
	case KindUint32:
		return "u"
	case KindInt64:
		return "x"
	case KindUint64:
		return "t"
	case KindDouble:
		return "d"
	case KindString:
		return "s"
	case KindObjectPath:
		return "o"
	case KindSignature:
		return "g"
	default:
		return ""
	}
}
