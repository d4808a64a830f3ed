package dbus

import "fmt"

// ObjectPath is a D-Bus object path, e.g. "/org/freedesktop/DBus".
type ObjectPath string

// MessageType identifies the kind of a DBusMessage.
type MessageType byte

const (
	TypeMethodCall   MessageType = 1
	TypeMethodReturn MessageType = 2
	TypeError        MessageType = 3
	TypeSignal       MessageType = 4
)

func (t MessageType) String() string {
	switch t {
	case TypeMethodCall:
		return "METHOD_CALL"
	case TypeMethodReturn:
		return "METHOD_RETURN"
	case TypeError:
		return "ERROR"
	case TypeSignal:
		return "SIGNAL"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(t))
	}
}

// Flags is a bitwise OR of message flags carried in the fixed header.
type Flags byte

const (
	FlagNoReplyExpected               Flags = 1 << 0
	FlagNoAutoStart                   Flags = 1 << 1
	FlagAllowInteractiveAuthorization Flags = 1 << 2
)

// HeaderField identifies a header field code, per spec.md §3.
type HeaderField byte

const (
	FieldPath        HeaderField = 1
	FieldInterface   HeaderField = 2
	FieldMember      HeaderField = 3
	FieldErrorName   HeaderField = 4
	FieldReplySerial HeaderField = 5
	FieldDestination HeaderField = 6
	FieldSender      HeaderField = 7
	FieldSignature   HeaderField = 8
	FieldUnixFds     HeaderField = 9
)

func (f HeaderField) String() string {
	switch f {
	case FieldPath:
		return "PATH"
	case FieldInterface:
		return "INTERFACE"
	case FieldMember:
		return "MEMBER"
	case FieldErrorName:
		return "ERROR_NAME"
	case FieldReplySerial:
		return "REPLY_SERIAL"
	case FieldDestination:
		return "DESTINATION"
	case FieldSender:
		return "SENDER"
	case FieldSignature:
		return "SIGNATURE"
	case FieldUnixFds:
		return "UNIX_FDS"
	default:
		return fmt.Sprintf("HeaderField(%d)", byte(f))
	}
}

const (
	byteOrderLittle = 'l'
	byteOrderBig    = 'B'
	protocolVersion = 1
)

// ValueKind tags the case of a Value, mirroring the D-Bus type
// alphabet in spec.md §3.
type ValueKind byte

const (
	KindByte ValueKind = iota
	KindBoolean
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindDouble
	KindString
	KindObjectPath
	KindSignature
	KindVariant
	KindStruct
	KindArray
	KindDict
)

func (k ValueKind) String() string {
	switch k {
	case KindByte:
		return "Byte"
	case KindBoolean:
		return "Boolean"
	case KindInt16:
		return "Int16"
	case KindUint16:
		return "Uint16"
	case KindInt32:
		return "Int32"
	case KindUint32:
		return "Uint32"
	case KindInt64:
		return "Int64"
	case KindUint64:
		return "Uint64"
	case KindDouble:
		return "Double"
	case KindString:
		return "String"
	case KindObjectPath:
		return "ObjectPath"
	case KindSignature:
		return "Signature"
	case KindVariant:
		return "Variant"
	case KindStruct:
		return "Struct"
	case KindArray:
		return "Array"
	case KindDict:
		return "Dict"
	default:
		return fmt.Sprintf("ValueKind(%d)", byte(k))
	}
}

// DictEntry is one key/value pair of a Dict value. Key is always a
// basic (non-container) Value per spec.md §3.
type DictEntry struct {
	Key Value
	Val Value
}

// Value is a closed sum over the D-Bus type system (spec.md §3). Kind
// selects which field(s) are meaningful; unused fields are zero.
//
// This is a tagged product rather than an interface hierarchy: every
// case has a named field, matching the rest of the codec's read/write
// dispatch, which always switches on Kind or on a signature's leading
// byte rather than on a Go type assertion.
type Value struct {
	Kind ValueKind

	Byte    byte
	Bool    bool
	Int16   int16
	Uint16  uint16
	Int32   int32
	Uint32  uint32
	Int64   int64
	Uint64  uint64
	Double  float64
	Str     string // String, ObjectPath payload
	Sig     string // Signature payload, or the inner signature of a Variant
	Variant *Value // Variant payload (nil unless Kind == KindVariant)

	Elems   []Value     // Struct fields or Array elements, in order
	Entries []DictEntry // Dict entries, in wire order with duplicates resolved (last-write-wins)
}

// ElemSig is the element-type signature of an Array value.
func (v Value) ElemSig() string {
	if v.Kind != KindArray || len(v.Sig) < 2 {
		return ""
	}
	return v.Sig[1:]
}

// Map renders a Dict value as a native Go map keyed by GoValue(); it
// panics if Kind is not KindDict. Intended for convenience at call
// sites, not for the decoder's own bookkeeping (which preserves wire
// order in Entries).
func (v Value) Map() map[any]Value {
	if v.Kind != KindDict {
		panic("dbus: Map called on non-Dict Value")
	}
	m := make(map[any]Value, len(v.Entries))
	for _, e := range v.Entries {
		m[e.Key.GoValue()] = e.Val
	}
	return m
}

// GoValue extracts the native Go representation of a basic-typed
// Value. It panics for container kinds (Struct, Array, Dict, Variant),
// which have no single native representation.
func (v Value) GoValue() any {
	switch v.Kind {
	case KindByte:
		return v.Byte
	case KindBoolean:
		return v.Bool
	case KindInt16:
		return v.Int16
	case KindUint16:
		return v.Uint16
	case KindInt32:
		return v.Int32
	case KindUint32:
		return v.Uint32
	case KindInt64:
		return v.Int64
	case KindUint64:
		return v.Uint64
	case KindDouble:
		return v.Double
	case KindString:
		return v.Str
	case KindObjectPath:
		return ObjectPath(v.Str)
	case KindSignature:
		return v.Sig
	default:
		panic(fmt.Sprintf("dbus: GoValue called on container Value of kind %s", v.Kind))
	}
}

// DBusMessage is a fully parsed D-Bus message (spec.md §3).
type DBusMessage struct {
	BigEndian bool
	Type      MessageType
	Flags     Flags
	Version   byte
	Serial    uint32

	Path        ObjectPath
	Interface   string
	Member      string
	ErrorName   string
	ReplySerial uint32
	Destination string
	Sender      string
	Signature   string
	UnixFds     uint32

	// HasSignature distinguishes an absent Signature field (empty
	// body) from a present-but-empty one, which never validly occurs
	// since every non-empty signature has at least one type character.
	HasSignature bool

	Body []Value
}
