package dbus

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func helloCall() *DBusMessage {
	return &DBusMessage{
		Type:        TypeMethodCall,
		Version:     1,
		Serial:      1,
		Path:        "/org/freedesktop/DBus",
		Interface:   "org.freedesktop.DBus",
		Member:      "Hello",
		Destination: "org.freedesktop.DBus",
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := helloCall()
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	buf := NewByteBuffer(len(raw))
	buf.Append(raw)
	got, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if buf.Remaining() != 0 {
		t.Fatalf("ReadMessage left %d unconsumed bytes", buf.Remaining())
	}
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Errorf("message round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMessageRoundTripWithBody(t *testing.T) {
	msg := &DBusMessage{
		Type:         TypeMethodReturn,
		Version:      1,
		Serial:       42,
		ReplySerial:  1,
		Destination:  ":1.1",
		Sender:       "org.freedesktop.DBus",
		Signature:    "sa{sv}",
		HasSignature: true,
		Body: []Value{
			{Kind: KindString, Str: ":1.42"},
			{Kind: KindDict, Sig: "a{sv}", Entries: []DictEntry{
				{
					Key: Value{Kind: KindString, Str: "Foo"},
					Val: Value{Kind: KindVariant, Sig: "u", Variant: &Value{Kind: KindUint32, Uint32: 9}},
				},
			}},
		},
	}
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	buf := NewByteBuffer(len(raw))
	buf.Append(raw)
	got, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Errorf("message round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMessageNeedsMoreThenSucceeds(t *testing.T) {
	msg := helloCall()
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	buf := NewByteBuffer(len(raw))
	for i := 0; i < len(raw)-1; i++ {
		buf.Append(raw[i : i+1])
		if _, err := ReadMessage(buf); err != ErrNeedMore {
			t.Fatalf("byte %d: ReadMessage = %v, want ErrNeedMore", i, err)
		}
		if buf.Remaining() != i+1 {
			t.Fatalf("byte %d: a failed ReadMessage must not consume input; Remaining() = %d, want %d", i, buf.Remaining(), i+1)
		}
	}
	buf.Append(raw[len(raw)-1:])
	got, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("final byte: ReadMessage error = %v", err)
	}
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Errorf("message mismatch after byte-by-byte feed (-want +got):\n%s", diff)
	}
	if buf.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", buf.Remaining())
	}
}

func TestReadMessageRejectsUnsupportedVersion(t *testing.T) {
	msg := helloCall()
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	raw[3] = 2 // protocol version byte

	buf := NewByteBuffer(len(raw))
	buf.Append(raw)
	sp := buf.Savepoint()
	_, err = ReadMessage(buf)
	if err == nil {
		t.Fatal("expected an error for an unsupported protocol version")
	}
	if _, ok := err.(*MalformedHeaderError); !ok {
		t.Fatalf("error type = %T, want *MalformedHeaderError", err)
	}
	if buf.Savepoint() != sp {
		t.Fatal("a rejected message must not consume the buffer")
	}
}

func TestReadMessageRejectsZeroSerial(t *testing.T) {
	msg := helloCall()
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	raw[8], raw[9], raw[10], raw[11] = 0, 0, 0, 0 // serial field

	buf := NewByteBuffer(len(raw))
	buf.Append(raw)
	sp := buf.Savepoint()
	_, err = ReadMessage(buf)
	if err == nil {
		t.Fatal("expected an error for a zero serial")
	}
	if _, ok := err.(*MalformedHeaderError); !ok {
		t.Fatalf("error type = %T, want *MalformedHeaderError", err)
	}
	if buf.Savepoint() != sp {
		t.Fatal("a rejected message must not consume the buffer")
	}
}

func TestReadMessageRejectsMissingRequiredField(t *testing.T) {
	msg := helloCall()
	msg.Member = ""
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	buf := NewByteBuffer(len(raw))
	buf.Append(raw)
	_, err = ReadMessage(buf)
	if _, ok := err.(*MalformedHeaderError); !ok {
		t.Fatalf("error type = %T, want *MalformedHeaderError", err)
	}
}

func TestEmptyArrayAlignsBeforeLengthCheck(t *testing.T) {
	msg := &DBusMessage{
		Type:         TypeSignal,
		Version:      1,
		Serial:       1,
		Path:         "/test",
		Interface:    "test.Iface",
		Member:       "Sig",
		Signature:    "at",
		HasSignature: true,
		Body: []Value{
			{Kind: KindArray, Sig: "at", Elems: nil},
		},
	}
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	buf := NewByteBuffer(len(raw))
	buf.Append(raw[:len(raw)-4])
	if _, err := ReadMessage(buf); err != ErrNeedMore {
		t.Fatalf("truncated message: ReadMessage = %v, want ErrNeedMore", err)
	}

	buf.Append(raw[len(raw)-4:])
	got, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}
