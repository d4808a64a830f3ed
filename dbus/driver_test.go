package dbus

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestStreamDriverAuthThenBinaryInOneChunk is spec.md §8 scenario 6:
// "OK <guid>\r\nAGREE_UNIX_FD\r\n" followed by the encoded Hello bytes,
// delivered in a single chunk, must consume both auth lines, transition,
// and emit exactly the Hello message.
func TestStreamDriverAuthThenBinaryInOneChunk(t *testing.T) {
	d := NewStreamDriver(1000)
	greeting := d.PendingOutbound()
	if len(greeting) == 0 || greeting[0] != 0 {
		t.Fatalf("initial outbound = %v, want a leading NUL byte", greeting)
	}

	msg := helloCall()
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	chunk := append([]byte("OK 0123456789abcdef0123456789abcdef\r\nAGREE_UNIX_FD\r\n"), raw...)
	msgs, err := d.Feed(chunk)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if diff := cmp.Diff(msg, msgs[0]); diff != "" {
		t.Errorf("decoded message mismatch (-want +got):\n%s", diff)
	}

	begin := d.PendingOutbound()
	if string(begin) != "BEGIN\r\n" {
		t.Fatalf("outbound after OK = %q, want %q", begin, "BEGIN\r\n")
	}
}

func TestStreamDriverByteByByteFeedingEmitsOneMessage(t *testing.T) {
	d := NewStreamDriver(1000)
	d.PendingOutbound()

	msgs, err := d.Feed([]byte("OK deadbeef\r\nAGREE_UNIX_FD\r\n"))
	if err != nil {
		t.Fatalf("Feed(auth OK): %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("got %d messages during auth, want 0", len(msgs))
	}
	d.PendingOutbound()

	msg := helloCall()
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	var all []*DBusMessage
	for i := 0; i < len(raw); i++ {
		got, err := d.Feed(raw[i : i+1])
		if err != nil {
			t.Fatalf("byte %d: Feed: %v", i, err)
		}
		all = append(all, got...)
	}
	if len(all) != 1 {
		t.Fatalf("got %d messages from byte-by-byte feed, want exactly 1", len(all))
	}
	if diff := cmp.Diff(msg, all[0]); diff != "" {
		t.Errorf("decoded message mismatch (-want +got):\n%s", diff)
	}
}

// TestStreamDriverUnsupportedFDNegotiationFallsBack covers a server
// that replies OK but then ERROR to the client's NEGOTIATE_UNIX_FD
// request (spec.md §4.6): the driver proceeds to the binary phase
// anyway rather than treating the ERROR as an auth failure.
func TestStreamDriverUnsupportedFDNegotiationFallsBack(t *testing.T) {
	d := NewStreamDriver(1000)
	d.PendingOutbound()

	msg := helloCall()
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	chunk := append([]byte("OK deadbeef\r\nERROR unknown command\r\n"), raw...)

	msgs, err := d.Feed(chunk)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if diff := cmp.Diff(msg, msgs[0]); diff != "" {
		t.Errorf("decoded message mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamDriverRejectedAuthFails(t *testing.T) {
	d := NewStreamDriver(1000)
	d.PendingOutbound()

	_, err := d.Feed([]byte("REJECTED EXTERNAL DBUS_COOKIE_SHA1\r\n"))
	if err == nil {
		t.Fatal("expected an error after REJECTED")
	}
	if _, ok := err.(*AuthFailureError); !ok {
		t.Fatalf("error type = %T, want *AuthFailureError", err)
	}
	if !d.Failed() {
		t.Fatal("driver should be in its terminal Failed state")
	}

	if _, err := d.Feed([]byte("OK deadbeef\r\n")); err == nil {
		t.Fatal("a failed driver must keep returning an error")
	}
}

func TestStreamDriverCloseCleanBetweenMessages(t *testing.T) {
	d := NewStreamDriver(1000)
	d.PendingOutbound()
	if _, err := d.Feed([]byte("OK deadbeef\r\nAGREE_UNIX_FD\r\n")); err != nil {
		t.Fatalf("Feed(auth OK): %v", err)
	}
	d.PendingOutbound()

	if err := d.Close(); err != nil {
		t.Fatalf("Close on an empty buffer: %v", err)
	}
	if !d.Closed() {
		t.Fatal("driver should report Closed after a clean Close")
	}
	if d.Failed() {
		t.Fatal("a clean Close must not be reported as Failed")
	}
}

func TestStreamDriverCloseMidMessageFails(t *testing.T) {
	d := NewStreamDriver(1000)
	d.PendingOutbound()
	d.Feed([]byte("OK deadbeef\r\nAGREE_UNIX_FD\r\n"))
	d.PendingOutbound()

	msg := helloCall()
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	if _, err := d.Feed(raw[:len(raw)-1]); err != nil {
		t.Fatalf("Feed(partial message): %v", err)
	}

	err = d.Close()
	if err == nil {
		t.Fatal("expected an error closing with a partial message buffered")
	}
	if _, ok := err.(*TransportClosedError); !ok {
		t.Fatalf("error type = %T, want *TransportClosedError", err)
	}
	if !d.Failed() {
		t.Fatal("a Close that finds a partial message must transition to Failed")
	}
}

func TestStreamDriverMalformedMessageFails(t *testing.T) {
	d := NewStreamDriver(1000)
	d.PendingOutbound()
	d.Feed([]byte("OK deadbeef\r\nAGREE_UNIX_FD\r\n"))
	d.PendingOutbound()

	msg := helloCall()
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	raw[3] = 2 // unsupported protocol version

	msgs, err := d.Feed(raw)
	if len(msgs) != 0 {
		t.Fatalf("got %d messages from a malformed message, want 0", len(msgs))
	}
	if err == nil {
		t.Fatal("expected an error for an unsupported protocol version")
	}
	if !d.Failed() {
		t.Fatal("driver should be in its terminal Failed state")
	}
}
