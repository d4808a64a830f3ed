package dbus

import "errors"

// ErrNeedMore is returned by any read that could not complete because
// the buffer does not yet hold enough bytes. It is not a failure: the
// buffer is left exactly as it was, and the caller should append more
// data and retry.
var ErrNeedMore = errors.New("dbus: need more data")

// MalformedHeaderError reports a fixed-header or header-field
// violation: wrong protocol version, unsupported byte order, a zero
// serial, or a header field required for the message type that is
// absent.
type MalformedHeaderError struct {
	Reason string
}

func (e *MalformedHeaderError) Error() string { return "dbus: malformed header: " + e.Reason }

// InvalidSignatureError reports a type-signature violation: unbalanced
// grouping, an illegal type code, a signature longer than 255 bytes, a
// dict-entry outside an array, or a non-basic dict key.
type InvalidSignatureError struct {
	Signature string
	Reason    string
}

func (e *InvalidSignatureError) Error() string {
	return "dbus: invalid signature " + quote(e.Signature) + ": " + e.Reason
}

// InvalidEncodingError reports a malformed value on the wire: non-UTF-8
// string content, a NUL byte inside a string, an object-path grammar
// violation, a boolean outside {0,1}, or an array whose declared byte
// length overshoots or misaligns the end of the containing body.
type InvalidEncodingError struct {
	Reason string
}

func (e *InvalidEncodingError) Error() string { return "dbus: invalid encoding: " + e.Reason }

// AuthFailureError reports a problem during the textual AUTH phase: a
// malformed line, or REJECTED with no mechanisms left to try.
type AuthFailureError struct {
	Reason string
}

func (e *AuthFailureError) Error() string { return "dbus: auth failure: " + e.Reason }

// TransportClosedError reports that the upstream transport reached
// end-of-stream in the middle of a message.
type TransportClosedError struct {
	Reason string
}

func (e *TransportClosedError) Error() string { return "dbus: transport closed: " + e.Reason }

func quote(s string) string {
	b := make([]byte, 0, len(s)+2)
	b = append(b, '"')
	b = append(b, s...)
	b = append(b, '"')
	return string(b)
}
