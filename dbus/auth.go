package dbus

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// authReplyKind tags the server's response during the textual AUTH
// phase (spec.md §4.6, the EXTERNAL mechanism at
// https://dbus.freedesktop.org/doc/dbus-specification.html#auth-protocol).
type authReplyKind byte

const (
	authReplyOK authReplyKind = iota
	authReplyRejected
	authReplyData
	authReplyError
	authReplyAgreeUnixFD
)

// authReply is a parsed line from the server during the AUTH phase.
type authReply struct {
	Kind  authReplyKind
	GUID  string // set for OK
	Mechs string // set for REJECTED
	Data  string // set for DATA
	Msg   string // set for ERROR
}

// externalAuthLine builds the client's "AUTH EXTERNAL <hex-uid>" line,
// not including the leading NUL byte or the trailing CRLF.
func externalAuthLine(uid int) string {
	return "AUTH EXTERNAL " + hex.EncodeToString([]byte(strconv.Itoa(uid)))
}

const (
	authInitialByte  = 0
	authBeginLine    = "BEGIN"
	authNegotiateFDs = "NEGOTIATE_UNIX_FD"
)

// parseAuthReply interprets one CRLF-delimited line received from the
// server during the AUTH phase. Unrecognized verbs are reported as a
// generic AuthFailureError rather than silently ignored, since an
// AUTH-phase line the client doesn't understand cannot be safely
// skipped (spec.md §6).
func parseAuthReply(line string) (authReply, error) {
	switch {
	case line == "OK" || strings.HasPrefix(line, "OK "):
		return authReply{Kind: authReplyOK, GUID: strings.TrimSpace(strings.TrimPrefix(line, "OK"))}, nil
	case line == "REJECTED" || strings.HasPrefix(line, "REJECTED "):
		return authReply{Kind: authReplyRejected, Mechs: strings.TrimSpace(strings.TrimPrefix(line, "REJECTED"))}, nil
	case line == "DATA" || strings.HasPrefix(line, "DATA "):
		return authReply{Kind: authReplyData, Data: strings.TrimSpace(strings.TrimPrefix(line, "DATA"))}, nil
	case line == "ERROR" || strings.HasPrefix(line, "ERROR "):
		return authReply{Kind: authReplyError, Msg: strings.TrimSpace(strings.TrimPrefix(line, "ERROR"))}, nil
	case line == "AGREE_UNIX_FD":
		return authReply{Kind: authReplyAgreeUnixFD}, nil
	default:
		return authReply{}, &AuthFailureError{Reason: "unrecognized AUTH-phase line " + quote(line)}
	}
}
