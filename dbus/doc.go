// Package dbus implements a D-Bus wire-format codec: an incremental
// decoder that consumes an unbounded byte stream and yields fully
// parsed D-Bus messages, plus the value-encoding machinery (alignment,
// padding, signatures, container types) shared with the companion
// encoder.
//
// The decoder is driven by data arrival. Any read may report
// [ErrNeedMore], meaning the caller must supply more bytes and retry;
// no partial state is observed by the caller when that happens. A
// [StreamDriver] owns the two-phase handshake (textual AUTH
// negotiation followed by binary messages) over a single byte stream:
// each [StreamDriver.Feed] call returns every message that became
// fully available from the bytes fed so far.
//
// This package implements only the wire protocol. Routing replies to
// callers, dispatching signals, the object-proxy layer, introspection
// XML, and sourcing of authentication credentials are the
// responsibility of callers.
package dbus
