package dbus

// driverState is the StreamDriver's two-phase state (spec.md §4.6): a
// textual AUTH negotiation followed by binary messages, with a
// terminal Failed state once anything goes wrong, or a terminal
// Closed state on a clean end-of-stream.
type driverState byte

const (
	driverAuth driverState = iota
	driverBinary
	driverFailed
	driverClosed
)

// StreamDriver drives one D-Bus connection's handshake and message
// stream. It owns no transport: the caller is responsible for reading
// bytes off the wire and writing PendingOutbound's result back onto
// it, which keeps the driver synchronous and trivially testable
// without a real socket.
type StreamDriver struct {
	cfg   *Config
	buf   *ByteBuffer
	state driverState
	err   error

	outbound []byte

	// authOK and fdNegotiated track the two replies the client must
	// see before it may send BEGIN: the server's OK, and — since the
	// client always sends NEGOTIATE_UNIX_FD (spec.md §6) — the
	// server's follow-up AGREE_UNIX_FD or ERROR. BEGIN is only queued
	// once both are true, so additional recognized AUTH-phase lines
	// (e.g. "OK ...\r\nAGREE_UNIX_FD\r\n" arriving together) are fully
	// drained before the driver switches to the binary phase.
	authOK       bool
	fdNegotiated bool
}

// NewStreamDriver creates a driver that authenticates as uid using the
// EXTERNAL mechanism. The initial AUTH line, followed by
// NEGOTIATE_UNIX_FD, is queued immediately and available from
// PendingOutbound.
func NewStreamDriver(uid int, opts ...Option) *StreamDriver {
	cfg := newConfig(opts)
	d := &StreamDriver{
		cfg:   cfg,
		buf:   NewByteBuffer(cfg.initialBufCap),
		state: driverAuth,
	}
	d.outbound = append(d.outbound, authInitialByte)
	d.outbound = append(d.outbound, externalAuthLine(uid)...)
	d.outbound = append(d.outbound, '\r', '\n')
	d.outbound = append(d.outbound, authNegotiateFDs...)
	d.outbound = append(d.outbound, '\r', '\n')
	return d
}

// PendingOutbound returns and clears the bytes the caller should write
// to the transport next (the AUTH line, then later BEGIN).
func (d *StreamDriver) PendingOutbound() []byte {
	out := d.outbound
	d.outbound = nil
	return out
}

// Failed reports whether the driver has entered its terminal Failed
// state (a clean Close leaves it Closed, not Failed).
// Err returns the error that caused it, or nil otherwise.
func (d *StreamDriver) Failed() bool { return d.state == driverFailed }
func (d *StreamDriver) Err() error   { return d.err }

// Closed reports whether Close has been called and the stream ended
// cleanly (no partial message pending).
func (d *StreamDriver) Closed() bool { return d.state == driverClosed }

// Close reports that the transport reached end-of-stream. If a
// message (or AUTH-phase line) was partway through being parsed, this
// is a protocol violation and the driver fails with a
// TransportClosedError; a clean close between messages, with the
// buffer empty, just marks the driver Closed.
func (d *StreamDriver) Close() error {
	switch d.state {
	case driverFailed:
		return d.err
	case driverClosed:
		return nil
	}
	if d.buf.Remaining() > 0 {
		err := &TransportClosedError{Reason: "transport closed with a partial message buffered"}
		d.fail(err)
		return err
	}
	d.state = driverClosed
	return nil
}

func (d *StreamDriver) fail(err error) {
	d.state = driverFailed
	d.err = err
	d.cfg.logger.Error("dbus: stream driver failed", "error", err)
}

// Feed appends chunk to the driver's internal buffer and decodes as
// much as is currently available: zero or more AUTH-phase lines,
// followed by zero or more complete binary messages. It returns every
// message that became available from this call, in order. Once Feed
// returns a decode or AUTH error the driver is in its terminal Failed
// state and every subsequent call returns the same error. After Close,
// Feed returns a TransportClosedError and the driver stays Closed.
func (d *StreamDriver) Feed(chunk []byte) ([]*DBusMessage, error) {
	if d.state == driverFailed {
		return nil, d.err
	}
	if d.state == driverClosed {
		return nil, &TransportClosedError{Reason: "Feed called after Close"}
	}
	d.buf.Append(chunk)

	var msgs []*DBusMessage
	for {
		switch d.state {
		case driverAuth:
			line, ok := ReadLine(d.buf)
			if !ok {
				return msgs, nil
			}
			reply, err := parseAuthReply(line)
			if err != nil {
				d.fail(err)
				return msgs, err
			}
			switch reply.Kind {
			case authReplyOK:
				d.authOK = true
				d.cfg.logger.Info("dbus: authenticated", "guid", reply.GUID)
			case authReplyAgreeUnixFD:
				d.fdNegotiated = true
			case authReplyRejected:
				err := &AuthFailureError{Reason: "server rejected mechanisms: " + reply.Mechs}
				d.fail(err)
				return msgs, err
			case authReplyError:
				if d.authOK {
					// The server didn't understand or support
					// NEGOTIATE_UNIX_FD; proceed without it.
					d.fdNegotiated = true
				} else {
					err := &AuthFailureError{Reason: reply.Msg}
					d.fail(err)
					return msgs, err
				}
			case authReplyData:
				// Informational; keep reading AUTH-phase lines.
			}
			if d.authOK && d.fdNegotiated {
				d.outbound = append(d.outbound, authBeginLine+"\r\n"...)
				d.state = driverBinary
			}

		case driverBinary:
			if n, ok := peekDeclaredBodyLength(d.buf); ok && int(n) > d.cfg.maxMessageSize {
				err := &MalformedHeaderError{Reason: "declared body length exceeds configured maximum"}
				d.fail(err)
				return msgs, err
			}
			msg, err := ReadMessage(d.buf)
			if err != nil {
				if err == ErrNeedMore {
					d.buf.Compact()
					return msgs, nil
				}
				d.fail(err)
				return msgs, err
			}
			msgs = append(msgs, msg)
			d.cfg.logger.Debug("dbus: decoded message", "type", msg.Type, "serial", msg.Serial)
			d.buf.Compact()
		}
	}
}
