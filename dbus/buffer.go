package dbus

// ByteBuffer is a growable byte window with a read cursor. Bytes are
// appended at the tail and consumed from the cursor; compaction drops
// already-consumed bytes to bound memory between messages (spec.md
// §4.1).
//
// All read operations are transactional with respect to the cursor: a
// call either succeeds and advances the cursor, or fails (reporting
// insufficient data) and leaves the cursor exactly where it was.
type ByteBuffer struct {
	buf    []byte
	cursor int
}

// NewByteBuffer creates an empty buffer with the given initial tail
// capacity.
func NewByteBuffer(initialCapacity int) *ByteBuffer {
	return &ByteBuffer{buf: make([]byte, 0, initialCapacity)}
}

// Append adds p to the tail of the buffer.
func (b *ByteBuffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
}

// Remaining returns the number of unconsumed bytes between the cursor
// and the tail.
func (b *ByteBuffer) Remaining() int {
	return len(b.buf) - b.cursor
}

// Peek returns the next n unconsumed bytes without advancing the
// cursor. It returns false if fewer than n bytes are available; the
// returned slice aliases the buffer's storage and is only valid until
// the next Append or Compact.
func (b *ByteBuffer) Peek(n int) ([]byte, bool) {
	if n < 0 || b.Remaining() < n {
		return nil, false
	}
	return b.buf[b.cursor : b.cursor+n], true
}

// Consume advances the cursor by n bytes. It panics if fewer than n
// bytes are available; callers must check Remaining (or use Peek)
// first, since Consume is the commit half of a read, not a bounds
// check.
func (b *ByteBuffer) Consume(n int) {
	if n < 0 || b.Remaining() < n {
		panic("dbus: Consume past buffer tail")
	}
	b.cursor += n
}

// Align advances the cursor by the NUL padding needed to bring
// localOffset to the next multiple of boundary, where localOffset is
// the caller-tracked byte offset from some fixed point (message start
// or body start — spec.md §3) that corresponds to the buffer's current
// cursor. It returns the new local offset and whether the alignment
// succeeded; on failure (not enough bytes to reach the boundary) the
// cursor and the returned offset are unchanged from the call's inputs.
//
// Padding bytes are not validated to be NUL (spec.md §6: lenient on
// read).
func (b *ByteBuffer) Align(localOffset, boundary int) (int, bool) {
	pad := padding(localOffset, boundary)
	if pad == 0 {
		return localOffset, true
	}
	if b.Remaining() < pad {
		return localOffset, false
	}
	b.cursor += pad
	return localOffset + pad, true
}

// Savepoint returns a token representing the current cursor position,
// to be used with Rollback to abandon a partial parse.
func (b *ByteBuffer) Savepoint() int {
	return b.cursor
}

// Rollback resets the cursor to a previously obtained savepoint,
// discarding the effect of any reads since then.
func (b *ByteBuffer) Rollback(sp int) {
	b.cursor = sp
}

// Compact discards already-consumed bytes ([0, cursor)) and resets the
// cursor to 0, bounding resident memory to roughly one in-flight
// message (spec.md §3, §9).
func (b *ByteBuffer) Compact() {
	if b.cursor == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.cursor:])
	b.buf = b.buf[:n]
	b.cursor = 0
}
