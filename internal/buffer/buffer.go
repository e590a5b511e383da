// Package buffer implements the resumable, cursor-based byte buffer the
// request parser tokenizes against.
package buffer

// Buffer is an append-only byte sequence with a head cursor and a rollback
// cursor. The parser advances head speculatively while tokenizing and rolls
// back to the last commit point when it runs out of bytes mid-token.
//
// Invariant: 0 <= rollback <= head <= len(data) after every operation.
type Buffer struct {
	data     []byte
	head     int
	rollback int
}

// New returns an empty buffer with both cursors at 0.
func New() *Buffer {
	return &Buffer{}
}

// Assign replaces the buffer contents and resets both cursors to 0.
func (b *Buffer) Assign(p []byte) {
	b.data = append(b.data[:0], p...)
	b.head = 0
	b.rollback = 0
}

// Append grows the buffer without touching the cursors.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Current returns the byte at the head cursor. Callers must ensure the
// cursor is in range (head < len); Current does not bounds-check.
func (b *Buffer) Current() byte {
	return b.data[b.head]
}

// Next consumes and returns the byte at head, advancing head by one. It
// only advances if the result is in range; on exhaustion it returns
// (0, false) and leaves head untouched.
func (b *Buffer) Next() (byte, bool) {
	if b.head >= len(b.data) {
		return 0, false
	}
	c := b.data[b.head]
	b.head++
	return c, true
}

// Rollback resets head to the last commit point.
func (b *Buffer) Rollback() {
	b.head = b.rollback
}

// Commit marks head as the new rollback point.
func (b *Buffer) Commit() {
	b.rollback = b.head
}

// Set moves head to an absolute position. Returns false (and leaves head
// unchanged) if pos is out of range. Moving head below the rollback point
// also moves the rollback point down to pos, so rollback <= head holds.
func (b *Buffer) Set(pos int) bool {
	if pos < 0 || pos > len(b.data) {
		return false
	}
	b.head = pos
	if b.rollback > pos {
		b.rollback = pos
	}
	return true
}

// Increment moves head by a relative delta. Returns false (and leaves head
// unchanged) if the result would be out of range.
func (b *Buffer) Increment(delta int) bool {
	return b.Set(b.head + delta)
}

// SizeBeforeCursor returns the number of bytes before head.
func (b *Buffer) SizeBeforeCursor() int {
	return b.head
}

// SizeAfterCursor returns the number of bytes from head to the end.
func (b *Buffer) SizeAfterCursor() int {
	return len(b.data) - b.head
}

// BytesAfterCursor returns the (unconsumed) slice from head to the end. The
// slice aliases the buffer's backing array and is only valid until the next
// Assign or Append.
func (b *Buffer) BytesAfterCursor() []byte {
	return b.data[b.head:]
}

// Len returns the total buffered length, irrespective of cursors.
func (b *Buffer) Len() int {
	return len(b.data)
}
