// Package fd wraps a single OS file descriptor with RAII-style ownership.
package fd

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Invalid is the sentinel value held by a closed or moved-from Handle.
const Invalid int32 = -1

// Handle owns one file descriptor. It closes the descriptor exactly once,
// whether that happens via Close, garbage collection is irrelevant here --
// callers must call Close explicitly -- or never, if the process exits
// first. Handle is safe to read from many goroutines; Close is safe to call
// from a goroutine other than the one driving the event loop (the server's
// Kill path relies on this).
type Handle struct {
	mu sync.Mutex
	n  atomic.Int32
}

// New wraps an already-open descriptor.
func New(raw int) *Handle {
	h := &Handle{}
	h.n.Store(int32(raw))
	return h
}

// Number returns the raw descriptor, or Invalid if the handle was closed.
func (h *Handle) Number() int {
	return int(h.n.Load())
}

// Valid reports whether the handle still owns an open descriptor.
func (h *Handle) Valid() bool {
	return h.n.Load() != Invalid
}

// Equal compares two handles by descriptor number.
func (h *Handle) Equal(other *Handle) bool {
	return h.Number() == other.Number()
}

// Close closes the descriptor and transitions the handle to Invalid. It is a
// no-op if the handle is already invalid. Safe to call concurrently with
// Number/Valid from another goroutine -- the swap is what Kill relies on to
// wake the event loop's epoll_wait via EPOLLHUP.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.n.Swap(Invalid)
	if n == Invalid {
		return nil
	}
	return unix.Close(int(n))
}
