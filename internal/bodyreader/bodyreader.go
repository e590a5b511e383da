// Package bodyreader implements the cooperative, suspension-capable reader
// handlers use to stream a request body.
//
// There is exactly one suspension point in the whole server: Read, when the
// kernel has no more bytes buffered for this connection. Read does not block
// the event loop thread -- it reports "parked" on a control channel and
// blocks only the handler's own goroutine until the loop observes readable
// readiness again and sends a wake signal.
package bodyreader

import (
	"io"

	"golang.org/x/sys/unix"

	"github.com/megakuul/gosimplehttp/internal/fd"
)

// CtrlMsg is sent from the handler goroutine back to the event loop.
type CtrlMsg struct {
	// Parked is true when the handler is suspended awaiting more bytes.
	// False means the handler goroutine has returned (Err may be non-nil
	// if it returned an error or panicked).
	Parked bool
	Err    error
}

// BodyReader streams the request body off a connection's descriptor. It
// borrows the descriptor handle only for the duration of each Read call; it
// never closes it.
type BodyReader struct {
	fd        *fd.Handle
	bufSize   int
	remaining int
	cache     []byte

	wake <-chan struct{}
	ctrl chan<- CtrlMsg
}

// New constructs a BodyReader. seed is any body bytes the header parser had
// already pulled into the request buffer before the body stage began; they
// are consumed first, before any further socket reads. wake/ctrl are the
// single-slot channels shared with the event loop's suspend/resume handoff.
func New(h *fd.Handle, bufSize, contentLength int, seed []byte, wake <-chan struct{}, ctrl chan<- CtrlMsg) *BodyReader {
	if bufSize <= 0 {
		bufSize = 8192
	}
	cache := append([]byte(nil), seed...)
	return &BodyReader{
		fd:        h,
		bufSize:   bufSize,
		remaining: contentLength,
		cache:     cache,
		wake:      wake,
		ctrl:      ctrl,
	}
}

// Read returns up to n bytes of body, clamped to the remaining body size.
// If the body is exhausted it returns (nil, nil). If the kernel recv would
// block, Read suspends the calling goroutine (reporting "parked" to the
// loop) until woken, then retries -- straight-line code in the handler,
// invisible suspension underneath.
func (b *BodyReader) Read(n int) ([]byte, error) {
	if n > b.remaining {
		n = b.remaining
	}
	for {
		if b.remaining <= 0 {
			return nil, nil
		}
		if len(b.cache) >= n {
			out := b.cache[:n]
			b.cache = b.cache[n:]
			b.remaining -= n
			return out, nil
		}

		buf := make([]byte, b.bufSize)
		read, err := unix.Read(b.fd.Number(), buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				b.park()
				continue
			}
			return nil, err
		}
		if read == 0 {
			return nil, io.ErrUnexpectedEOF
		}
		b.cache = append(b.cache, buf[:read]...)
	}
}

// park reports suspension to the loop and blocks until woken.
func (b *BodyReader) park() {
	b.ctrl <- CtrlMsg{Parked: true}
	<-b.wake
}
