// Package conn holds the per-connection state record the event loop drives
// through the REQ -> FUNC -> RES stages.
package conn

import (
	"github.com/megakuul/gosimplehttp/internal/bodyreader"
	"github.com/megakuul/gosimplehttp/internal/buffer"
	"github.com/megakuul/gosimplehttp/internal/fd"
	"github.com/megakuul/gosimplehttp/internal/message"
)

// Stage is one of the three discrete states a connection passes through.
type Stage int

const (
	// StageReq is the initial stage: reading and parsing the request line
	// and headers.
	StageReq Stage = iota
	// StageFunc is route lookup and handler execution.
	StageFunc
	// StageRes is writing the serialized response to the socket.
	StageRes
)

// FuncState tracks the handler goroutine spawned for StageFunc, and the
// single-slot channels used to hand control back and forth with the loop.
type FuncState struct {
	Wake chan struct{}
	Ctrl chan bodyreader.CtrlMsg
}

// Conn is one connection's full state: its descriptor, stage, buffers,
// parsed request and pending response. The event loop indexes connections
// by descriptor number in a map; a Conn never outlives the fd.Handle it
// wraps.
type Conn struct {
	FD       *fd.Handle
	Stage    Stage
	ReqBuf   *buffer.Buffer
	ResBuf   *buffer.Buffer
	Request  *message.Request
	Response *message.Response
	Func     *FuncState

	// ForceClose overrides the request's Connection header: when true, RES
	// closes the connection once the response is drained instead of
	// resetting for keep-alive. Set after a parser-fatal 400, since the
	// bytes left in ReqBuf belong to a request that was never fully parsed.
	ForceClose bool

	// TraceID correlates this connection's lifecycle across log entries. It
	// never touches the wire.
	TraceID string
}

// New creates a fresh connection in StageReq, wrapping an accepted socket.
func New(h *fd.Handle, traceID string) *Conn {
	return &Conn{
		FD:       h,
		Stage:    StageReq,
		ReqBuf:   buffer.New(),
		ResBuf:   buffer.New(),
		Request:  message.NewRequest(),
		Response: message.NewResponse(),
		TraceID:  traceID,
	}
}

// ResetKeepAlive rewinds a connection back to StageReq for the next
// pipelined request on the same socket. Any bytes already buffered past the
// just-finished request's body (extra pipelined data the last recv already
// pulled off the wire) are carried forward instead of being discarded, so a
// pipelining client never loses bytes to a keep-alive reset.
func (c *Conn) ResetKeepAlive() {
	leftover := append([]byte(nil), c.ReqBuf.BytesAfterCursor()...)

	c.Stage = StageReq
	c.ReqBuf = buffer.New()
	if len(leftover) > 0 {
		c.ReqBuf.Assign(leftover)
	}
	c.ResBuf = buffer.New()
	c.Request = message.NewRequest()
	c.Response = message.NewResponse()
	c.Func = nil
	c.ForceClose = false
}
