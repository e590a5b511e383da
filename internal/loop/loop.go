// Package loop implements the single-threaded, readiness-driven event loop:
// one listening descriptor, one epoll instance, and a map of in-flight
// connections driven through the REQ -> FUNC -> RES stages.
package loop

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/megakuul/gosimplehttp/internal/bodyreader"
	"github.com/megakuul/gosimplehttp/internal/config"
	"github.com/megakuul/gosimplehttp/internal/conn"
	"github.com/megakuul/gosimplehttp/internal/fd"
	"github.com/megakuul/gosimplehttp/internal/httpparse"
	"github.com/megakuul/gosimplehttp/internal/router"
)

// errHeaderTooLarge is the body of the 400 sent when the parsed part of the
// header block exceeds cfg.MaxHeaderSize after any parse call, including
// the call that completes the request line + headers.
var errHeaderTooLarge = errors.New("header block exceeds maximum size")

// Loop owns the listening descriptor, the epoll instance, the connection
// map and the route table for the lifetime of one Run call. Nothing here is
// safe for concurrent use except the listening fd.Handle's Close (Kill
// relies on that).
type Loop struct {
	listenFD *fd.Handle
	routes   *router.Table
	cfg      *config.Config
	log      *logrus.Logger

	conns map[int]*conn.Conn
}

// New builds a Loop around an already-bound, non-blocking listening socket.
func New(listenFD *fd.Handle, routes *router.Table, cfg *config.Config, log *logrus.Logger) *Loop {
	return &Loop{
		listenFD: listenFD,
		routes:   routes,
		cfg:      cfg,
		log:      log,
		conns:    make(map[int]*conn.Conn),
	}
}

// Run performs listen(), creates the epoll instance, registers the
// listening descriptor, and blocks in the event loop until Kill closes the
// listening descriptor (normal return) or a loop-fatal error occurs.
//
// On every return path the connection map is drained and every remaining
// descriptor closed -- mirroring the RAII cleanup the original coroutine
// implementation got for free from C++ destructors unwinding the stack.
func (l *Loop) Run() error {
	if err := unix.Listen(l.listenFD.Number(), l.cfg.Backlog); err != nil {
		return errors.Wrap(err, "listen")
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return errors.Wrap(err, "create epoll instance")
	}
	epoll := fd.New(epfd)
	defer epoll.Close()
	defer l.listenFD.Close()

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, l.listenFD.Number(), &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(l.listenFD.Number()),
	}); err != nil {
		return errors.Wrap(err, "register listening socket")
	}

	defer l.closeAll()

	events := make([]unix.EpollEvent, l.cfg.MaxEventsPerLoop)
	for {
		n, err := unix.EpollWait(epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return errors.Wrap(err, "epoll_wait")
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			efd := int(ev.Fd)

			if efd == l.listenFD.Number() {
				done, err := l.handleListener(epfd, ev)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
				continue
			}
			l.handleConn(epfd, efd, ev)
		}
	}
}

// handleListener processes one epoll event on the listening descriptor.
// done is true when the listener hung up (the Kill path) and Run should
// return.
func (l *Loop) handleListener(epfd int, ev unix.EpollEvent) (done bool, err error) {
	if ev.Events&unix.EPOLLERR != 0 {
		soErr, serr := unix.GetsockoptInt(l.listenFD.Number(), unix.SOL_SOCKET, unix.SO_ERROR)
		if serr != nil {
			return false, errors.Wrap(serr, "read listener socket error")
		}
		return false, errors.Errorf("listener socket error: %s", unix.ErrnoName(unix.Errno(soErr)))
	}
	if ev.Events&unix.EPOLLHUP != 0 {
		l.log.Info("listener closed, shutting down")
		return true, nil
	}

	raw, _, err := unix.Accept(l.listenFD.Number())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return false, nil
		}
		l.log.WithError(err).Debug("transient accept failure, ignoring")
		return false, nil
	}
	if err := unix.SetNonblock(raw, true); err != nil {
		unix.Close(raw)
		l.log.WithError(err).Warn("failed to set accepted socket nonblocking, dropping")
		return false, nil
	}

	h := fd.New(raw)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, raw, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT,
		Fd:     int32(raw),
	}); err != nil {
		h.Close()
		l.log.WithError(err).Warn("failed to register accepted socket, dropping")
		return false, nil
	}

	traceID := uuid.NewString()
	l.conns[raw] = conn.New(h, traceID)
	l.log.WithFields(logrus.Fields{"trace_id": traceID, "fd": raw}).Debug("accepted connection")
	return false, nil
}

// handleConn dispatches one epoll event on a connection descriptor by its
// current stage. REQ only reacts to readable readiness, RES only to
// writable readiness; FUNC reacts to readable readiness because that is
// exactly the signal a parked body reader needs to resume.
func (l *Loop) handleConn(epfd, efd int, ev unix.EpollEvent) {
	c, ok := l.conns[efd]
	if !ok {
		unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, efd, nil)
		return
	}
	if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		l.closeConn(efd, "transport error or hangup")
		return
	}

	switch c.Stage {
	case conn.StageReq:
		if ev.Events&unix.EPOLLIN != 0 {
			l.driveReq(efd, c)
		}
	case conn.StageFunc:
		if ev.Events&unix.EPOLLIN != 0 {
			l.driveFunc(efd, c)
		}
	case conn.StageRes:
		if ev.Events&unix.EPOLLOUT != 0 {
			l.driveRes(efd, c)
		}
	}
}

// driveReq repeatedly receives into the request buffer and re-parses until
// the parser completes, fails fatally, or recv would block.
func (l *Loop) driveReq(efd int, c *conn.Conn) {
	for {
		buf := make([]byte, l.cfg.SocketBufferSize)
		n, err := unix.Read(efd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			l.closeConn(efd, "read error")
			return
		}
		if n == 0 {
			l.closeConn(efd, "hangup mid-request")
			return
		}
		c.ReqBuf.Append(buf[:n])

		err = httpparse.Parse(c.ReqBuf, c.Request)
		if err != nil && !errors.Is(err, httpparse.ErrIncomplete) {
			c.ForceClose = true
			l.respondError(c, 400, "Bad Request", err.Error())
			c.Stage = conn.StageRes
			l.driveRes(efd, c)
			return
		}

		// Checked after every parse call, complete or not -- a header block
		// that only becomes oversize on the call that completes it must
		// still be rejected.
		if c.ReqBuf.SizeBeforeCursor() > l.cfg.MaxHeaderSize {
			c.ForceClose = true
			l.respondError(c, 400, "Bad Request", errHeaderTooLarge.Error())
			c.Stage = conn.StageRes
			l.driveRes(efd, c)
			return
		}

		if err != nil { // ErrIncomplete: need more bytes
			continue
		}

		c.Stage = conn.StageFunc
		l.driveFunc(efd, c)
		return
	}
}

// driveFunc looks up the route (first entry only) and runs or resumes the
// handler goroutine, blocking only until it either parks on the body reader
// or returns. Parking keeps the loop thread free to service other
// connections; it never blocks on socket I/O itself.
func (l *Loop) driveFunc(efd int, c *conn.Conn) {
	if c.Func == nil {
		h, outcome := l.routes.Lookup(c.Request.Path, c.Request.Method)
		switch outcome {
		case router.NoPath:
			l.respondError(c, 404, "Not Found",
				fmt.Sprintf("The requested resource %s was not found on this server", c.Request.Path))
			c.Stage = conn.StageRes
			l.driveRes(efd, c)
			return
		case router.NoMethod:
			l.respondError(c, 405, "Method Not Allowed",
				fmt.Sprintf("The method %s is not allowed for the requested resource", c.Request.Method))
			c.Stage = conn.StageRes
			l.driveRes(efd, c)
			return
		}

		contentLength := c.Request.ContentLength()
		seed := append([]byte(nil), c.ReqBuf.BytesAfterCursor()...)
		if len(seed) > contentLength {
			seed = seed[:contentLength]
		}
		c.ReqBuf.Increment(len(seed))

		fs := &conn.FuncState{
			Wake: make(chan struct{}),
			Ctrl: make(chan bodyreader.CtrlMsg, 1),
		}
		c.Func = fs

		body := bodyreader.New(c.FD, l.cfg.SocketBufferSize, contentLength, seed, fs.Wake, fs.Ctrl)
		req, resp := c.Request, c.Response
		go func() {
			defer func() {
				if r := recover(); r != nil {
					fs.Ctrl <- bodyreader.CtrlMsg{Err: fmt.Errorf("handler panic: %v", r)}
				}
			}()
			err := h(req, resp, body)
			fs.Ctrl <- bodyreader.CtrlMsg{Err: err}
		}()
	} else {
		c.Func.Wake <- struct{}{}
	}

	msg := <-c.Func.Ctrl
	if msg.Parked {
		return
	}
	c.Func = nil
	if msg.Err != nil {
		l.log.WithFields(logrus.Fields{"trace_id": c.TraceID, "fd": efd}).WithError(msg.Err).Debug("handler terminated abnormally")
		l.closeConn(efd, "handler error")
		return
	}
	c.Stage = conn.StageRes
	l.driveRes(efd, c)
}

// driveRes serializes the response on first entry (stamping Date), then
// drains as much of it as the kernel will accept. Once fully drained, it
// either closes the connection (Connection: close, or ForceClose after a
// parser-fatal response) or resets it for the next keep-alive request.
func (l *Loop) driveRes(efd int, c *conn.Conn) {
	if c.ResBuf.Len() == 0 {
		c.Response.SetDate(time.Now())
		c.ResBuf.Assign(httpparse.Serialize(c.Response))
	}

	for {
		chunk := c.ResBuf.BytesAfterCursor()
		if len(chunk) == 0 {
			break
		}
		n, err := unix.Write(efd, chunk)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			l.closeConn(efd, "write error")
			return
		}
		c.ResBuf.Increment(n)
	}

	if !c.Request.KeepAlive() || c.ForceClose {
		l.closeConn(efd, "connection: close")
		return
	}
	c.ResetKeepAlive()
}

// respondError synthesizes a plain-text error response body.
func (l *Loop) respondError(c *conn.Conn, code int, reason, body string) {
	c.Response.Code = code
	c.Response.Reason = reason
	c.Response.SetContentType("text/plain")
	c.Response.SetBody([]byte(body))
}

// closeConn removes a connection from the map and closes its descriptor. If
// a handler goroutine is parked in the body reader, it is woken so it can
// observe the now-closed descriptor and exit instead of blocking forever.
func (l *Loop) closeConn(efd int, reason string) {
	c, ok := l.conns[efd]
	if !ok {
		return
	}
	l.log.WithFields(logrus.Fields{"trace_id": c.TraceID, "fd": efd, "reason": reason}).Debug("closing connection")
	c.FD.Close()
	l.wakeParkedFunc(c)
	delete(l.conns, efd)
}

// closeAll closes every remaining connection. Run defers this so that no
// descriptor leaks on any exit path.
func (l *Loop) closeAll() {
	for efd, c := range l.conns {
		c.FD.Close()
		l.wakeParkedFunc(c)
		delete(l.conns, efd)
	}
}

// wakeParkedFunc unblocks a handler goroutine parked in bodyreader.Read, if
// any. Closing Wake rather than sending on it lets a goroutine already
// blocked on <-b.wake proceed immediately; the retried unix.Read then fails
// against the just-closed descriptor, and the handler's buffered Ctrl send
// completes without anyone left to receive it.
func (l *Loop) wakeParkedFunc(c *conn.Conn) {
	if c.Func == nil {
		return
	}
	close(c.Func.Wake)
	c.Func = nil
}
