// Package httpparse implements the resumable HTTP/1.1 request parser and the
// one-shot response serializer.
package httpparse

import (
	"errors"
	"fmt"

	"github.com/megakuul/gosimplehttp/internal/buffer"
	"github.com/megakuul/gosimplehttp/internal/message"
)

// ErrIncomplete signals that the buffer does not yet hold a full token; the
// caller should append more bytes and retry. The buffer's head cursor has
// already been rolled back to the last commit point.
var ErrIncomplete = errors.New("httpparse: need more data")

// ProtocolError is a fatal, non-resumable parse failure -- malformed input
// that no amount of additional bytes would fix.
type ProtocolError struct {
	Pos    int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("httpparse: malformed request at byte %d: %s", e.Pos, e.Reason)
}

const (
	space = ' '
	cr    = '\r'
	lf    = '\n'
	colon = ':'
)

// Parse advances req in place using buf, picking up wherever the previous
// call left off (each sub-step is skipped once its field is non-empty).
//
// Returns nil once the request line and header block are fully parsed --
// the buffer's cursor then sits immediately after the terminating CRLF;
// any bytes after that belong to the body, not to this function.
//
// Returns ErrIncomplete when more bytes are needed. Returns a *ProtocolError
// for malformed input.
func Parse(buf *buffer.Buffer, req *message.Request) error {
	if req.Method == "" {
		tok, err := readToken(buf, space)
		if err != nil {
			return err
		}
		req.Method = tok
		buf.Commit()
	}
	if req.Path == "" {
		tok, err := readToken(buf, space)
		if err != nil {
			return err
		}
		req.Path = tok
		buf.Commit()
	}
	if req.Version == "" {
		tok, err := readLine(buf)
		if err != nil {
			return err
		}
		req.Version = tok
		buf.Commit()
	}
	return parseHeaders(buf, req)
}

// readToken accumulates bytes until stop is seen, consuming stop. On
// exhaustion it rolls the buffer back to the last commit and returns
// ErrIncomplete.
func readToken(buf *buffer.Buffer, stop byte) (string, error) {
	var out []byte
	for {
		c, ok := buf.Next()
		if !ok {
			buf.Rollback()
			return "", ErrIncomplete
		}
		if c == stop {
			return string(out), nil
		}
		out = append(out, c)
	}
}

// readLine accumulates bytes until a bare LF, ignoring any CR.
func readLine(buf *buffer.Buffer) (string, error) {
	var out []byte
	for {
		c, ok := buf.Next()
		if !ok {
			buf.Rollback()
			return "", ErrIncomplete
		}
		if c == cr {
			continue
		}
		if c == lf {
			return string(out), nil
		}
		out = append(out, c)
	}
}

// parseHeaders loops over "Key: Value\r\n" lines until a bare CRLF ends the
// header block. Each complete header is committed individually so a later
// call can resume mid-block.
func parseHeaders(buf *buffer.Buffer, req *message.Request) error {
	var key []byte
	for {
		c, ok := buf.Next()
		if !ok {
			buf.Rollback()
			return ErrIncomplete
		}
		if c == cr {
			continue
		}
		if c == lf {
			buf.Commit()
			return nil
		}
		if c == colon {
			v, ok := buf.Next()
			if !ok {
				buf.Rollback()
				return ErrIncomplete
			}
			if v != space {
				return &ProtocolError{
					Pos:    buf.SizeBeforeCursor(),
					Reason: fmt.Sprintf("expected space after ':', got %q", v),
				}
			}
			val, err := readLine(buf)
			if err != nil {
				return err
			}
			req.Headers[string(key)] = val
			key = key[:0]
			buf.Commit()
			continue
		}
		key = append(key, c)
	}
}
