// Package message holds the HTTP request/response value types shared
// between the parser, the serializer, and handlers.
package message

import (
	"strconv"
	"time"
)

// imfFixdate is the HTTP wire date format, e.g. "Sun, 06 Nov 1994 08:49:37 GMT".
const imfFixdate = "Mon, 02 Jan 2006 15:04:05 GMT"

// Request is the parsed request line plus headers. An empty Method, Path or
// Version means that field has not been parsed yet -- the parser uses this
// to resume a partially-parsed request across calls.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers map[string]string
}

// NewRequest returns a Request ready for the parser to fill in.
func NewRequest() *Request {
	return &Request{Headers: make(map[string]string)}
}

// Header looks up a request header. Empty string if absent.
func (r *Request) Header(key string) string {
	return r.Headers[key]
}

// ContentLength parses the Content-Length header, returning 0 if it is
// absent, malformed or negative (such a Content-Length is treated as "no
// body").
func (r *Request) ContentLength() int {
	v, ok := r.Headers["Content-Length"]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// KeepAlive reports whether the connection should stay open after this
// request's response is drained.
func (r *Request) KeepAlive() bool {
	return r.Headers["Connection"] != "close"
}

// Response is the handler-facing response object. Version/Code/Reason
// default to "HTTP/1.1" / 200 / "OK". Whenever Body is (re)assigned via
// SetBody or AppendBody, Content-Length is kept in sync.
type Response struct {
	Version string
	Code    int
	Reason  string
	Headers map[string]string
	Body    []byte
}

// NewResponse returns a Response with the default version, status code
// and reason phrase.
func NewResponse() *Response {
	return &Response{
		Version: "HTTP/1.1",
		Code:    200,
		Reason:  "OK",
		Headers: make(map[string]string),
	}
}

// SetHeader sets a response header.
func (r *Response) SetHeader(key, value string) {
	r.Headers[key] = value
}

// Header looks up a response header. Empty string if absent.
func (r *Response) Header(key string) string {
	return r.Headers[key]
}

// SetContentType is a named convenience wrapper over SetHeader("Content-Type", ...).
func (r *Response) SetContentType(contentType string) {
	r.SetHeader("Content-Type", contentType)
}

// SetBody replaces the body and recomputes Content-Length.
func (r *Response) SetBody(body []byte) {
	r.Body = body
	r.Headers["Content-Length"] = strconv.Itoa(len(r.Body))
}

// AppendBody grows the body and recomputes Content-Length.
func (r *Response) AppendBody(body []byte) {
	r.Body = append(r.Body, body...)
	r.Headers["Content-Length"] = strconv.Itoa(len(r.Body))
}

// SetDate stamps the Date header in IMF-fixdate.
func (r *Response) SetDate(t time.Time) {
	r.Headers["Date"] = t.UTC().Format(imfFixdate)
}

// Date decodes the Date header, if present and well-formed.
func (r *Response) Date() (time.Time, bool) {
	v, ok := r.Headers["Date"]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(imfFixdate, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
