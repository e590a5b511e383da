package gosimplehttp

import (
	"github.com/megakuul/gosimplehttp/internal/bodyreader"
	"github.com/megakuul/gosimplehttp/internal/config"
	"github.com/megakuul/gosimplehttp/internal/message"
)

// Request is the parsed request line and headers passed to a Handler.
type Request = message.Request

// Response is the mutable response object a Handler populates.
type Response = message.Response

// BodyReader streams a request body, suspending the calling goroutine
// (never the event loop) when the kernel has no more bytes buffered.
type BodyReader = bodyreader.BodyReader

// Handler is invoked once a request's headers are fully parsed. It returns
// when the response in resp is complete; a non-nil error closes the
// connection without sending any response bytes.
type Handler = func(req *Request, resp *Response, body *BodyReader) error

// Config holds the server's tunables (socket buffer size, listen backlog,
// epoll batch size, max header block size). Zero value is invalid; use
// DefaultConfig or ConfigFromEnv.
type Config = config.Config

// DefaultConfig returns the package's built-in tunables, unmodified by
// environment.
func DefaultConfig() *Config {
	return config.Default()
}

// ConfigFromEnv starts from DefaultConfig and applies GOSIMPLEHTTP_*
// environment overrides (e.g. GOSIMPLEHTTP_SOCKET_BUFFER_SIZE).
func ConfigFromEnv() (*Config, error) {
	return config.FromEnv()
}
