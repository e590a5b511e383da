// Package router implements the path -> method -> handler route table.
//
// Path-parameter routing, wildcards and middleware chains are out of scope
// for this core -- the table here is a flat two-level mapping, nothing
// more.
package router

import (
	"github.com/megakuul/gosimplehttp/internal/bodyreader"
	"github.com/megakuul/gosimplehttp/internal/message"
)

// Handler is invoked once a request's headers are fully parsed. It may
// suspend any number of times via body.Read, but must not retain body past
// its own return. A non-nil return is treated as abnormal termination: the
// connection is closed without sending any response bytes.
type Handler func(req *message.Request, resp *message.Response, body *bodyreader.BodyReader) error

// Outcome describes why Lookup failed, so the caller can pick 404 vs 405.
type Outcome int

const (
	// Found means a handler was located.
	Found Outcome = iota
	// NoPath means no route is registered for this path at all.
	NoPath
	// NoMethod means the path exists but not for this method.
	NoMethod
)

// Table is a path -> method -> handler mapping. Populated before Serve
// runs; the event loop only reads it.
type Table struct {
	routes map[string]map[string]Handler
}

// New returns an empty route table.
func New() *Table {
	return &Table{routes: make(map[string]map[string]Handler)}
}

// Register associates a (path, method) pair with a handler.
func (t *Table) Register(path, method string, h Handler) {
	methods, ok := t.routes[path]
	if !ok {
		methods = make(map[string]Handler)
		t.routes[path] = methods
	}
	methods[method] = h
}

// Lookup finds the handler for (path, method). Outcome distinguishes a
// missing path (404) from a path that exists but lacks this method (405).
func (t *Table) Lookup(path, method string) (Handler, Outcome) {
	methods, ok := t.routes[path]
	if !ok {
		return nil, NoPath
	}
	h, ok := methods[method]
	if !ok {
		return nil, NoMethod
	}
	return h, Found
}
