package router

import (
	"testing"

	"github.com/megakuul/gosimplehttp/internal/bodyreader"
	"github.com/megakuul/gosimplehttp/internal/message"
)

func noopHandler(*message.Request, *message.Response, *bodyreader.BodyReader) error { return nil }

func TestLookupDistinguishesNoPathFromNoMethod(t *testing.T) {
	tab := New()
	tab.Register("/ping", "GET", noopHandler)

	if _, outcome := tab.Lookup("/ping", "GET"); outcome != Found {
		t.Fatalf("Lookup(/ping, GET) outcome = %v, want Found", outcome)
	}
	if _, outcome := tab.Lookup("/ping", "POST"); outcome != NoMethod {
		t.Fatalf("Lookup(/ping, POST) outcome = %v, want NoMethod", outcome)
	}
	if _, outcome := tab.Lookup("/nope", "GET"); outcome != NoPath {
		t.Fatalf("Lookup(/nope, GET) outcome = %v, want NoPath", outcome)
	}
}

func TestRegisterSameMethodOverwrites(t *testing.T) {
	tab := New()
	calls := 0
	tab.Register("/x", "GET", func(*message.Request, *message.Response, *bodyreader.BodyReader) error {
		calls = 1
		return nil
	})
	tab.Register("/x", "GET", func(*message.Request, *message.Response, *bodyreader.BodyReader) error {
		calls = 2
		return nil
	})

	h, outcome := tab.Lookup("/x", "GET")
	if outcome != Found {
		t.Fatalf("Lookup outcome = %v, want Found", outcome)
	}
	h(nil, nil, nil)
	if calls != 2 {
		t.Fatalf("second Register() should win, calls = %d", calls)
	}
}
