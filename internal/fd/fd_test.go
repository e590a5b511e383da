package fd

import (
	"sync"
	"testing"

	"golang.org/x/sys/unix"
)

func TestCloseIsIdempotent(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	h := New(fds[0])
	defer unix.Close(fds[1])

	if err := h.Close(); err != nil {
		t.Fatalf("first Close() = %v, want nil", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() = %v, want nil", err)
	}
	if h.Valid() {
		t.Fatalf("Valid() after Close() = true, want false")
	}
	if h.Number() != int(Invalid) {
		t.Fatalf("Number() after Close() = %d, want %d", h.Number(), Invalid)
	}
}

func TestCloseIsSafeConcurrently(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	h := New(fds[0])
	defer unix.Close(fds[1])

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Close()
		}()
	}
	wg.Wait()

	if h.Valid() {
		t.Fatalf("Valid() after concurrent Close() = true, want false")
	}
}

func TestEqualComparesDescriptorNumbers(t *testing.T) {
	a := New(3)
	b := New(3)
	c := New(4)

	if !a.Equal(b) {
		t.Fatalf("handles wrapping the same number should be Equal")
	}
	if a.Equal(c) {
		t.Fatalf("handles wrapping different numbers should not be Equal")
	}
}
