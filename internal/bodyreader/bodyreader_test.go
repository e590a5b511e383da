package bodyreader

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/megakuul/gosimplehttp/internal/fd"
)

func newPair(t *testing.T) (server *fd.Handle, client int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	t.Cleanup(func() { unix.Close(fds[1]) })
	return fd.New(fds[0]), fds[1]
}

func TestReadServesFromSeedCacheFirst(t *testing.T) {
	h, client := newPair(t)
	defer h.Close()
	defer unix.Close(client)

	wake := make(chan struct{})
	ctrl := make(chan CtrlMsg, 1)
	br := New(h, 4096, 5, []byte("hello"), wake, ctrl)

	got, err := br.Read(5)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("Read() = %q, want %q", got, "hello")
	}

	got, err = br.Read(1)
	if err != nil {
		t.Fatalf("Read() at exhaustion error = %v", err)
	}
	if got != nil {
		t.Fatalf("Read() past remaining body size = %q, want nil", got)
	}
}

func TestReadClampsToRemaining(t *testing.T) {
	h, client := newPair(t)
	defer h.Close()
	defer unix.Close(client)

	wake := make(chan struct{})
	ctrl := make(chan CtrlMsg, 1)
	br := New(h, 4096, 3, []byte("hello"), wake, ctrl)

	got, err := br.Read(100)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != "hel" {
		t.Fatalf("Read(100) with remaining=3 = %q, want %q", got, "hel")
	}
}

func TestReadParksOnWouldBlockAndResumesOnWake(t *testing.T) {
	h, client := newPair(t)
	defer h.Close()
	defer unix.Close(client)

	wake := make(chan struct{})
	ctrl := make(chan CtrlMsg, 1)
	br := New(h, 4096, 4, nil, wake, ctrl)

	done := make(chan struct{})
	var got []byte
	var readErr error
	go func() {
		got, readErr = br.Read(4)
		close(done)
	}()

	select {
	case msg := <-ctrl:
		if !msg.Parked {
			t.Fatalf("expected a parked report before bytes arrive")
		}
	case <-time.After(time.Second):
		t.Fatal("handler goroutine did not report parked")
	}

	if _, err := unix.Write(client, []byte("data")); err != nil {
		t.Fatalf("write to client side: %v", err)
	}
	wake <- struct{}{}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Read() did not resume after wake")
	}
	if readErr != nil {
		t.Fatalf("Read() error after resume = %v", readErr)
	}
	if string(got) != "data" {
		t.Fatalf("Read() after resume = %q, want %q", got, "data")
	}
}
