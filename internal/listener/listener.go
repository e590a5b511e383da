// Package listener constructs the core listening socket: TCP v4 with
// SO_REUSEADDR|SO_REUSEPORT, or a UNIX domain stream socket.
package listener

import (
	"net"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/megakuul/gosimplehttp/internal/fd"
)

// ErrInvalidArgument marks a configuration error -- a malformed address --
// as opposed to a system error from the underlying syscalls.
var ErrInvalidArgument = errors.New("listener: invalid argument")

// TCP4 creates, configures and binds (but does not listen on) an IPv4
// stream socket at addr:port. SO_REUSEADDR and SO_REUSEPORT are set so that
// multiple independent server instances can load-balance the same address
// via the kernel, and send/recv buffers are set to bufSize (the kernel may
// double this and impose a floor -- treat it as a hint, not a hard cap).
func TCP4(addr string, port int, bufSize int) (*fd.Handle, error) {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "parse address %q", addr)
	}
	var addrBytes [4]byte
	copy(addrBytes[:], ip.To4())

	raw, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "create socket")
	}
	h := fd.New(raw)

	if err := unix.SetsockoptInt(raw, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "set SO_REUSEADDR")
	}
	if err := unix.SetsockoptInt(raw, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "set SO_REUSEPORT")
	}
	if err := unix.SetsockoptInt(raw, unix.SOL_SOCKET, unix.SO_RCVBUF, bufSize); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "set SO_RCVBUF")
	}
	if err := unix.SetsockoptInt(raw, unix.SOL_SOCKET, unix.SO_SNDBUF, bufSize); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "set SO_SNDBUF")
	}

	sa := &unix.SockaddrInet4{Port: port, Addr: addrBytes}
	if err := unix.Bind(raw, sa); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "bind socket")
	}
	if err := unix.SetNonblock(raw, true); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "set nonblocking")
	}

	return h, nil
}

// Unix creates, configures and binds a UNIX domain stream socket at path.
// The parent directory is created if missing, and a stale socket file at
// path is unlinked first (errors from the unlink are ignored -- if the path
// genuinely cannot be cleaned up, bind will fail with a clear error).
func Unix(path string) (*fd.Handle, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create parent directory")
	}
	_ = os.Remove(path)

	raw, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "create socket")
	}
	h := fd.New(raw)

	sa := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(raw, sa); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "bind socket")
	}
	if err := unix.SetNonblock(raw, true); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "set nonblocking")
	}

	return h, nil
}
