package gosimplehttp

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func startTestServer(t *testing.T) string {
	t.Helper()

	srv, err := NewTCP4("127.0.0.1", 0, WithConfig(DefaultConfig()))
	require.NoError(t, err)

	srv.Get("/ping", func(req *Request, resp *Response, body *BodyReader) error {
		resp.SetBody([]byte("pong"))
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	addr := resolveListenAddr(t, srv)
	t.Cleanup(func() {
		srv.Kill()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Serve() did not return after Kill()")
		}
	})
	return addr
}

// resolveListenAddr reads back the ephemeral port NewTCP4(..., 0) bound to,
// then polls with short dials until Serve's listen() call has actually run
// (Serve starts in its own goroutine, asynchronously with respect to the
// caller).
func resolveListenAddr(t *testing.T, srv *Server) string {
	t.Helper()
	sa, err := unix.Getsockname(srv.listenFD.Number())
	require.NoError(t, err)
	inet4, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok, "expected an AF_INET sockaddr, got %T", sa)
	addr := fmt.Sprintf("127.0.0.1:%d", inet4.Port)

	var lastErr error
	for i := 0; i < 50; i++ {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return addr
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server never became dialable at %s: %v", addr, lastErr)
	return ""
}

func TestEndToEndKeepAliveGet(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /ping HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	resp := readResponse(t, conn)
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n"))
	require.Contains(t, resp, "Content-Length: 4\r\n")
	require.True(t, strings.HasSuffix(resp, "pong"))

	// the connection must still be usable for a second request (keep-alive)
	_, err = conn.Write([]byte("GET /ping HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)
	resp = readResponse(t, conn)
	require.True(t, strings.HasSuffix(resp, "pong"))
}

func TestEndToEndUnknownPathIs404(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /nope HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	resp := readResponse(t, conn)
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 404 Not Found"))
	require.Contains(t, resp, "The requested resource /nope was not found")
}

func TestEndToEndWrongMethodIs405(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("POST /ping HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	resp := readResponse(t, conn)
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 405 Method Not Allowed"))
}

func TestEndToEndMalformedHeaderIs400(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nBad:value\r\n\r\n"))
	require.NoError(t, err)

	resp := readResponse(t, conn)
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 400 Bad Request"))
}

func TestEndToEndOversizeHeaderCompletingInOneParseIs400(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	// Pad a single complete, well-formed request so its header block (up
	// to and including the terminating blank line) lands at exactly 8193
	// bytes -- one byte past the default cap. Every incomplete parse stops
	// at a commit point of at most 8191 bytes, so only the Parse call that
	// completes the header block (returns nil, not ErrIncomplete) sees the
	// block over the cap.
	reqLine := "GET /x HTTP/1.1\r\n"
	padKey := "X-Pad: "
	padTrailer := "\r\n"
	blankLine := "\r\n"
	overhead := len(reqLine) + len(padKey) + len(padTrailer) + len(blankLine)
	padValueLen := 8193 - overhead
	req := reqLine + padKey + strings.Repeat("a", padValueLen) + padTrailer + blankLine
	require.Equal(t, 8193, len(req), "test fixture must land exactly one byte past the header cap")

	_, err = conn.Write([]byte(req))
	require.NoError(t, err)

	resp := readResponse(t, conn)
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 400 Bad Request"),
		"a complete request whose header block is one byte over the cap must still be rejected, got: %q", resp)
}

func TestEndToEndKillStopsServe(t *testing.T) {
	srv, err := NewTCP4("127.0.0.1", 0, WithConfig(DefaultConfig()))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	resolveListenAddr(t, srv)

	require.NoError(t, srv.Kill())
	require.NoError(t, srv.Kill()) // Kill twice is equivalent to once

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after Kill()")
	}
}

// readResponse reads one HTTP response (status line, headers, body) off
// conn, using Content-Length to know how many body bytes to expect.
func readResponse(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)

	var header strings.Builder
	contentLength := 0
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		header.WriteString(line)
		if strings.HasPrefix(line, "Content-Length:") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:")))
			require.NoError(t, err)
			contentLength = n
		}
		if line == "\r\n" {
			break
		}
	}
	body := make([]byte, contentLength)
	if contentLength > 0 {
		_, err := r.Read(body)
		require.NoError(t, err)
	}
	return header.String() + string(body)
}
