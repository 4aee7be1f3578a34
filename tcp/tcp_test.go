package tcp

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/gorelay/backend"
	"github.com/relaycore/gorelay/loadbalancer"
	"github.com/relaycore/gorelay/metrics"
	"github.com/relaycore/gorelay/service"
)

// echoUpstream binds an ephemeral port and echoes back everything it
// reads until EOF, then closes.
func echoUpstream(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()

	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestServerRelaysBytesExactly(t *testing.T) {
	upstreamPort := echoUpstream(t)
	lb, err := loadbalancer.New([]backend.Definition{{IP: net.ParseIP("127.0.0.1"), Port: upstreamPort}}, loadbalancer.RoundRobin)
	require.NoError(t, err)

	srv := &Server{Name: "echo", Port: freePort(t), Service: service.NewTCP(lb), Metrics: metrics.Noop{}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(ctx) }()

	// give the listener a moment to bind.
	var conn net.Conn
	for range 100 {
		conn, err = net.Dial("tcp", (&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: srv.Port}).String())
		if err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	conn.(*net.TCPConn).CloseWrite()

	// after the client half-closes, the echo upstream sees EOF, closes,
	// and the relay tears down the pair: the client's read side should
	// now observe EOF too.
	n, err := conn.Read(buf)
	assert.Equal(t, 0, n)
	assert.Error(t, err)

	cancel()
}

func TestServerReturnsBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	lb, err := loadbalancer.New([]backend.Definition{{IP: net.ParseIP("127.0.0.1"), Port: 1}}, loadbalancer.RoundRobin)
	require.NoError(t, err)

	srv := &Server{Name: "busy", Port: port, Service: service.NewTCP(lb)}
	err = srv.ListenAndServe(context.Background())
	assert.Error(t, err)
}
