// Package tcp implements the TCP byte-stream relay: a TcpServer binds
// a port, accepts client connections, dials an upstream backend for
// each one via a service.TcpService, and relays bytes bidirectionally
// until either side closes or errors.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/relaycore/gorelay/metrics"
	"github.com/relaycore/gorelay/service"
)

const bufferSize = 4096

// Server binds Port, accepting client connections and relaying each
// one to a backend selected by Service.
type Server struct {
	Name    string
	Port    int
	Service *service.TcpService
	Metrics metrics.Metrics
}

// ListenAndServe binds 0.0.0.0:Port and accepts connections until ctx
// is cancelled or the listener errors. Accepted pairs are relayed on
// independent goroutines and are not waited on by ListenAndServe; a
// bind failure is returned immediately (§7 BindError) and does not
// affect sibling servers.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Metrics == nil {
		s.Metrics = metrics.Noop{}
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", s.Port))
	if err != nil {
		return fmt.Errorf("tcp: bind %d: %w", s.Port, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		client, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("tcp: accept on %d: %w", s.Port, err)
		}

		go s.handle(ctx, client)
	}
}

func (s *Server) handle(ctx context.Context, client net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("tcp: panic relaying connection on %s: %v", s.Name, r)
		}
	}()
	defer client.Close()

	upstream, err := s.Service.Connect(ctx)
	if err != nil {
		log.Errorf("tcp: connect upstream for %s: %v", s.Name, err)
		return
	}
	defer upstream.Close()

	s.Metrics.IncTCPConnection(s.Name)
	relay(s.Name, s.Metrics, client, upstream)
}

// relay copies bytes in both directions between client and upstream
// until one side reaches EOF or errors. Each direction runs on its own
// goroutine so a pending read in one direction is never cancelled out
// from under a concurrent write in the other: net.Conn.Read is itself
// the cancel-safe primitive here (a blocked Read simply keeps running
// until data or an error arrives), so there is no shared buffer a
// "losing" reader could hand stale bytes from.
func relay(name string, m metrics.Metrics, client, upstream net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		pipe(name, m, "upstream", upstream, client)
		closeWrite(upstream)
	}()

	go func() {
		defer wg.Done()
		pipe(name, m, "client", client, upstream)
		closeWrite(client)
	}()

	wg.Wait()
}

// pipe copies bytes read from src to dst, one bufferSize chunk at a
// time, guaranteeing a full write for every successful read. direction
// labels the metrics counter with where the bytes are headed.
func pipe(name string, m metrics.Metrics, direction string, dst io.Writer, src io.Reader) {
	buf := make([]byte, bufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
			m.AddTCPBytes(name, direction, n)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugf("tcp: relay %s (%s): %v", name, direction, err)
			}
			return
		}
	}
}

// closeWrite half-closes the write side of conn if it supports it,
// so the peer observes EOF without tearing down the whole connection
// before the other direction's goroutine has finished draining.
func closeWrite(conn net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		wc.CloseWrite()
		return
	}
	conn.Close()
}
