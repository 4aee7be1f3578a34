// Package udp implements the UDP virtual-connection manager: since
// UDP has no native connection, Server synthesizes one per distinct
// client address, each backed by a dedicated ephemeral socket and
// serving goroutine, reaped after an idle TTL.
package udp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relaycore/gorelay/metrics"
	"github.com/relaycore/gorelay/service"
)

const (
	ingressBufferSize = 8192
	// DefaultTTL is the idle duration after which a virtual connection
	// is reaped when the caller does not override it.
	DefaultTTL   = 10 * time.Second
	reaperPeriod = 1 * time.Second
)

// Server binds Port, synthesizing one virtual connection per client
// address and relaying datagrams to and from a backend selected by
// Service.
type Server struct {
	Name    string
	Port    int
	Service *service.UdpService
	TTL     time.Duration
	Metrics metrics.Metrics

	mu    sync.Mutex
	conns map[string]*virtualConn
}

// virtualConn is one client's synthesized connection: an ephemeral
// socket dedicated to relaying that client's traffic to and from its
// selected upstream, a one-shot close signal, and a lock-guarded
// activity clock the reaper consults.
type virtualConn struct {
	client    *net.UDPAddr
	upstream  *net.UDPAddr
	ephemeral *net.UDPConn
	closeOnce sync.Once
	closeSig  chan struct{}

	mu           sync.Mutex
	lastActivity time.Time
}

func (c *virtualConn) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *virtualConn) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastActivity)
}

func (c *virtualConn) close() {
	c.closeOnce.Do(func() {
		close(c.closeSig)
		c.ephemeral.Close()
	})
}

// ListenAndServe binds 0.0.0.0:Port, starts the idle-connection reaper
// and reads datagrams until ctx is cancelled or the socket errors.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Metrics == nil {
		s.Metrics = metrics.Noop{}
	}
	if s.TTL <= 0 {
		s.TTL = DefaultTTL
	}
	s.conns = make(map[string]*virtualConn)

	addr := &net.UDPAddr{IP: net.IPv4zero, Port: s.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("udp: bind %d: %w", s.Port, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go s.reap(ctx)

	buf := make([]byte, ingressBufferSize)
	for {
		n, clientAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("udp: read on %d: %w", s.Port, err)
		}
		s.dispatch(ctx, conn, clientAddr, buf[:n])
	}
}

func (s *Server) dispatch(ctx context.Context, serverSocket *net.UDPConn, clientAddr *net.UDPAddr, payload []byte) {
	key := clientAddr.String()

	s.mu.Lock()
	vc, ok := s.conns[key]
	if ok {
		s.mu.Unlock()
		s.relayToUpstream(vc, payload)
		return
	}

	vc, err := s.newVirtualConn(clientAddr)
	if err != nil {
		s.mu.Unlock()
		log.Errorf("udp: create virtual connection for %s on %s: %v", key, s.Name, err)
		return
	}
	s.conns[key] = vc
	s.Metrics.SetUDPConnections(s.Name, len(s.conns))
	s.relayToUpstream(vc, payload)
	s.mu.Unlock()

	go s.serve(ctx, serverSocket, vc)
}

func (s *Server) newVirtualConn(clientAddr *net.UDPAddr) (*virtualConn, error) {
	upstream, err := s.Service.Target()
	if err != nil {
		return nil, err
	}

	ephemeral, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("udp: open ephemeral socket: %w", err)
	}

	return &virtualConn{
		client:       clientAddr,
		upstream:     upstream,
		ephemeral:    ephemeral,
		closeSig:     make(chan struct{}),
		lastActivity: time.Now(),
	}, nil
}

// relayToUpstream sends payload from the client on vc's ephemeral
// socket to the selected upstream, updating lastActivity.
func (s *Server) relayToUpstream(vc *virtualConn, payload []byte) {
	vc.touch()
	if _, err := vc.ephemeral.WriteToUDP(payload, vc.upstream); err != nil {
		log.Errorf("udp: relay to upstream %s on %s: %v", vc.upstream, s.Name, err)
		return
	}
	s.Metrics.IncUDPPacket(s.Name, "upstream")
}

// serve owns vc's ephemeral socket for its lifetime, forwarding
// upstream replies back to the client via the shared server socket
// until the close signal fires or the socket errors.
func (s *Server) serve(ctx context.Context, serverSocket *net.UDPConn, vc *virtualConn) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("udp: panic serving %s on %s: %v", vc.client, s.Name, r)
		}
	}()

	buf := make([]byte, ingressBufferSize)
	for {
		vc.ephemeral.SetReadDeadline(time.Now().Add(reaperPeriod))
		n, peer, err := vc.ephemeral.ReadFromUDP(buf)

		select {
		case <-vc.closeSig:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.Errorf("udp: read from upstream %s on %s: %v", vc.upstream, s.Name, err)
			return
		}

		if !peer.IP.Equal(vc.upstream.IP) || peer.Port != vc.upstream.Port {
			continue
		}

		vc.touch()
		if _, err := serverSocket.WriteToUDP(buf[:n], vc.client); err != nil {
			log.Errorf("udp: relay to client %s on %s: %v", vc.client, s.Name, err)
			return
		}
		s.Metrics.IncUDPPacket(s.Name, "client")
	}
}

// reap removes virtual connections idle for longer than s.TTL once
// per reaperPeriod, closing each one so its serving goroutine exits.
func (s *Server) reap(ctx context.Context) {
	ticker := time.NewTicker(reaperPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.reapOnce(now)
		}
	}
}

func (s *Server) reapOnce(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, vc := range s.conns {
		if vc.idleSince(now) > s.TTL {
			delete(s.conns, key)
			vc.close()
		}
	}
	s.Metrics.SetUDPConnections(s.Name, len(s.conns))
}
