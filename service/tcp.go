// Package service wraps a load balancer with protocol-specific
// connect logic, producing the TcpService, UdpService and HttpService
// that rules and servers dispatch to.
package service

import (
	"context"
	"net"

	"github.com/relaycore/gorelay/loadbalancer"
)

// TcpService selects a backend and dials it for each accepted client
// connection.
type TcpService struct {
	lb *loadbalancer.LoadBalancer
}

// NewTCP wraps lb as a TcpService.
func NewTCP(lb *loadbalancer.LoadBalancer) *TcpService {
	return &TcpService{lb: lb}
}

// Connect dials the next selected backend.
func (s *TcpService) Connect(ctx context.Context) (net.Conn, error) {
	return s.lb.Next().DialTCP(ctx)
}
