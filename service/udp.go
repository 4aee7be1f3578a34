package service

import (
	"net"

	"github.com/relaycore/gorelay/loadbalancer"
)

// UdpService selects a backend address to relay datagrams toward.
type UdpService struct {
	lb *loadbalancer.LoadBalancer
}

// NewUDP wraps lb as a UdpService.
func NewUDP(lb *loadbalancer.LoadBalancer) *UdpService {
	return &UdpService{lb: lb}
}

// Target resolves the next selected backend's address.
func (s *UdpService) Target() (*net.UDPAddr, error) {
	return s.lb.Next().ResolveUDP()
}
