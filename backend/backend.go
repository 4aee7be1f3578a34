// Package backend defines a single upstream endpoint and the dial
// helpers used to reach it over TCP and UDP.
package backend

import (
	"context"
	"fmt"
	"net"
)

// Definition is a single resolved upstream endpoint.
type Definition struct {
	IP   net.IP
	Port uint16
}

// Addr renders the definition as a host:port string suitable for
// net.Dial.
func (d Definition) Addr() string {
	return net.JoinHostPort(d.IP.String(), fmt.Sprintf("%d", d.Port))
}

// String implements fmt.Stringer.
func (d Definition) String() string { return d.Addr() }

// DialTCP opens a TCP connection to the backend.
func (d Definition) DialTCP(ctx context.Context) (net.Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", d.Addr())
	if err != nil {
		return nil, fmt.Errorf("backend: dial tcp %s: %w", d.Addr(), err)
	}
	return conn, nil
}

// ResolveUDP resolves the backend's address for use as a UDP relay
// target.
func (d Definition) ResolveUDP() (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", d.Addr())
	if err != nil {
		return nil, fmt.Errorf("backend: resolve udp %s: %w", d.Addr(), err)
	}
	return addr, nil
}
