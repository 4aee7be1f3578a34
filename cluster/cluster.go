// Package cluster runs the configured stream (TCP/UDP) and HTTP
// servers concurrently, collecting every server's outcome rather than
// tearing down its siblings on the first failure.
package cluster

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Server is satisfied by tcp.Server, udp.Server and proxy.Server: bind
// and serve until ctx is cancelled or a fatal error occurs.
type Server interface {
	ListenAndServe(ctx context.Context) error
}

// Cluster runs a set of independent Servers concurrently.
type Cluster struct {
	Servers []Server
}

// Run starts every server on its own goroutine and blocks until all of
// them return. Unlike errgroup's fail-fast default, a bind or serve
// error in one server does not cancel the others: every server gets to
// run to completion (or until ctx is cancelled), mirroring the
// original join_all-over-futures semantics (REDESIGN FLAG 9.2). The
// first non-nil error encountered, if any, is returned after every
// server has finished.
func (c *Cluster) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, s := range c.Servers {
		s := s
		g.Go(func() error {
			return s.ListenAndServe(ctx)
		})
	}
	return g.Wait()
}
