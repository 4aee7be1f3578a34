// Package loadbalancer selects one backend from a fixed ordered set
// per request, by round-robin or random policy.
package loadbalancer

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/relaycore/gorelay/backend"
)

// Algorithm names a backend-selection policy.
type Algorithm string

const (
	// RoundRobin cycles through backends in order, one step per call.
	RoundRobin Algorithm = "round-robin"
	// Random selects a backend uniformly at random on every call.
	Random Algorithm = "random"
)

// ErrNoBackends is returned by New when given an empty backend list.
// A load balancer with nothing to balance across is a configuration
// error, not a runtime condition.
var ErrNoBackends = errors.New("loadbalancer: at least one backend is required")

// ErrUnknownAlgorithm is returned by New for an unrecognized Algorithm value.
var ErrUnknownAlgorithm = errors.New("loadbalancer: unknown algorithm")

// LoadBalancer selects a backend.Definition from a fixed set on each
// call to Next. Round-robin state (the cursor) is guarded by a mutex
// so the balancer can be shared across concurrent callers, e.g. every
// rule referencing the same HttpService.
type LoadBalancer struct {
	backends  []backend.Definition
	algorithm Algorithm

	mu     sync.Mutex
	cursor int
}

// New builds a LoadBalancer over backends using the given algorithm.
func New(backends []backend.Definition, algorithm Algorithm) (*LoadBalancer, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	switch algorithm {
	case RoundRobin, Random:
	default:
		return nil, ErrUnknownAlgorithm
	}
	cp := make([]backend.Definition, len(backends))
	copy(cp, backends)
	return &LoadBalancer{backends: cp, algorithm: algorithm}, nil
}

// Next selects the next backend per the configured algorithm.
func (lb *LoadBalancer) Next() backend.Definition {
	switch lb.algorithm {
	case Random:
		return lb.backends[rand.Intn(len(lb.backends))]
	default:
		return lb.nextRoundRobin()
	}
}

func (lb *LoadBalancer) nextRoundRobin() backend.Definition {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	b := lb.backends[lb.cursor]
	lb.cursor = (lb.cursor + 1) % len(lb.backends)
	return b
}

// Backends returns the configured backend set. The returned slice must
// not be mutated by callers.
func (lb *LoadBalancer) Backends() []backend.Definition {
	return lb.backends
}
