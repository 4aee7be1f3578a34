package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/relaycore/gorelay/loadbalancer"
)

// HttpService selects a backend and proxies a single HTTP/1.1 request
// to it, unchanged, over a dedicated round trip. It is typically
// shared by every HttpRule that references it, so its LoadBalancer's
// cursor is the only interior mutable state and is already
// mutex-guarded by loadbalancer.LoadBalancer.
type HttpService struct {
	lb        *loadbalancer.LoadBalancer
	transport http.RoundTripper
}

// NewHTTP wraps lb as an HttpService using transport for outbound
// round trips. A nil transport defaults to a *http.Transport with
// keep-alives disabled, so every Forward call dials a fresh backend
// connection and closes it once the response is drained rather than
// returning it to a pool: backend connections are dedicated per
// request, not shared across requests.
func NewHTTP(lb *loadbalancer.LoadBalancer, transport http.RoundTripper) *HttpService {
	if transport == nil {
		transport = &http.Transport{DisableKeepAlives: true}
	}
	return &HttpService{lb: lb, transport: transport}
}

// Forward selects a backend, rewrites req's destination to it, and
// performs the round trip. req is sent otherwise unchanged: method,
// path, query, headers and body all pass through untouched.
func (s *HttpService) Forward(ctx context.Context, req *http.Request) (*http.Response, error) {
	b := s.lb.Next()

	outReq := req.Clone(ctx)
	outReq.URL.Scheme = "http"
	outReq.URL.Host = b.Addr()
	outReq.RequestURI = ""

	resp, err := s.transport.RoundTrip(outReq)
	if err != nil {
		return nil, fmt.Errorf("service: forward to %s: %w", b.Addr(), err)
	}
	return resp, nil
}
