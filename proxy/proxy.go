// Package proxy implements the HTTP ingress server: it classifies
// each request by Host and request attributes, selects a backend
// service via routing.Table, and proxies the request/response.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relaycore/gorelay/flowid"
	"github.com/relaycore/gorelay/host"
	"github.com/relaycore/gorelay/logging"
	"github.com/relaycore/gorelay/metrics"
	"github.com/relaycore/gorelay/routing"
)

// FlowIDHeader is the header a client may set to propagate its own
// flow ID, and the header the gateway sets on the forwarded request
// when it had to generate one.
const FlowIDHeader = "X-Flow-Id"

// Server binds Port and serves HTTP/1.1 requests against Routes.
// Routes is captured once at construction and never mutated while
// serving, so accepted connections share it by value with no locking
// on the read path.
type Server struct {
	Name      string
	Port      int
	Routes    routing.Table
	Metrics   metrics.Metrics
	AccessLog *logging.AccessLog
	FlowIDGen *flowid.Generator

	srv *http.Server
}

// ListenAndServe binds 0.0.0.0:Port and serves until ctx is cancelled
// or the listener errors. A bind failure (§7 BindError) is returned
// immediately and does not affect sibling servers.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Metrics == nil {
		s.Metrics = metrics.Noop{}
	}
	if s.FlowIDGen == nil {
		s.FlowIDGen = flowid.Default()
	}

	s.srv = &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", s.Port),
		Handler: s,
	}

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("proxy: bind %d: %w", s.Port, err)
	}

	go func() {
		<-ctx.Done()
		s.srv.Close()
	}()

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("proxy: serve on %d: %w", s.Port, err)
	}
	return nil
}

// ServeHTTP implements http.Handler: §4.3's route/rule selection
// followed by §4.5's forwarding.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	if s.FlowIDGen == nil {
		s.FlowIDGen = flowid.Default()
	}

	flowID := req.Header.Get(FlowIDHeader)
	if !flowid.Valid(flowID) {
		flowID = s.FlowIDGen.Generate()
	}
	req.Header.Set(FlowIDHeader, flowID)

	hostname, err := host.ParseName(requestHost(req))
	if err != nil {
		s.respondError(w, req, http.StatusBadRequest, flowID, "", start)
		return
	}

	route, rule, err := s.Routes.Select(hostname, req)
	if err != nil {
		s.respondError(w, req, http.StatusNotFound, flowID, "", start)
		return
	}

	resp, err := rule.Backend.Forward(req.Context(), req)
	if err != nil {
		log.Errorf("proxy: forward on %s (route %s): %v", s.Name, route.Name, err)
		s.respondError(w, req, http.StatusBadGateway, flowID, route.Name, start)
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	size, _ := io.Copy(w, resp.Body)

	s.logAndMeasure(req, route.Name, resp.StatusCode, size, flowID, start)
}

func requestHost(req *http.Request) string {
	h := req.Host
	if h == "" {
		h = req.Header.Get("Host")
	}
	if host, _, err := net.SplitHostPort(h); err == nil {
		return host
	}
	return h
}

func (s *Server) respondError(w http.ResponseWriter, req *http.Request, status int, flowID, route string, start time.Time) {
	http.Error(w, http.StatusText(status), status)
	s.logAndMeasure(req, route, status, int64(len(http.StatusText(status))+1), flowID, start)
}

func (s *Server) logAndMeasure(req *http.Request, route string, status int, size int64, flowID string, start time.Time) {
	duration := time.Since(start)
	if s.Metrics != nil {
		s.Metrics.ObserveHTTPRequest(s.Name, route, status, duration.Seconds())
	}
	if s.AccessLog != nil {
		s.AccessLog.Log(logging.AccessEntry{
			Host:         req.RemoteAddr,
			Method:       req.Method,
			Path:         req.URL.Path,
			Status:       status,
			ResponseSize: size,
			Duration:     duration,
			FlowID:       flowID,
			Route:        route,
			RequestTime:  start,
		})
	}
}
