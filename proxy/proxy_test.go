package proxy

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/gorelay/backend"
	"github.com/relaycore/gorelay/host"
	"github.com/relaycore/gorelay/loadbalancer"
	"github.com/relaycore/gorelay/match"
	"github.com/relaycore/gorelay/routing"
	"github.com/relaycore/gorelay/service"
)

func upstreamBackend(t *testing.T, handler http.HandlerFunc) *service.HttpService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	lb, err := loadbalancer.New([]backend.Definition{{IP: net.ParseIP("127.0.0.1"), Port: uint16(port)}}, loadbalancer.RoundRobin)
	require.NoError(t, err)
	return service.NewHTTP(lb, nil)
}

func mustHostSpec(t *testing.T, s string) host.Spec {
	t.Helper()
	spec, err := host.ParseSpec(s)
	require.NoError(t, err)
	return spec
}

func TestServeHTTPSelectsFirstMatchingRoute(t *testing.T) {
	var gotHost string
	backendA := upstreamBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotHost = "A"
		w.WriteHeader(http.StatusOK)
	})
	backendB := upstreamBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotHost = "B"
		w.WriteHeader(http.StatusOK)
	})

	routeA := routing.HttpRoute{
		Name:      "A",
		Hostnames: []host.Spec{mustHostSpec(t, "api.example.com")},
		Rules:     []routing.HttpRule{{Backend: backendA}},
	}
	routeB := routing.HttpRoute{
		Name:      "B",
		Hostnames: []host.Spec{mustHostSpec(t, "*.example.com")},
		Rules:     []routing.HttpRule{{Backend: backendB}},
	}

	s := &Server{Name: "web", Routes: routing.Table{Routes: []routing.HttpRoute{routeA, routeB}}}

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/", nil)
	req.Host = "api.example.com"
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A", gotHost)
}

func TestServeHTTPReturns404WhenNoHostMatches(t *testing.T) {
	backendSvc := upstreamBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	route := routing.HttpRoute{
		Hostnames: []host.Spec{mustHostSpec(t, "*.example.com")},
		Rules:     []routing.HttpRule{{Backend: backendSvc}},
	}
	s := &Server{Routes: routing.Table{Routes: []routing.HttpRoute{route}}}

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Host = "example.com"
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTPReturns400OnMissingHost(t *testing.T) {
	s := &Server{Routes: routing.Table{}}

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Host = ""
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeHTTPReturns502OnUnreachableBackend(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	ln.Close()

	lb, err := loadbalancer.New([]backend.Definition{{IP: net.ParseIP("127.0.0.1"), Port: port}}, loadbalancer.RoundRobin)
	require.NoError(t, err)
	backendSvc := service.NewHTTP(lb, nil)

	route := routing.HttpRoute{Rules: []routing.HttpRule{{Backend: backendSvc}}}
	s := &Server{Routes: routing.Table{Routes: []routing.HttpRoute{route}}}

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Host = "example.com"
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServeHTTPMatcherAND(t *testing.T) {
	backendSvc := upstreamBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	method, err := match.ParseMethod("GET")
	require.NoError(t, err)
	m := match.NewMatcher(match.ExactPath("/x"), method, []match.HeaderMatcher{match.NewExactHeader("x-a", "1")})
	route := routing.HttpRoute{Rules: []routing.HttpRule{{Matcher: m, Backend: backendSvc}}}
	s := &Server{Routes: routing.Table{Routes: []routing.HttpRoute{route}}}

	req := httptest.NewRequest(http.MethodGet, "http://example.com/x", nil)
	req.Host = "example.com"
	req.Header.Set("x-a", "1")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	reqNoHeader := httptest.NewRequest(http.MethodGet, "http://example.com/x", nil)
	reqNoHeader.Host = "example.com"
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, reqNoHeader)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListenAndServeReturnsBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	s := &Server{Port: port}
	err = s.ListenAndServe(context.Background())
	assert.Error(t, err)
}
