// Package routing selects an HttpRoute and HttpRule for an incoming
// request: first-match-wins linear scans over hostname and matcher
// predicates, in configuration order.
package routing

import (
	"errors"
	"net/http"

	"github.com/relaycore/gorelay/host"
	"github.com/relaycore/gorelay/match"
	"github.com/relaycore/gorelay/service"
)

// ErrNoRouteMatch is returned when no configured route's hostnames
// contain the request's Host.
var ErrNoRouteMatch = errors.New("routing: no route matches host")

// ErrNoRuleMatch is returned when a matching route has no rule whose
// matcher is satisfied by the request.
var ErrNoRuleMatch = errors.New("routing: no rule matches request")

// HttpRule is the smallest routable HTTP unit: a matcher and the
// service to forward matching requests to. A rule with no matchers
// (the zero Matcher) matches everything.
type HttpRule struct {
	Name    string
	Matcher match.Matcher
	Backend *service.HttpService
}

// HttpRoute scopes a set of rules to one or more hostnames. An empty
// Hostnames list matches any Host.
type HttpRoute struct {
	Name      string
	Hostnames []host.Spec
	Rules     []HttpRule
}

func (r HttpRoute) matchesHost(h host.Name) bool {
	if len(r.Hostnames) == 0 {
		return true
	}
	for _, spec := range r.Hostnames {
		if spec.Matches(h) {
			return true
		}
	}
	return false
}

// Table is the immutable, ordered set of routes installed on an
// HttpServer at startup. It is never mutated while serving, so lookups
// need no locking.
type Table struct {
	Routes []HttpRoute
}

// Select scans Routes in order and returns the first route matching h,
// then within it the first rule whose matcher is satisfied by req.
// Both scans are first-match-wins, mirroring how the routes and rules
// were declared.
func (t Table) Select(h host.Name, req *http.Request) (HttpRoute, HttpRule, error) {
	for _, route := range t.Routes {
		if !route.matchesHost(h) {
			continue
		}
		for _, rule := range route.Rules {
			if rule.Matcher.Matches(req) {
				return route, rule, nil
			}
		}
		return HttpRoute{}, HttpRule{}, ErrNoRuleMatch
	}
	return HttpRoute{}, HttpRule{}, ErrNoRouteMatch
}
