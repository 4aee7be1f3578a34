// Package config assembles a Config from process flags and an
// optional YAML document (§6), validates it (§7 ConfigError), and
// converts it into the runtime stream and HTTP clusters ready to Run.
//
// This mirrors the teacher's own config.Config construction: a small
// set of flag.*Var bindings plus a yaml.v2-unmarshalled document,
// collapsed here onto the gateway's much smaller configuration surface
// (no filter/predicate DSL, no cluster/swarm, no TLS).
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/relaycore/gorelay/backend"
	"github.com/relaycore/gorelay/cluster"
	"github.com/relaycore/gorelay/host"
	"github.com/relaycore/gorelay/loadbalancer"
	"github.com/relaycore/gorelay/logging"
	"github.com/relaycore/gorelay/match"
	"github.com/relaycore/gorelay/metrics"
	"github.com/relaycore/gorelay/proxy"
	"github.com/relaycore/gorelay/routing"
	"github.com/relaycore/gorelay/service"
	"github.com/relaycore/gorelay/tcp"
	"github.com/relaycore/gorelay/udp"
)

// Configuration errors (§7 ConfigError), all fatal at startup.
var (
	ErrUnknownService    = errors.New("config: server references unknown service")
	ErrUnknownBackend    = errors.New("config: rule references unknown backend service")
	ErrUnknownServer     = errors.New("config: route references unknown server")
	ErrProtocolMismatch  = errors.New("config: server protocol does not match its service protocol")
	ErrEmptyBackends     = errors.New("config: service has no backends")
	ErrUnknownProtocol   = errors.New("config: unrecognized protocol, want tcp or udp")
	ErrInvalidBackendIP  = errors.New("config: invalid backend IP address")
	ErrInvalidPathMatch  = errors.New("config: a path match must set exactly one of exact, prefix or regex")
	ErrInvalidHeaderName = errors.New("config: a header match requires a name")
)

const defaultMetricsAddress = ":9911"

// Config is the process-level configuration: flag-sourced ambient
// knobs plus the optional stream/http document.
type Config struct {
	ConfigFile        string
	Address           string
	LogLevel          string
	LogFormat         string
	AccessLogDisabled bool
	PrintVersion      bool

	Document Document
}

// Document is the YAML-shaped configuration document (§6).
type Document struct {
	Stream *StreamConfig `yaml:"stream"`
	HTTP   *HTTPConfig   `yaml:"http"`
}

// BackendConfig is one backend endpoint entry.
type BackendConfig struct {
	IP   string `yaml:"ip"`
	Port uint16 `yaml:"port"`
}

// ServiceConfig names a set of backends and the algorithm used to
// balance across them. Protocol only applies to stream services; HTTP
// services are always implicitly HTTP.
type ServiceConfig struct {
	Protocol  string          `yaml:"protocol"`
	Backends  []BackendConfig `yaml:"backends"`
	Algorithm string          `yaml:"load-balancing-algorithm"`
}

// StreamServerConfig binds a port to a named stream service.
type StreamServerConfig struct {
	Protocol string `yaml:"protocol"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	Service  string `yaml:"service"`
	// TTL overrides the default UDP virtual-connection idle TTL, e.g. "10s".
	TTL string `yaml:"biderectional-connection-ttl"`
}

// StreamConfig is the stream.* section of the document.
type StreamConfig struct {
	Services map[string]ServiceConfig `yaml:"services"`
	Servers  []StreamServerConfig     `yaml:"servers"`
}

// HTTPServerConfig names a port an HttpServer binds.
type HTTPServerConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

// PathMatchConfig configures exactly one of Exact, Prefix or Regex.
type PathMatchConfig struct {
	Exact  string `yaml:"exact"`
	Prefix string `yaml:"prefix"`
	Regex  string `yaml:"regex"`
}

// HeaderMatchConfig configures an Exact or Regex header match keyed
// by Name, depending on whether Regex is set.
type HeaderMatchConfig struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
	Regex string `yaml:"regex"`
}

// MatcherConfig configures one Matcher's optional path, method and
// header predicates, all of which are present fields must match (AND).
type MatcherConfig struct {
	Path    *PathMatchConfig    `yaml:"path"`
	Method  string              `yaml:"method"`
	Headers []HeaderMatchConfig `yaml:"headers"`
}

// RuleConfig is one matches-or-anything rule within a route.
type RuleConfig struct {
	Matches []MatcherConfig `yaml:"matches"`
	Backend string          `yaml:"backend"`
}

// RouteConfig is one hostname-scoped group of rules.
type RouteConfig struct {
	Name      string       `yaml:"name"`
	Server    string       `yaml:"server"`
	Hostnames []string     `yaml:"hostnames"`
	Rules     []RuleConfig `yaml:"rules"`
}

// HTTPConfig is the http.* section of the document.
type HTTPConfig struct {
	Services map[string]ServiceConfig `yaml:"services"`
	Servers  []HTTPServerConfig       `yaml:"servers"`
	Routes   []RouteConfig            `yaml:"routes"`
}

// New returns a Config with the ambient defaults every cmd/ entrypoint
// in the teacher stack exposes.
func New() *Config {
	return &Config{
		Address:   defaultMetricsAddress,
		LogLevel:  logging.LevelInfo,
		LogFormat: "text",
	}
}

// Parse binds and parses the process flags, reading and unmarshalling
// -config-file into c.Document when one is given.
func (c *Config) Parse(args []string) error {
	fs := flag.NewFlagSet("gorelay", flag.ContinueOnError)
	fs.StringVar(&c.ConfigFile, "config-file", c.ConfigFile, "path to the YAML configuration document")
	fs.StringVar(&c.Address, "address", c.Address, "metrics/health HTTP listener address")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "panic|fatal|error|warn|info|debug|trace")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "text|json")
	fs.BoolVar(&c.AccessLogDisabled, "access-log-disabled", c.AccessLogDisabled, "disable HTTP access logging")
	fs.BoolVar(&c.PrintVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if c.ConfigFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", c.ConfigFile, err)
	}
	if err := yaml.Unmarshal(data, &c.Document); err != nil {
		return fmt.Errorf("config: parse %s: %w", c.ConfigFile, err)
	}
	return nil
}

// Runtime holds the two clusters built from a Config, ready to Run
// concurrently from the process entry point.
type Runtime struct {
	Stream *cluster.Cluster
	HTTP   *cluster.Cluster
}

// ToRuntime validates the document and builds the runtime object
// graph: backends, load balancers, services, routes and servers. m and
// accessLog are wired into every constructed server.
func (c *Config) ToRuntime(m metrics.Metrics, accessLog *logging.AccessLog) (*Runtime, error) {
	streamServers, err := c.buildStreamServers(m)
	if err != nil {
		return nil, err
	}
	httpServers, err := c.buildHTTPServers(m, accessLog)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Stream: &cluster.Cluster{Servers: streamServers},
		HTTP:   &cluster.Cluster{Servers: httpServers},
	}, nil
}

func toBackends(cfgs []BackendConfig) ([]backend.Definition, error) {
	if len(cfgs) == 0 {
		return nil, ErrEmptyBackends
	}
	out := make([]backend.Definition, 0, len(cfgs))
	for _, b := range cfgs {
		ip := net.ParseIP(b.IP)
		if ip == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBackendIP, b.IP)
		}
		out = append(out, backend.Definition{IP: ip, Port: b.Port})
	}
	return out, nil
}

func toAlgorithm(name string) loadbalancer.Algorithm {
	if name == "" {
		return loadbalancer.RoundRobin
	}
	return loadbalancer.Algorithm(name)
}

func (c *Config) buildStreamServers(m metrics.Metrics) ([]cluster.Server, error) {
	if c.Document.Stream == nil {
		return nil, nil
	}
	sc := c.Document.Stream

	servers := make([]cluster.Server, 0, len(sc.Servers))
	for _, srvCfg := range sc.Servers {
		svcCfg, ok := sc.Services[srvCfg.Service]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownService, srvCfg.Service)
		}
		if svcCfg.Protocol != srvCfg.Protocol {
			return nil, fmt.Errorf("%w: server %q is %s, service %q is %s",
				ErrProtocolMismatch, srvCfg.Name, srvCfg.Protocol, srvCfg.Service, svcCfg.Protocol)
		}

		backends, err := toBackends(svcCfg.Backends)
		if err != nil {
			return nil, err
		}
		lb, err := loadbalancer.New(backends, toAlgorithm(svcCfg.Algorithm))
		if err != nil {
			return nil, err
		}

		switch srvCfg.Protocol {
		case "tcp":
			servers = append(servers, &tcp.Server{
				Name:    srvCfg.Name,
				Port:    srvCfg.Port,
				Service: service.NewTCP(lb),
				Metrics: m,
			})
		case "udp":
			ttl := udp.DefaultTTL
			if srvCfg.TTL != "" {
				parsed, err := time.ParseDuration(srvCfg.TTL)
				if err != nil {
					return nil, fmt.Errorf("config: invalid ttl %q for server %q: %w", srvCfg.TTL, srvCfg.Name, err)
				}
				ttl = parsed
			}
			servers = append(servers, &udp.Server{
				Name:    srvCfg.Name,
				Port:    srvCfg.Port,
				Service: service.NewUDP(lb),
				TTL:     ttl,
				Metrics: m,
			})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, srvCfg.Protocol)
		}
	}
	return servers, nil
}

func toPathMatcher(cfg *PathMatchConfig) (match.PathMatcher, error) {
	if cfg == nil {
		return nil, nil
	}
	set := 0
	var m match.PathMatcher
	if cfg.Exact != "" {
		set++
		m = match.ExactPath(cfg.Exact)
	}
	if cfg.Prefix != "" {
		set++
		prefix, err := match.NewPrefixPath(cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("config: path prefix %q: %w", cfg.Prefix, err)
		}
		m = prefix
	}
	if cfg.Regex != "" {
		set++
		re, err := match.NewRegexPath(cfg.Regex)
		if err != nil {
			return nil, fmt.Errorf("config: compile path regex %q: %w", cfg.Regex, err)
		}
		m = re
	}
	if set != 1 {
		return nil, ErrInvalidPathMatch
	}
	return m, nil
}

func toHeaderMatchers(cfgs []HeaderMatchConfig) ([]match.HeaderMatcher, error) {
	out := make([]match.HeaderMatcher, 0, len(cfgs))
	for _, h := range cfgs {
		if h.Name == "" {
			return nil, ErrInvalidHeaderName
		}
		if h.Regex != "" {
			re, err := match.NewRegexHeader(h.Name, h.Regex)
			if err != nil {
				return nil, fmt.Errorf("config: compile header regex %q: %w", h.Regex, err)
			}
			out = append(out, re)
			continue
		}
		out = append(out, match.NewExactHeader(h.Name, h.Value))
	}
	return out, nil
}

func toMatcher(cfg MatcherConfig) (match.Matcher, error) {
	pathMatcher, err := toPathMatcher(cfg.Path)
	if err != nil {
		return match.Matcher{}, err
	}
	headers, err := toHeaderMatchers(cfg.Headers)
	if err != nil {
		return match.Matcher{}, err
	}
	var method match.Method
	if cfg.Method != "" {
		method, err = match.ParseMethod(cfg.Method)
		if err != nil {
			return match.Matcher{}, fmt.Errorf("config: method %q: %w", cfg.Method, err)
		}
	}
	return match.NewMatcher(pathMatcher, method, headers), nil
}

// toRules expands one RuleConfig into the routing.HttpRule slice that
// reproduces its "OR across Matchers in a Rule" semantics (§2): each
// configured Matcher becomes its own first-match-wins HttpRule sharing
// the rule's backend, since routing.HttpRule pairs exactly one
// AND-combined Matcher with a backend. A rule with no configured
// matches becomes a single catch-all HttpRule.
func toRules(ruleCfg RuleConfig, backendSvc *service.HttpService) ([]routing.HttpRule, error) {
	if len(ruleCfg.Matches) == 0 {
		return []routing.HttpRule{{Backend: backendSvc}}, nil
	}
	rules := make([]routing.HttpRule, 0, len(ruleCfg.Matches))
	for _, mCfg := range ruleCfg.Matches {
		m, err := toMatcher(mCfg)
		if err != nil {
			return nil, err
		}
		rules = append(rules, routing.HttpRule{Matcher: m, Backend: backendSvc})
	}
	return rules, nil
}

func (c *Config) buildHTTPServers(m metrics.Metrics, accessLog *logging.AccessLog) ([]cluster.Server, error) {
	if c.Document.HTTP == nil {
		return nil, nil
	}
	hc := c.Document.HTTP

	services := make(map[string]*service.HttpService, len(hc.Services))
	for name, svcCfg := range hc.Services {
		backends, err := toBackends(svcCfg.Backends)
		if err != nil {
			return nil, err
		}
		lb, err := loadbalancer.New(backends, toAlgorithm(svcCfg.Algorithm))
		if err != nil {
			return nil, err
		}
		services[name] = service.NewHTTP(lb, nil)
	}

	serverNames := make(map[string]bool, len(hc.Servers))
	for _, srvCfg := range hc.Servers {
		serverNames[srvCfg.Name] = true
	}

	routesByServer := make(map[string][]routing.HttpRoute, len(hc.Servers))
	for _, rc := range hc.Routes {
		if !serverNames[rc.Server] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownServer, rc.Server)
		}
		hostnames := make([]host.Spec, 0, len(rc.Hostnames))
		for _, hn := range rc.Hostnames {
			spec, err := host.ParseSpec(hn)
			if err != nil {
				return nil, fmt.Errorf("config: route %q hostname %q: %w", rc.Name, hn, err)
			}
			hostnames = append(hostnames, spec)
		}

		rules := make([]routing.HttpRule, 0, len(rc.Rules))
		for _, ruleCfg := range rc.Rules {
			backendSvc, ok := services[ruleCfg.Backend]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, ruleCfg.Backend)
			}
			expanded, err := toRules(ruleCfg, backendSvc)
			if err != nil {
				return nil, fmt.Errorf("config: route %q: %w", rc.Name, err)
			}
			rules = append(rules, expanded...)
		}

		route := routing.HttpRoute{Name: rc.Name, Hostnames: hostnames, Rules: rules}
		routesByServer[rc.Server] = append(routesByServer[rc.Server], route)
	}

	servers := make([]cluster.Server, 0, len(hc.Servers))
	for _, srvCfg := range hc.Servers {
		servers = append(servers, &proxy.Server{
			Name:      srvCfg.Name,
			Port:      srvCfg.Port,
			Routes:    routing.Table{Routes: routesByServer[srvCfg.Name]},
			Metrics:   m,
			AccessLog: accessLog,
		})
	}
	return servers, nil
}
