/*
This command provides an executable version of the gateway.

For the list of command line options, run:

	gorelay -help

For details about the object graph it builds from a configuration
document, see the config, cluster, tcp, udp and proxy package
documentation.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/relaycore/gorelay/config"
	"github.com/relaycore/gorelay/logging"
	"github.com/relaycore/gorelay/metrics"
)

var version = "dev"

func main() {
	cfg := config.New()
	if err := cfg.Parse(os.Args[1:]); err != nil {
		log.Fatalf("error processing config: %s", err)
	}

	if cfg.PrintVersion {
		fmt.Printf("gorelay version %s\n", version)
		return
	}

	if err := logging.Init(cfg.LogLevel, cfg.LogFormat, nil); err != nil {
		log.Fatalf("error configuring logging: %s", err)
	}

	var accessLog *logging.AccessLog
	if !cfg.AccessLogDisabled {
		accessLog = logging.NewAccessLog(logging.AccessLogOptions{JSON: cfg.LogFormat == "json"})
	}

	reg, gatewayMetrics := metrics.NewPrometheusRegistry()

	rt, err := cfg.ToRuntime(gatewayMetrics, accessLog)
	if err != nil {
		log.Fatalf("error building runtime configuration: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serveMetrics(ctx, cfg.Address, reg); err != nil {
			log.Errorf("metrics listener: %s", err)
		}
	}()

	var streamErr, httpErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamErr = runCluster(ctx, "stream", rt.Stream)
	}()
	go func() {
		defer wg.Done()
		httpErr = runCluster(ctx, "http", rt.HTTP)
	}()
	wg.Wait()

	if err := errors.Join(streamErr, httpErr); err != nil {
		log.Fatal(err)
	}
}

// runCluster runs one cluster to completion and returns its error, if
// any, prefixed with the cluster's name; it does not stop the other
// cluster or the process: §7 requires a bind
// failure in one server not to tear down unrelated servers, and that
// extends here to the stream cluster not tearing down the http one.
func runCluster(ctx context.Context, name string, c interface {
	Run(ctx context.Context) error
}) error {
	if err := c.Run(ctx); err != nil {
		return fmt.Errorf("%s cluster: %w", name, err)
	}
	return nil
}

// serveMetrics exposes the Prometheus registry on /metrics until ctx
// is cancelled.
func serveMetrics(ctx context.Context, address string, reg *prometheus.Registry) error {
	srv := &http.Server{
		Addr:    address,
		Handler: metrics.Handler(reg),
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
