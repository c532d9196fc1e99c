// Package client is a connection library for a distributed in-memory
// data-grid cluster: it multiplexes request/response traffic over
// per-member TCP connections, arbitrates member selection, and exposes a
// replicated PN-counter data type on top.
package client

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Client is the public entry point: it owns the cluster registry that
// Connect built from the seed endpoints.
type Client struct {
	cluster *Cluster
}

// Option configures Connect. There is no configuration file, environment
// variable, or CLI flag surface here; every knob this module exposes is a
// Go value passed in code.
type Option func(*connectConfig)

type connectConfig struct {
	registerer prometheus.Registerer
}

// WithMetrics registers this client's prometheus collectors with reg.
// Omitting it leaves metrics disabled; internal/metrics.Collectors is
// nil-safe throughout, so callers who don't pass this option pay nothing
// for the metrics plumbing.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *connectConfig) { c.registerer = reg }
}

// Connect dials and authenticates every seed endpoint ("host:port"),
// enabling whichever succeed. It fails with Cluster-non-operational if
// none do.
func Connect(ctx context.Context, seedEndpoints []string, username, password string, opts ...Option) (*Client, error) {
	if len(seedEndpoints) == 0 {
		return nil, &Error{Kind: KindClusterNonOperational, Message: "no seed endpoints given"}
	}

	cfg := connectConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	seeds := make([]Address, 0, len(seedEndpoints))
	for _, ep := range seedEndpoints {
		addr, err := parseEndpoint(ep)
		if err != nil {
			return nil, protocolViolation(fmt.Sprintf("invalid seed endpoint %q", ep), err)
		}
		seeds = append(seeds, addr)
	}

	creds := Credentials{Username: username, Password: password}
	cluster, err := connectCluster(ctx, seeds, creds, cfg.registerer)
	if err != nil {
		return nil, err
	}
	return &Client{cluster: cluster}, nil
}

// Counter returns a handle to the named replicated counter. It performs
// no I/O; the handle resolves and talks to a member lazily on first use.
func (c *Client) Counter(name string) *CounterHandle {
	return newCounterHandle(name, c.cluster)
}

// Members returns a diagnostic snapshot of the current member registry.
func (c *Client) Members() []MemberInfo {
	return c.cluster.Snapshot()
}

// Close tears down every member connection and stops the liveness
// pinger. It does not attempt to drain in-flight operations; callers
// relying on in-flight work should let it complete before calling Close.
func (c *Client) Close() error {
	return c.cluster.Close()
}
