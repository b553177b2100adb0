// Package dnsops builds pool work functions for blocking name
// resolution. Lookups honor the work context the pool passes in, so a
// base-context deadline set on the pool bounds resolver time; the pool
// itself never interrupts a lookup that has started.
package dnsops

import (
	"context"
	"net"

	"github.com/offloadio/offload/pkg/pool"
)

// Resolver used by all lookups. Swappable in tests.
var Resolver = net.DefaultResolver

// LookupHost returns a work function resolving to []string addresses.
func LookupHost(host string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return Resolver.LookupHost(ctx, host) }
}

// LookupAddr returns a work function resolving to []string names for
// a reverse lookup.
func LookupAddr(addr string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return Resolver.LookupAddr(ctx, addr) }
}

// LookupPort returns a work function resolving to the int port for a
// network and service name.
func LookupPort(network, service string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return Resolver.LookupPort(ctx, network, service) }
}

// LookupCNAME returns a work function resolving to the canonical name.
func LookupCNAME(host string) pool.WorkFunc {
	return func(ctx context.Context) (any, error) { return Resolver.LookupCNAME(ctx, host) }
}
