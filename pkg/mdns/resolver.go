/*
 * Copyright 2026 Plugfleet Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package mdns discovers device candidates on the local network via DNS-SD.
package mdns

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/plugfleet/plugfleet/pkg/logger"
)

const (
	// DefaultService is the DNS-SD service type the devices advertise.
	DefaultService = "_shelly._tcp"
	// DefaultDomain is the mDNS browse domain.
	DefaultDomain = "local."
	// DefaultBrowseTimeout bounds one browse round.
	DefaultBrowseTimeout = 5 * time.Second
)

// Resolver browses DNS-SD for advertised devices and reports their IPv4
// addresses. It satisfies scan.MDNSResolver.
type Resolver struct {
	service string
	domain  string
	timeout time.Duration
	logger  logger.Logger
}

// Option tunes resolver construction.
type Option func(*Resolver)

// WithService overrides the browsed service type.
func WithService(service string) Option {
	return func(r *Resolver) {
		if service != "" {
			r.service = service
		}
	}
}

// WithBrowseTimeout overrides the per-browse deadline.
func WithBrowseTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// NewResolver builds an mDNS resolver.
func NewResolver(log logger.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		service: DefaultService,
		domain:  DefaultDomain,
		timeout: DefaultBrowseTimeout,
		logger:  log.WithComponent("mdns"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// DiscoverDeviceIPs browses one round and returns the deduplicated, sorted
// IPv4 addresses of every responder.
func (r *Resolver) DiscoverDeviceIPs(ctx context.Context) ([]string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	seen := make(map[string]struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		for entry := range entries {
			for _, ip := range entry.AddrIPv4 {
				addr := ip.String()
				if _, dup := seen[addr]; dup {
					continue
				}

				seen[addr] = struct{}{}

				r.logger.Debug().
					Str("instance", entry.Instance).
					Str("address", addr).
					Msg("mDNS responder")
			}
		}
	}()

	if err := resolver.Browse(browseCtx, r.service, r.domain, entries); err != nil {
		return nil, fmt.Errorf("mDNS browse failed: %w", err)
	}

	<-browseCtx.Done()
	<-done

	addresses := make([]string, 0, len(seen))
	for addr := range seen {
		addresses = append(addresses, addr)
	}

	sort.Strings(addresses)

	r.logger.Info().Int("devices", len(addresses)).Msg("mDNS browse complete")

	return addresses, nil
}
