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

// Package scan expands heterogeneous target strings into address lists and
// probes them with bounded parallelism.
package scan

import (
	"context"
	"sync"

	"github.com/plugfleet/plugfleet/pkg/logger"
	"github.com/plugfleet/plugfleet/pkg/models"
)

const (
	// DefaultWorkers bounds a scan fan-out when the caller does not.
	DefaultWorkers = 50
	// MaxWorkers is the hard ceiling on scan parallelism.
	MaxWorkers = 200

	workQueueMultiplier = 2
)

// Prober probes one address and classifies the outcome. Satisfied by the
// device gateway.
type Prober interface {
	Discover(ctx context.Context, address string) models.DiscoveryResult
}

// MDNSResolver is the external mDNS discovery collaborator.
type MDNSResolver interface {
	DiscoverDeviceIPs(ctx context.Context) ([]string, error)
}

// Scanner drives target expansion through a prober with a bounded worker
// pool, yielding results in completion order.
type Scanner struct {
	prober         Prober
	mdns           MDNSResolver
	logger         logger.Logger
	defaultWorkers int
}

// Option tunes scanner construction.
type Option func(*Scanner)

// WithDefaultWorkers overrides the fallback fan-out used by scans that do not
// set their own worker count, clamped to MaxWorkers.
func WithDefaultWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.defaultWorkers = n
		}
	}
}

// Options control a single scan.
type Options struct {
	// Workers bounds concurrent probes. Zero means DefaultWorkers; values
	// above MaxWorkers are clamped.
	Workers int
	// UseMDNS asks the mDNS collaborator for candidate addresses instead of
	// expanding Targets.
	UseMDNS bool
	// OnResult, when set, observes every probe result including the ones
	// filtered from the returned list (unreachable, not_a_device, error,
	// auth_required).
	OnResult func(models.DiscoveryResult)
}

// NewScanner builds a scanner. The mDNS resolver may be nil when mDNS scans
// are never requested.
func NewScanner(prober Prober, mdns MDNSResolver, log logger.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		prober:         prober,
		mdns:           mdns,
		logger:         log.WithComponent("scanner"),
		defaultWorkers: DefaultWorkers,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scan expands targets (or queries mDNS), probes every address and returns
// the positively detected devices. Order of the returned slice is completion
// order, not input order.
func (s *Scanner) Scan(ctx context.Context, targets []string, opts Options) ([]models.DiscoveryResult, error) {
	addresses, err := s.resolveAddresses(ctx, targets, opts)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = s.defaultWorkers
	}

	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	if workers > len(addresses) {
		workers = len(addresses)
	}

	s.logger.Info().
		Int("addresses", len(addresses)).
		Int("workers", workers).
		Msg("starting scan")

	resultCh := make(chan models.DiscoveryResult, len(addresses))
	workCh := make(chan string, workers*workQueueMultiplier)

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			s.worker(ctx, workCh, resultCh)
		}()
	}

	go func() {
		defer close(workCh)

		for _, addr := range addresses {
			select {
			case <-ctx.Done():
				return
			case workCh <- addr:
			}
		}
	}()

	go func() {
		wg.Wait()

		close(resultCh)
	}()

	var detected []models.DiscoveryResult

	for result := range resultCh {
		if opts.OnResult != nil {
			opts.OnResult(result)
		}

		if !result.Outcome.Positive() {
			s.logger.Debug().
				Str("address", result.Address).
				Str("outcome", string(result.Outcome)).
				Str("error", result.Error).
				Msg("address filtered from scan results")

			continue
		}

		// A reachable device that answers but demands credentials is
		// reported as such rather than as a plain detection.
		if result.AuthRequired {
			result.Outcome = models.OutcomeAuthRequired
		}

		detected = append(detected, result)
	}

	return detected, ctx.Err()
}

func (s *Scanner) worker(ctx context.Context, workCh <-chan string, resultCh chan<- models.DiscoveryResult) {
	for addr := range workCh {
		result := s.prober.Discover(ctx, addr)

		select {
		case <-ctx.Done():
			return
		case resultCh <- result:
		}
	}
}

func (s *Scanner) resolveAddresses(ctx context.Context, targets []string, opts Options) ([]string, error) {
	if opts.UseMDNS && s.mdns != nil {
		addresses, err := s.mdns.DiscoverDeviceIPs(ctx)
		if err != nil {
			return nil, err
		}

		return addresses, nil
	}

	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	return ExpandTargets(targets)
}
