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

// Package bulk fans device verbs out over many addresses with bounded
// parallelism and per-device failure isolation.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plugfleet/plugfleet/pkg/gateway"
	"github.com/plugfleet/plugfleet/pkg/logger"
	"github.com/plugfleet/plugfleet/pkg/models"
	"github.com/plugfleet/plugfleet/pkg/scan"
)

const (
	// DefaultWorkers bounds bulk fan-out when the caller does not.
	DefaultWorkers = 10
	// MaxWorkers is the hard ceiling on bulk parallelism.
	MaxWorkers = 50
)

var (
	// ErrNoAddresses is returned when a bulk verb receives an empty address
	// list.
	ErrNoAddresses = errors.New("no addresses provided")
	// ErrNoComponentType is returned when a config apply names no component
	// type.
	ErrNoComponentType = errors.New("no component type provided")
	// ErrNoConfig is returned when a config apply carries an empty config.
	ErrNoConfig = errors.New("no config provided")
)

// DeviceGateway is the per-device surface the orchestrator drives. Satisfied
// by the gateway package.
type DeviceGateway interface {
	GetFullStatus(ctx context.Context, address string) (*models.DeviceSnapshot, error)
	ExecuteComponentAction(ctx context.Context, address, componentKey, action string, params map[string]any) models.ActionResult
	BulkAction(ctx context.Context, addresses []string, componentKey, action string, params map[string]any, workers int) ([]models.ActionResult, error)
}

// TargetScanner expands and probes scan targets. Satisfied by scan.Scanner.
type TargetScanner interface {
	Scan(ctx context.Context, targets []string, opts scan.Options) ([]models.DiscoveryResult, error)
}

// Orchestrator runs fleet-wide operations. One device's failure never affects
// its siblings; results are aggregated, not short-circuited.
type Orchestrator struct {
	gateway DeviceGateway
	scanner TargetScanner
	logger  logger.Logger
	workers int
}

// Option tunes orchestrator construction.
type Option func(*Orchestrator)

// WithWorkers sets the default fan-out width, clamped to MaxWorkers.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = clampWorkers(n)
		}
	}
}

// New builds an orchestrator over a gateway and a scanner.
func New(gw DeviceGateway, scanner TargetScanner, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway: gw,
		scanner: scanner,
		logger:  log.WithComponent("bulk"),
		workers: DefaultWorkers,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func clampWorkers(n int) int {
	if n <= 0 {
		return DefaultWorkers
	}

	if n > MaxWorkers {
		return MaxWorkers
	}

	return n
}

// Scan expands targets and probes them, returning positively detected
// devices.
func (o *Orchestrator) Scan(ctx context.Context, targets []string, opts scan.Options) ([]models.DiscoveryResult, error) {
	return o.scanner.Scan(ctx, targets, opts)
}

// Update triggers a firmware update on every address. An empty channel
// selects the device default (stable).
func (o *Orchestrator) Update(ctx context.Context, addresses []string, channel string, workers int) (*models.BulkResult, error) {
	var params map[string]any
	if channel != "" {
		params = map[string]any{"stage": channel}
	}

	return o.deviceWide(ctx, addresses, "Update", params, workers)
}

// Reboot restarts every address.
func (o *Orchestrator) Reboot(ctx context.Context, addresses []string, workers int) (*models.BulkResult, error) {
	return o.deviceWide(ctx, addresses, "Reboot", nil, workers)
}

// FactoryReset wipes every address back to factory state.
func (o *Orchestrator) FactoryReset(ctx context.Context, addresses []string, workers int) (*models.BulkResult, error) {
	return o.deviceWide(ctx, addresses, "FactoryReset", nil, workers)
}

func (o *Orchestrator) deviceWide(
	ctx context.Context, addresses []string, verb string, params map[string]any, workers int,
) (*models.BulkResult, error) {
	if len(addresses) == 0 {
		return nil, ErrNoAddresses
	}

	if workers <= 0 {
		workers = o.workers
	}

	workers = clampWorkers(workers)

	start := time.Now()

	o.logger.Info().
		Str("verb", verb).
		Int("devices", len(addresses)).
		Int("workers", workers).
		Msg("starting bulk operation")

	results, err := o.gateway.BulkAction(ctx, addresses, gateway.ShellyComponentKey, verb, params, workers)
	if err != nil {
		return nil, err
	}

	return aggregate(verb, results, time.Since(start)), nil
}

// StatusReport is the outcome of a fleet status sweep: snapshots keyed by
// address plus per-address error strings for the devices that failed.
type StatusReport struct {
	Snapshots map[string]*models.DeviceSnapshot `json:"snapshots"`
	Errors    map[string]string                 `json:"errors,omitempty"`
	Duration  time.Duration                     `json:"duration"`
}

// Status fetches full component snapshots for every address in parallel.
func (o *Orchestrator) Status(ctx context.Context, addresses []string, workers int) (*StatusReport, error) {
	if len(addresses) == 0 {
		return nil, ErrNoAddresses
	}

	if workers <= 0 {
		workers = o.workers
	}

	workers = clampWorkers(workers)

	start := time.Now()
	report := &StatusReport{
		Snapshots: make(map[string]*models.DeviceSnapshot),
		Errors:    make(map[string]string),
	}

	var mu sync.Mutex

	eg := &errgroup.Group{}
	eg.SetLimit(workers)

	for _, address := range addresses {
		address := address

		eg.Go(func() error {
			snapshot, err := o.gateway.GetFullStatus(ctx, address)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				report.Errors[address] = err.Error()
				return nil
			}

			report.Snapshots[address] = snapshot

			return nil
		})
	}

	_ = eg.Wait() //nolint:errcheck // goroutines never return errors

	report.Duration = time.Since(start)

	return report, nil
}

// ConfigExport pulls component configurations from every address: one full
// status per device, then a GetConfig action per matching component, each
// recorded as success or failure. An empty componentTypes list exports every
// component.
func (o *Orchestrator) ConfigExport(
	ctx context.Context, addresses, componentTypes []string, workers int,
) (*models.ConfigExport, error) {
	if len(addresses) == 0 {
		return nil, ErrNoAddresses
	}

	if workers <= 0 {
		workers = o.workers
	}

	workers = clampWorkers(workers)

	wanted := make(map[string]struct{}, len(componentTypes))
	for _, t := range componentTypes {
		wanted[t] = struct{}{}
	}

	export := &models.ConfigExport{
		Devices: make(map[string]models.DeviceExport),
	}

	seenTypes := make(map[string]struct{})

	var mu sync.Mutex

	eg := &errgroup.Group{}
	eg.SetLimit(workers)

	for _, address := range addresses {
		address := address

		eg.Go(func() error {
			snapshot, err := o.gateway.GetFullStatus(ctx, address)
			if err != nil {
				o.logger.Warn().Err(err).Str("address", address).Msg("config export skipping device")
				return nil
			}

			device := models.DeviceExport{
				DeviceInfo: snapshot.Info,
				Components: make(map[string]models.ComponentExport),
			}

			for _, comp := range snapshot.Components {
				if len(wanted) > 0 {
					if _, ok := wanted[comp.Type]; !ok {
						continue
					}
				}

				result := o.gateway.ExecuteComponentAction(ctx, address, comp.Key, "GetConfig", nil)

				entry := models.ComponentExport{Type: comp.Type, Success: result.Success}
				if result.Success {
					entry.Config = result.Data
				} else {
					entry.Error = result.Error
				}

				device.Components[comp.Key] = entry
			}

			mu.Lock()
			defer mu.Unlock()

			export.Devices[address] = device

			for key := range device.Components {
				seenTypes[device.Components[key].Type] = struct{}{}
			}

			return nil
		})
	}

	_ = eg.Wait() //nolint:errcheck // goroutines never return errors

	// Requested types describe the export; observed types only when the
	// caller asked for everything.
	types := append([]string(nil), componentTypes...)
	if len(types) == 0 {
		for t := range seenTypes {
			types = append(types, t)
		}
	}

	sort.Strings(types)

	export.Metadata = models.ExportMetadata{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		TotalDevices:   len(export.Devices),
		ComponentTypes: types,
	}

	return export, nil
}

// ConfigApply pushes one configuration to every component of a type across an
// address list: one full status per device, then SetConfig per matching
// component.
func (o *Orchestrator) ConfigApply(
	ctx context.Context, addresses []string, componentType string, config map[string]any, workers int,
) (*models.BulkResult, error) {
	if len(addresses) == 0 {
		return nil, ErrNoAddresses
	}

	if componentType == "" {
		return nil, ErrNoComponentType
	}

	if len(config) == 0 {
		return nil, ErrNoConfig
	}

	if workers <= 0 {
		workers = o.workers
	}

	workers = clampWorkers(workers)

	start := time.Now()

	var (
		mu      sync.Mutex
		results []models.ActionResult
	)

	eg := &errgroup.Group{}
	eg.SetLimit(workers)

	for _, address := range addresses {
		address := address

		eg.Go(func() error {
			snapshot, err := o.gateway.GetFullStatus(ctx, address)
			if err != nil {
				mu.Lock()
				results = append(results, models.ActionResult{
					Address:   address,
					Verb:      "SetConfig",
					Success:   false,
					Error:     err.Error(),
					ErrorKind: models.KindOf(err),
					Timestamp: time.Now().UTC(),
				})
				mu.Unlock()

				return nil
			}

			for _, comp := range snapshot.ComponentsByType(componentType) {
				result := o.gateway.ExecuteComponentAction(ctx, address, comp.Key, "SetConfig",
					map[string]any{"config": config})

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = eg.Wait() //nolint:errcheck // goroutines never return errors

	return aggregate("SetConfig", results, time.Since(start)), nil
}

// ConfigApplyExport replays a previously exported structure back to its
// devices via per-component SetConfig.
func (o *Orchestrator) ConfigApplyExport(ctx context.Context, export *models.ConfigExport, workers int) (*models.BulkResult, error) {
	if export == nil || len(export.Devices) == 0 {
		return nil, ErrNoAddresses
	}

	if workers <= 0 {
		workers = o.workers
	}

	workers = clampWorkers(workers)

	start := time.Now()

	var (
		mu      sync.Mutex
		results []models.ActionResult
	)

	eg := &errgroup.Group{}
	eg.SetLimit(workers)

	for address, device := range export.Devices {
		address, device := address, device

		eg.Go(func() error {
			for key, comp := range device.Components {
				config, ok := comp.Config.(map[string]any)
				if !ok {
					mu.Lock()
					results = append(results, models.ActionResult{
						Address:      address,
						Verb:         "SetConfig",
						ComponentKey: key,
						Success:      false,
						Error:        fmt.Sprintf("config for %s is not an object", key),
						ErrorKind:    models.ErrKindValidation,
						Timestamp:    time.Now().UTC(),
					})
					mu.Unlock()

					continue
				}

				result := o.gateway.ExecuteComponentAction(ctx, address, key, "SetConfig",
					map[string]any{"config": config})

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = eg.Wait() //nolint:errcheck // goroutines never return errors

	return aggregate("SetConfig", results, time.Since(start)), nil
}

func aggregate(verb string, results []models.ActionResult, elapsed time.Duration) *models.BulkResult {
	bulk := &models.BulkResult{
		Verb:     verb,
		Total:    len(results),
		Results:  results,
		Duration: elapsed,
	}

	for _, r := range results {
		if r.Success {
			bulk.Succeeded++
		} else {
			bulk.Failed++
		}
	}

	return bulk
}
