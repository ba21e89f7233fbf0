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

// plugd is the fleet service: it exposes scanning, device and bulk operations
// over an HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/plugfleet/plugfleet/pkg/api"
	"github.com/plugfleet/plugfleet/pkg/bulk"
	"github.com/plugfleet/plugfleet/pkg/config"
	"github.com/plugfleet/plugfleet/pkg/creds"
	"github.com/plugfleet/plugfleet/pkg/gateway"
	"github.com/plugfleet/plugfleet/pkg/logger"
	"github.com/plugfleet/plugfleet/pkg/mdns"
	"github.com/plugfleet/plugfleet/pkg/scan"
	"github.com/plugfleet/plugfleet/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to plugd config file (optional)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logg, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}

	logg.Info().
		Str("version", version.GetFullVersion()).
		Str("listen_addr", cfg.ListenAddr).
		Msg("starting plugd")

	store := creds.NewFileStore(cfg.CredsFile, cfg.CredsPassphrase, logg)
	authState := creds.NewAuthStateCache(cfg.AuthStateTTL)

	gw := gateway.New(store, authState, logg,
		gateway.WithTimeouts(cfg.DiscoveryTimeout, cfg.RPCTimeout))

	resolver := mdns.NewResolver(logg, mdns.WithService(cfg.MDNSService))
	scanner := scan.NewScanner(gw, resolver, logg, scan.WithDefaultWorkers(cfg.ScanWorkers))
	orchestrator := bulk.New(gw, scanner, logg, bulk.WithWorkers(cfg.BulkWorkers))

	server := api.NewAPIServer(gw, orchestrator, store, logg, api.WithAPIKey(cfg.APIKey))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.Start(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
		logg.Info().Msg("shutting down")

		return server.Stop(context.Background())
	}
}
