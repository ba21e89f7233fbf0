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

// Package cli implements the plugctl command tree. plugctl drives devices
// directly; it does not require a running plugd.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plugfleet/plugfleet/pkg/bulk"
	"github.com/plugfleet/plugfleet/pkg/creds"
	"github.com/plugfleet/plugfleet/pkg/gateway"
	"github.com/plugfleet/plugfleet/pkg/logger"
	"github.com/plugfleet/plugfleet/pkg/mdns"
	"github.com/plugfleet/plugfleet/pkg/scan"
)

const envPrefix = "PLUGCTL"

// runtime bundles the collaborators every subcommand needs.
type runtime struct {
	logger       logger.Logger
	store        *creds.FileStore
	gateway      *gateway.Gateway
	scanner      *scan.Scanner
	orchestrator *bulk.Orchestrator
}

// NewRootCommand builds the plugctl command tree.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "plugctl",
		Short:         "Manage smart plug and relay devices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("creds-file", defaultCredsPath(), "Encrypted credential store path")
	flags.String("passphrase", "", "Credential store passphrase")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.Duration("timeout", gateway.DefaultRPCTimeout, "Per-device RPC timeout")
	flags.Duration("discovery-timeout", gateway.DefaultDiscoveryTimeout, "Per-device discovery timeout")

	if err := v.BindPFlags(flags); err != nil {
		// Flag binding only fails on programmer error.
		panic(err)
	}

	root.AddCommand(
		newScanCommand(v),
		newStatusCommand(v),
		newActionCommand(v),
		newUpdateCommand(v),
		newRebootCommand(v),
		newFactoryResetCommand(v),
		newConfigCommand(v),
		newCredsCommand(v),
		newVersionCommand(),
	)

	return root
}

func defaultCredsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "plugfleet-creds.json"
	}

	return home + "/.plugfleet/creds.json"
}

func newRuntime(v *viper.Viper) (*runtime, error) {
	logg, err := logger.New(logger.Config{
		Level:  v.GetString("log-level"),
		Output: "stderr",
	})
	if err != nil {
		return nil, err
	}

	store := creds.NewFileStore(v.GetString("creds-file"), v.GetString("passphrase"), logg)
	authState := creds.NewAuthStateCache(creds.DefaultAuthStateTTL)

	gw := gateway.New(store, authState, logg,
		gateway.WithTimeouts(v.GetDuration("discovery-timeout"), v.GetDuration("timeout")))

	resolver := mdns.NewResolver(logg)
	scanner := scan.NewScanner(gw, resolver, logg)
	orchestrator := bulk.New(gw, scanner, logg)

	return &runtime{
		logger:       logg,
		store:        store,
		gateway:      gw,
		scanner:      scanner,
		orchestrator: orchestrator,
	}, nil
}

// printJSON renders any result as indented JSON on stdout.
func printJSON(cmd *cobra.Command, data any) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	cmd.Println(string(out))

	return nil
}

// parseParams turns repeated key=value flags into an RPC params map, decoding
// JSON values where they parse.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	params := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", pair)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			// Bare strings are passed through as-is.
			decoded = value
		}

		params[key] = decoded
	}

	return params, nil
}

func durationString(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
