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

// Package config loads service configuration from a file with environment
// overrides. Every key has a working default so a bare binary still runs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/plugfleet/plugfleet/pkg/logger"
)

// EnvPrefix namespaces environment overrides, e.g. PLUGFLEET_LISTEN_ADDR.
const EnvPrefix = "PLUGFLEET"

// Config is the full service configuration.
type Config struct {
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `mapstructure:"listen_addr"`
	// APIKey guards mutating API routes when non-empty.
	APIKey string `mapstructure:"api_key"`
	// CredsFile is the encrypted credential store path.
	CredsFile string `mapstructure:"creds_file"`
	// CredsPassphrase unlocks the credential store.
	CredsPassphrase string `mapstructure:"creds_passphrase"`

	ScanWorkers int `mapstructure:"scan_workers"`
	BulkWorkers int `mapstructure:"bulk_workers"`

	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout"`
	RPCTimeout       time.Duration `mapstructure:"rpc_timeout"`
	AuthStateTTL     time.Duration `mapstructure:"auth_state_ttl"`

	// MDNSService is the DNS-SD service type browsed during mDNS scans.
	MDNSService string `mapstructure:"mdns_service"`

	Logging logger.Config `mapstructure:"logging"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("creds_file", "plugfleet-creds.json")
	v.SetDefault("scan_workers", 50)
	v.SetDefault("bulk_workers", 10)
	v.SetDefault("discovery_timeout", 3*time.Second)
	v.SetDefault("rpc_timeout", 10*time.Second)
	v.SetDefault("auth_state_ttl", time.Hour)
	v.SetDefault("mdns_service", "_shelly._tcp")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stderr")
}

// Load reads configuration from path (optional) and the environment. An empty
// path uses defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}

	if c.ScanWorkers < 0 || c.BulkWorkers < 0 {
		return fmt.Errorf("worker counts must not be negative")
	}

	if c.DiscoveryTimeout < 0 || c.RPCTimeout < 0 || c.AuthStateTTL < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	return nil
}
