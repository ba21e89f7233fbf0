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

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plugfleet/plugfleet/pkg/models"
)

const exportFilePerm = 0o600

func newConfigCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Export and apply device configurations",
	}

	cmd.AddCommand(newConfigExportCommand(v), newConfigApplyCommand(v))

	return cmd
}

func newConfigExportCommand(v *viper.Viper) *cobra.Command {
	var (
		output         string
		componentTypes []string
		workers        int
	)

	cmd := &cobra.Command{
		Use:   "export <targets...>",
		Short: "Pull component configurations from devices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addresses, err := expandAddresses(args)
			if err != nil {
				return err
			}

			rt, err := newRuntime(v)
			if err != nil {
				return err
			}

			export, err := rt.orchestrator.ConfigExport(cmd.Context(), addresses, componentTypes, workers)
			if err != nil {
				return err
			}

			if output == "" {
				return printJSON(cmd, export)
			}

			data, err := json.MarshalIndent(export, "", "  ")
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, data, exportFilePerm); err != nil {
				return fmt.Errorf("failed to write export file: %w", err)
			}

			cmd.Printf("exported %d devices to %s\n", export.Metadata.TotalDevices, output)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the export to a file instead of stdout")
	cmd.Flags().StringSliceVar(&componentTypes, "types", nil, "Component types to export (default all)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent devices (0 = default)")

	return cmd
}

func newConfigApplyCommand(v *viper.Viper) *cobra.Command {
	var (
		file          string
		componentType string
		configJSON    string
		workers       int
	)

	cmd := &cobra.Command{
		Use:   "apply [targets...]",
		Short: "Push a configuration to devices",
		Long: `Apply one config to every component of a type across the targets:

  plugctl config apply --type switch --config '{"initial_state":"off"}' 10.0.0.0/28

or replay a previously exported file with --file (no targets needed).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}

			result, err := runConfigApply(cmd, rt, args, file, componentType, configJSON, workers)
			if err != nil {
				return err
			}

			if err := printJSON(cmd, result); err != nil {
				return err
			}

			if result.Failed > 0 {
				return fmt.Errorf("%d of %d component configs failed", result.Failed, result.Total)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Replay a previously exported configuration file")
	cmd.Flags().StringVar(&componentType, "type", "", "Component type to configure (e.g. switch)")
	cmd.Flags().StringVar(&configJSON, "config", "", "Config fragment as a JSON object")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent devices (0 = default)")

	return cmd
}

func runConfigApply(
	cmd *cobra.Command, rt *runtime, args []string, file, componentType, configJSON string, workers int,
) (*models.BulkResult, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read export file: %w", err)
		}

		var export models.ConfigExport
		if err := json.Unmarshal(data, &export); err != nil {
			return nil, fmt.Errorf("failed to parse export file: %w", err)
		}

		return rt.orchestrator.ConfigApplyExport(cmd.Context(), &export, workers)
	}

	if componentType == "" || configJSON == "" {
		return nil, errors.New("either --file or both --type and --config are required")
	}

	if len(args) == 0 {
		return nil, errors.New("targets are required unless --file is given")
	}

	addresses, err := expandAddresses(args)
	if err != nil {
		return nil, err
	}

	var config map[string]any
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		return nil, fmt.Errorf("failed to parse --config: %w", err)
	}

	return rt.orchestrator.ConfigApply(cmd.Context(), addresses, componentType, config, workers)
}
