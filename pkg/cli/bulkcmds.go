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
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plugfleet/plugfleet/pkg/models"
	"github.com/plugfleet/plugfleet/pkg/scan"
)

// expandAddresses turns CLI targets into concrete addresses.
func expandAddresses(targets []string) ([]string, error) {
	return scan.ExpandTargets(targets)
}

type bulkRunner func(ctx context.Context, rt *runtime, addresses []string, workers int) (*models.BulkResult, error)

func newBulkCommand(v *viper.Viper, use, short string, confirm bool, run bulkRunner) *cobra.Command {
	var (
		workers int
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   use + " <targets...>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addresses, err := expandAddresses(args)
			if err != nil {
				return err
			}

			if confirm && !yes {
				return fmt.Errorf("refusing to %s %d devices without --yes", use, len(addresses))
			}

			rt, err := newRuntime(v)
			if err != nil {
				return err
			}

			result, err := run(cmd.Context(), rt, addresses, workers)
			if err != nil {
				return err
			}

			if err := printJSON(cmd, result); err != nil {
				return err
			}

			if result.Failed > 0 {
				return fmt.Errorf("%d of %d devices failed", result.Failed, result.Total)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent devices (0 = default)")

	if confirm {
		cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation guard")
	}

	return cmd
}

func newUpdateCommand(v *viper.Viper) *cobra.Command {
	var channel string

	cmd := newBulkCommand(v, "update", "Trigger firmware updates on devices", false,
		func(ctx context.Context, rt *runtime, addresses []string, workers int) (*models.BulkResult, error) {
			return rt.orchestrator.Update(ctx, addresses, channel, workers)
		})

	cmd.Flags().StringVar(&channel, "channel", "", "Firmware channel (stable, beta)")

	return cmd
}

func newRebootCommand(v *viper.Viper) *cobra.Command {
	return newBulkCommand(v, "reboot", "Reboot devices", false,
		func(ctx context.Context, rt *runtime, addresses []string, workers int) (*models.BulkResult, error) {
			return rt.orchestrator.Reboot(ctx, addresses, workers)
		})
}

func newFactoryResetCommand(v *viper.Viper) *cobra.Command {
	return newBulkCommand(v, "factory-reset", "Factory-reset devices (destructive)", true,
		func(ctx context.Context, rt *runtime, addresses []string, workers int) (*models.BulkResult, error) {
			return rt.orchestrator.FactoryReset(ctx, addresses, workers)
		})
}
