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
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plugfleet/plugfleet/pkg/models"
	"github.com/plugfleet/plugfleet/pkg/scan"
)

func newScanCommand(v *viper.Viper) *cobra.Command {
	var (
		workers    int
		useMDNS    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "scan [targets...]",
		Short: "Probe IPs, CIDR blocks and ranges for devices",
		Example: `  plugctl scan 192.168.1.0/24
  plugctl scan 192.168.1.10-50 10.0.0.5
  plugctl scan --mdns`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}

			results, err := rt.scanner.Scan(cmd.Context(), args, scan.Options{
				Workers: workers,
				UseMDNS: useMDNS,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, results)
			}

			printScanTable(cmd, results)

			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent probes (0 = default)")
	cmd.Flags().BoolVar(&useMDNS, "mdns", false, "Discover candidates via mDNS instead of targets")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")

	return cmd
}

func printScanTable(cmd *cobra.Command, results []models.DiscoveryResult) {
	if len(results) == 0 {
		cmd.Println("no devices found")
		return
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ADDRESS\tOUTCOME\tTYPE\tNAME\tFIRMWARE\tGEN\tRTT")

	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Address, r.Outcome, r.DeviceType, r.DeviceName,
			r.FirmwareVersion, r.Generation, durationString(r.ResponseTime))
	}

	if err := w.Flush(); err != nil {
		cmd.PrintErrln(err)
	}
}
