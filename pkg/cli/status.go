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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plugfleet/plugfleet/pkg/gateway"
	"github.com/plugfleet/plugfleet/pkg/models"
)

func newStatusCommand(v *viper.Viper) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <address>",
		Short: "Show a device's components and their state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}

			snapshot, err := rt.gateway.GetFullStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, snapshot)
			}

			cmd.Printf("%s  %s  fw %s  gen %d\n",
				snapshot.Address, snapshot.Info.Model,
				snapshot.Info.FirmwareVersion, snapshot.Info.Generation)

			if power := gateway.TotalPower(snapshot); power > 0 {
				cmd.Printf("total power: %.1f W\n", power)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			fmt.Fprintln(w, "COMPONENT\tTYPE\tSTATE\tACTIONS")

			for i := range snapshot.Components {
				comp := &snapshot.Components[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					comp.Key, comp.Type, componentSummary(comp), len(comp.AvailableActions))
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")

	return cmd
}

// componentSummary renders a one-line state cell for the status table.
func componentSummary(comp *models.Component) string {
	switch comp.Type {
	case "switch":
		view := gateway.ProjectSwitch(comp)

		state := "off"
		if view.Output {
			state = "on"
		}

		if view.ActivePower != nil {
			return fmt.Sprintf("%s %.1fW", state, *view.ActivePower)
		}

		return state
	case "cover":
		view := gateway.ProjectCover(comp)
		if view.Position != nil {
			return fmt.Sprintf("%s %.0f%%", view.State, *view.Position)
		}

		return view.State
	case "input":
		if gateway.ProjectInput(comp).State {
			return "active"
		}

		return "idle"
	case "sys":
		view := gateway.ProjectSystem(comp)
		if view.Uptime != nil {
			return fmt.Sprintf("up %s", durationString(time.Duration(*view.Uptime)*time.Second))
		}

		return ""
	case "wifi":
		view := gateway.ProjectWifi(comp)
		if view.SSID == "" {
			return view.Status
		}

		return fmt.Sprintf("%s %s", view.SSID, view.StationIP)
	case "cloud":
		return connectedString(gateway.ProjectCloud(comp).Connected)
	case "mqtt":
		return connectedString(gateway.ProjectMQTT(comp).Connected)
	case "ws":
		return connectedString(gateway.ProjectWebsocket(comp).Connected)
	case "eth":
		return gateway.ProjectEthernet(comp).IP
	case "zigbee":
		return gateway.ProjectZigbee(comp).NetworkState
	case "em":
		view := gateway.ProjectEM(comp)
		if view.TotalActivePower != nil {
			return fmt.Sprintf("%.1fW", *view.TotalActivePower)
		}

		return ""
	case "em1":
		view := gateway.ProjectEM1(comp)
		if view.ActivePower != nil {
			return fmt.Sprintf("%.1fW", *view.ActivePower)
		}

		return ""
	default:
		return ""
	}
}

func connectedString(connected bool) string {
	if connected {
		return "connected"
	}

	return "disconnected"
}
