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
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const actionArgCount = 3

func newActionCommand(v *viper.Viper) *cobra.Command {
	var paramFlags []string

	cmd := &cobra.Command{
		Use:   "action <address> <component-key> <action>",
		Short: "Run an action on one component",
		Example: `  plugctl action 192.168.1.20 switch:0 Toggle
  plugctl action 192.168.1.20 cover:0 GoToPosition --param pos=50
  plugctl action 192.168.1.30 switch:0 Legacy.TurnOn`,
		Args: cobra.ExactArgs(actionArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}

			params, err := parseParams(paramFlags)
			if err != nil {
				return err
			}

			result := rt.gateway.ExecuteComponentAction(cmd.Context(), args[0], args[1], args[2], params)

			if err := printJSON(cmd, result); err != nil {
				return err
			}

			if !result.Success {
				return errors.New(result.Error)
			}

			return nil
		},
	}

	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "Action parameter as key=value (repeatable)")

	return cmd
}
