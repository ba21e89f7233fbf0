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
)

func newCredsCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Manage stored device credentials",
	}

	cmd.AddCommand(newCredsListCommand(v), newCredsSetCommand(v), newCredsDeleteCommand(v))

	return cmd
}

func newCredsListCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credentials (passwords redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}

			all, err := rt.store.ListAll(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			fmt.Fprintln(w, "KEY\tUSERNAME\tLAST SEEN\tUPDATED")

			for _, cred := range all {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					cred.Key, cred.Username, cred.LastSeenIP,
					cred.UpdatedAt.Format("2006-01-02 15:04:05"))
			}

			return w.Flush()
		},
	}
}

func newCredsSetCommand(v *viper.Viper) *cobra.Command {
	var lastSeenIP string

	cmd := &cobra.Command{
		Use:   "set <hardware-address|*> <username> <password>",
		Short: "Store a credential for a device, or * for the fleet default",
		Args:  cobra.ExactArgs(3), //nolint:mnd // key, username, password
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}

			if err := rt.store.Set(cmd.Context(), args[0], args[1], args[2], lastSeenIP); err != nil {
				return err
			}

			cmd.Println("credential stored")

			return nil
		},
	}

	cmd.Flags().StringVar(&lastSeenIP, "last-seen-ip", "", "Device IP the credential was last used against")

	return cmd
}

func newCredsDeleteCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <hardware-address|*>",
		Short: "Remove a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(v)
			if err != nil {
				return err
			}

			if err := rt.store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			cmd.Println("credential removed")

			return nil
		},
	}
}
