package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/plextera-e2e/internal/studioapi"
)

var tokenShowExpiry bool

func init() {
	tokenCmd.Flags().BoolVar(&tokenShowExpiry, "expiry", false, "print the token expiry on a second line")
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token <role>",
	Short: "Log in as a fixture role and print its access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClients()
		if err != nil {
			return err
		}
		defer c.close()

		token, err := c.sessions.Token(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("token for %s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		if tokenShowExpiry {
			exp, err := studioapi.TokenExpiry(token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expires %s (in %s)\n",
				exp.Format(time.RFC3339), time.Until(exp).Round(time.Second))
		}
		return nil
	},
}
