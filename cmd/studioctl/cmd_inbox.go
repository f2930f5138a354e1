package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	inboxWaitTimeout time.Duration
	inboxWaitFull    bool
)

func init() {
	inboxWaitCmd.Flags().DurationVar(&inboxWaitTimeout, "timeout", 0, "server-side wait (defaults to PLEXTERA_INBOX_TIMEOUT)")
	inboxWaitCmd.Flags().BoolVar(&inboxWaitFull, "full", false, "print the raw body instead of a text preview")
	inboxCmd.AddCommand(inboxCreateCmd, inboxWaitCmd, inboxEmptyCmd, inboxDeleteCmd)
	rootCmd.AddCommand(inboxCmd)
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Manage disposable inboxes",
}

var inboxCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an inbox and print its id and address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClients()
		if err != nil {
			return err
		}
		defer c.close()

		inbox, err := c.mail.CreateInbox(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", inbox.ID, inbox.EmailAddress)
		return nil
	},
}

var inboxWaitCmd = &cobra.Command{
	Use:   "wait <inbox-id>",
	Short: "Wait for the latest unread email of an inbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClients()
		if err != nil {
			return err
		}
		defer c.close()

		timeout := inboxWaitTimeout
		if timeout <= 0 {
			timeout = c.cfg.InboxTimeout
		}
		email, err := c.mail.WaitForLatestEmail(cmd.Context(), args[0], timeout)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "From:    %s\n", email.From)
		fmt.Fprintf(out, "Subject: %s\n\n", email.Subject)
		if inboxWaitFull {
			fmt.Fprintln(out, email.Body)
		} else {
			fmt.Fprintln(out, c.mail.Preview(email.Body))
		}
		return nil
	},
}

var inboxEmptyCmd = &cobra.Command{
	Use:   "empty <inbox-id>",
	Short: "Delete every email of an inbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClients()
		if err != nil {
			return err
		}
		defer c.close()
		return c.mail.EmptyInbox(cmd.Context(), args[0])
	},
}

var inboxDeleteCmd = &cobra.Command{
	Use:   "delete <inbox-id>",
	Short: "Delete an inbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClients()
		if err != nil {
			return err
		}
		defer c.close()
		return c.mail.DeleteInbox(cmd.Context(), args[0])
	},
}
