package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chromaffi"
)

func newHeartbeatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat",
		Short: "Print the store clock in nanoseconds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.withClient(cmd, func(c *chromaffi.Client) error {
				ns, err := c.Heartbeat(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ns)
				return nil
			})
		},
	}
}
