package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chromaffi/internal/config"
)

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or check the catalog migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := flags.openClient(cmd, func(cfg *config.Config) {
				cfg.SQLite.MigrationMode = "apply"
				if validate {
					cfg.SQLite.MigrationMode = "validate"
				}
			})
			if err != nil {
				return err
			}
			if err := c.Close(); err != nil {
				return err
			}
			if validate {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations up to date")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "Fail on pending migrations instead of applying them")
	return cmd
}
