package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chromaffi"
)

func newCollectionsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"coll"},
		Short:   "Manage collections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List collection names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.withClient(cmd, func(c *chromaffi.Client) error {
				names, err := c.ListCollections(cmd.Context(), flags.Tenant, flags.Database)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	})

	var (
		configJSON   string
		metadataJSON string
		getOrCreate  bool
	)
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a collection and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withClient(cmd, func(c *chromaffi.Client) error {
				p := chromaffi.CreateCollectionParams{
					Name:        args[0],
					GetOrCreate: getOrCreate,
					Tenant:      flags.Tenant,
					Database:    flags.Database,
				}
				if configJSON != "" {
					p.ConfigurationJSON = &configJSON
				}
				if metadataJSON != "" {
					p.MetadataJSON = &metadataJSON
				}
				coll, err := c.CreateCollection(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), coll.ID())
				return nil
			})
		},
	}
	create.Flags().StringVar(&configJSON, "configuration", "", "Collection configuration as JSON")
	create.Flags().StringVar(&metadataJSON, "metadata", "", "Collection metadata as JSON")
	create.Flags().BoolVar(&getOrCreate, "get-or-create", false, "Return an existing collection instead of failing")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a collection with its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withClient(cmd, func(c *chromaffi.Client) error {
				return c.DeleteCollection(cmd.Context(), args[0], flags.Tenant, flags.Database)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "count NAME",
		Short: "Print the number of records in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withClient(cmd, func(c *chromaffi.Client) error {
				coll, err := c.GetCollection(cmd.Context(), args[0], flags.Tenant, flags.Database)
				if err != nil {
					return err
				}
				n, err := c.Count(cmd.Context(), coll)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	})

	return cmd
}
