package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/chromaffi"
	"github.com/hupe1980/chromaffi/internal/config"
)

type globalFlags struct {
	ConfigFile  string
	PersistPath string
	Tenant      string
	Database    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "chromactl",
		Short:         "Operate an embedded Chroma store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&flags.PersistPath, "persist-path", "", "Data directory (overrides the config file)")
	cmd.PersistentFlags().StringVar(&flags.Tenant, "tenant", "", "Tenant (default: default_tenant)")
	cmd.PersistentFlags().StringVar(&flags.Database, "database", "", "Database (default: default_database)")

	cmd.AddCommand(
		newHeartbeatCmd(flags),
		newDatabasesCmd(flags),
		newCollectionsCmd(flags),
		newQueryCmd(flags),
		newMigrateCmd(flags),
		newConfigCmd(flags),
	)
	return cmd
}

// loadConfig reads --config and applies --persist-path on top.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.ConfigFile)
	if err != nil {
		return nil, err
	}
	if f.PersistPath != "" {
		cfg.PersistPath = f.PersistPath
	}
	return cfg, nil
}

// openClient opens a client for one command. The caller closes it.
func (f *globalFlags) openClient(cmd *cobra.Command, mutate func(*config.Config)) (*chromaffi.Client, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	doc, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}
	return chromaffi.NewClientFromConfig(cmd.Context(), string(doc))
}

// withClient runs fn with a client that is closed afterwards.
func (f *globalFlags) withClient(cmd *cobra.Command, fn func(c *chromaffi.Client) error) (err error) {
	c, err := f.openClient(cmd, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(c)
}
