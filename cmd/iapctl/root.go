package main

import (
	"time"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	catalogPath string
	store       string
	currency    string
	logFormat   string
	verbose     bool
	timeout     time.Duration
}

func newRootCommand() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "iapctl",
		Short: "In-app purchase flow controller",
		Long: `iapctl runs purchase flows (client purchase, server grant, consume)
against the in-process store or Paddle, and reconciles purchases that were
paid for but never consumed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.catalogPath, "catalog", "", "YAML file with static pack metadata")
	pf.StringVar(&f.store, "store", storeMemory, "billing backend: memory or paddle")
	pf.StringVar(&f.currency, "currency", "USD", "currency of the in-process store prices")
	pf.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	pf.DurationVar(&f.timeout, "timeout", 30*time.Second, "how long to wait for a flow to finish")

	cmd.AddCommand(
		newPacksCommand(f),
		newBuyCommand(f),
		newReconcileCommand(f),
		newServeCommand(f),
		newMigrateCommand(f),
	)
	return cmd
}
