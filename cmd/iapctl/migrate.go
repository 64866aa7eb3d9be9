package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/iapkit/pkg/catalog"
	"github.com/dmitrymomot/iapkit/pkg/config"
	"github.com/dmitrymomot/iapkit/pkg/pg"
)

func newMigrateCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the pack catalog schema to PG_CONN_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var app appConfig
			if err := config.Load(&app); err != nil {
				return err
			}
			var pcfg pg.Config
			if err := config.Load(&pcfg); err != nil {
				return err
			}
			log := newLogger(f, app.Env)

			pool, err := pg.Connect(cmd.Context(), pcfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			return catalog.Migrate(cmd.Context(), pool, log)
		},
	}
}
