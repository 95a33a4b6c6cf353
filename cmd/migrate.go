package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the sales table if absent and verify its shape",
	Long:  "Creates the sales table when it does not exist. An existing table with missing columns or a different primary key is reported, never altered.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.EnsureSchema(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		zap.L().Info("schema ready", zap.String("table", st.Table()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
