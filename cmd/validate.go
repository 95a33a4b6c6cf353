package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sales-etl/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the validation queries against an existing sales table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg.Report.Format = reportFormat()
		if err := cfg.Validate("validate"); err != nil {
			return err
		}

		st, err := initReadOnlyStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := validate.Run(ctx, st)
		if err != nil {
			return eris.Wrap(err, "validate")
		}
		return report.Write(cmd.OutOrStdout(), cfg.Report.Format, cfg.Report.Currency)
	},
}

func init() {
	addFormatFlag(validateCmd, "report format: text, json or yaml (overrides report.format)")
	rootCmd.AddCommand(validateCmd)
}
