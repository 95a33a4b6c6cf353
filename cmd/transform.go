package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sales-etl/internal/pipeline"
)

var transformShowRecords bool

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Dry run: extract and transform without touching the store",
	Long:  "Reads both regional files, applies merge, derivation, dedup and the positive net-sale filter, and prints the step counts. With --records the cleaned rows are printed too.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sources := sourcesFromFlags()
		if err := cfg.Validate("transform"); err != nil {
			return err
		}

		result, err := pipeline.New(nil, sources, nil).Prepare(ctx)
		if err != nil {
			return eris.Wrap(err, "transform")
		}

		out := cmd.OutOrStdout()
		if transformShowRecords {
			return writeRecords(out, outputFormat, result.Records)
		}

		s := result.Stats
		_, err = fmt.Fprintf(out, "Input rows: %d\nDuplicates dropped: %d\nNon-positive net sale dropped: %d\nOutput rows: %d\n",
			s.Input, s.Duplicates, s.NonPositive, s.Output)
		return err
	},
}

func init() {
	addSourceFlags(transformCmd)
	transformCmd.Flags().BoolVar(&transformShowRecords, "records", false, "print the cleaned records instead of counts")
	addFormatFlag(transformCmd, "record format with --records: csv, json or yaml")
	rootCmd.AddCommand(transformCmd)
}
