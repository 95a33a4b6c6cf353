package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sales-etl/internal/model"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every stored sales row, ordered by order_id",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		st, err := initReadOnlyStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rows, err := st.Rows(ctx)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		if exportOutput == "" {
			err = writeRecords(cmd.OutOrStdout(), outputFormat, rows)
		} else {
			err = writeRecordsFile(exportOutput, outputFormat, rows)
		}
		if err != nil {
			return err
		}
		zap.L().Info("export complete", zap.Int("rows", len(rows)), zap.String("table", st.Table()))
		return nil
	},
}

// writeRecordsFile writes rows to path. A failed close is reported since it
// can mean the file is incomplete.
func writeRecordsFile(path, format string, rows []model.EnrichedSalesRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "close %s", path)
		}
	}()
	return writeRecords(f, format, rows)
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "file to write (default stdout)")
	addFormatFlag(exportCmd, "record format: csv, json or yaml")
	rootCmd.AddCommand(exportCmd)
}
