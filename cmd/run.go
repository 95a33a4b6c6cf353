package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sales-etl/internal/metrics"
	"github.com/sells-group/sales-etl/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract, transform and load both regional files, then validate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sources := sourcesFromFlags()
		cfg.Report.Format = reportFormat()
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rec := metrics.New()
		result, err := pipeline.New(st, sources, rec).Run(ctx)
		pushMetrics(cmd, rec)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("load complete",
			zap.String("run_id", result.Run.ID),
			zap.String("table", st.Table()),
			zap.Int64("loaded", result.Loaded),
		)

		return result.Report.Write(cmd.OutOrStdout(), cfg.Report.Format, cfg.Report.Currency)
	},
}

// pushMetrics sends run metrics to the Pushgateway when one is configured.
// A push failure is logged and never fails the run.
func pushMetrics(cmd *cobra.Command, rec *metrics.Recorder) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := rec.Push(cmd.Context(), cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		zap.L().Warn("metrics push failed", zap.Error(err))
	}
}

func init() {
	addSourceFlags(runCmd)
	addFormatFlag(runCmd, "report format: text, json or yaml (overrides report.format)")
	rootCmd.AddCommand(runCmd)
}
