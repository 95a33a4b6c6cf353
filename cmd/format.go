package main

import (
	"github.com/spf13/cobra"
)

var outputFormat string

// addFormatFlag registers --format on cmd.
func addFormatFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().StringVar(&outputFormat, "format", "", usage)
}

// reportFormat returns --format if set, else report.format from config.
func reportFormat() string {
	if outputFormat != "" {
		return outputFormat
	}
	return cfg.Report.Format
}
