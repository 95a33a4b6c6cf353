package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/sales-etl/internal/extract"
)

var (
	regionAPath string
	regionBPath string
)

// addSourceFlags registers --region-a and --region-b on cmd.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&regionAPath, "region-a", "", "region A sales CSV (overrides sources.region_a.path)")
	cmd.Flags().StringVar(&regionBPath, "region-b", "", "region B sales CSV (overrides sources.region_b.path)")
}

// sourcesFromFlags applies flag overrides to the configured sources.
func sourcesFromFlags() []extract.Source {
	if regionAPath != "" {
		cfg.Sources.RegionA.Path = regionAPath
	}
	if regionBPath != "" {
		cfg.Sources.RegionB.Path = regionBPath
	}
	return cfg.Sources.List()
}
