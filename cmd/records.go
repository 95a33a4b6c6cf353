package main

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sales-etl/internal/model"
)

// writeRecords renders records as csv, json or yaml.
func writeRecords(w io.Writer, format string, records []model.EnrichedSalesRecord) error {
	if records == nil {
		records = []model.EnrichedSalesRecord{}
	}

	switch format {
	case "", "csv":
		cw := csv.NewWriter(w)
		enc := csvutil.NewEncoder(cw)
		if err := enc.EncodeHeader(model.EnrichedSalesRecord{}); err != nil {
			return eris.Wrap(err, "encode csv header")
		}
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return eris.Wrapf(err, "encode order %d", r.OrderID)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return eris.Wrap(err, "flush csv")
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(records), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "close yaml encoder")
	default:
		return eris.Errorf("unknown record format %q", format)
	}
}
