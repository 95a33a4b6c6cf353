// Package validate runs the post-load checks against the sales table and
// renders them as a report.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sales-etl/internal/model"
)

// DefaultCurrency labels monetary amounts in the text report.
const DefaultCurrency = "INR"

// Querier is the read-only subset of the store the validator needs.
type Querier interface {
	CountRecords(ctx context.Context) (int64, error)
	TotalSalesByRegion(ctx context.Context) ([]model.RegionTotal, error)
	AverageSalesPerTransaction(ctx context.Context) (*float64, error)
	CheckDuplicates(ctx context.Context) ([]model.DuplicateKey, error)
}

// Report holds the results of the four validation queries.
type Report struct {
	RecordCount   int64                `json:"record_count" yaml:"record_count"`
	SalesByRegion []model.RegionTotal  `json:"sales_by_region" yaml:"sales_by_region"`
	AverageSale   *float64             `json:"average_sale" yaml:"average_sale"`
	Duplicates    []model.DuplicateKey `json:"duplicates" yaml:"duplicates"`
}

// Run executes the validation queries in order. Anomalies are logged, not
// returned; only query failures are errors.
func Run(ctx context.Context, q Querier) (*Report, error) {
	log := zap.L().With(zap.String("component", "validate"))

	count, err := q.CountRecords(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "validate: record count")
	}
	totals, err := q.TotalSalesByRegion(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "validate: sales by region")
	}
	avg, err := q.AverageSalesPerTransaction(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "validate: average sale")
	}
	dups, err := q.CheckDuplicates(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "validate: duplicates")
	}

	r := &Report{
		RecordCount:   count,
		SalesByRegion: totals,
		AverageSale:   avg,
		Duplicates:    dups,
	}
	if r.SalesByRegion == nil {
		r.SalesByRegion = []model.RegionTotal{}
	}
	if r.Duplicates == nil {
		r.Duplicates = []model.DuplicateKey{}
	}

	if len(dups) > 0 {
		log.Warn("duplicate order ids in table", zap.Int("keys", len(dups)))
	}
	if avg == nil {
		log.Warn("table is empty, average sale is undefined")
	}
	log.Info("validation complete",
		zap.Int64("records", count),
		zap.Int("regions", len(totals)),
		zap.Bool("healthy", r.Healthy()),
	)
	return r, nil
}

// Healthy reports whether the table passed the duplicate check.
func (r *Report) Healthy() bool {
	return len(r.Duplicates) == 0
}

// WriteText renders the report in the human-readable form printed at the
// end of a run.
func (r *Report) WriteText(w io.Writer, currency string) error {
	if currency == "" {
		currency = DefaultCurrency
	}
	ew := &errWriter{w: w}

	ew.printf("Total records: %d\n", r.RecordCount)
	ew.printf("Total Sales by Region:\n")
	for _, t := range r.SalesByRegion {
		ew.printf("Region %s: %.2f %s\n", t.Region, t.TotalSales, currency)
	}
	if r.AverageSale != nil {
		ew.printf("Average sales per transaction: %.2f %s\n", *r.AverageSale, currency)
	} else {
		ew.printf("Average sales per transaction: n/a (no records)\n")
	}
	if r.Healthy() {
		ew.printf("No duplicate OrderIds found.\n")
	} else {
		ew.printf("Duplicate OrderIds found:\n")
		for _, d := range r.Duplicates {
			ew.printf("OrderId %d: %d rows\n", d.OrderID, d.Count)
		}
	}
	if ew.err != nil {
		return eris.Wrap(ew.err, "validate: write text report")
	}
	return nil
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "validate: write json report")
	}
	return nil
}

// WriteYAML renders the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "validate: write yaml report")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "validate: close yaml encoder")
	}
	return nil
}

// Write renders the report in the named format: text, json or yaml.
func (r *Report) Write(w io.Writer, format, currency string) error {
	switch format {
	case "", "text":
		return r.WriteText(w, currency)
	case "json":
		return r.WriteJSON(w)
	case "yaml":
		return r.WriteYAML(w)
	default:
		return eris.Errorf("validate: unknown report format %q", format)
	}
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
