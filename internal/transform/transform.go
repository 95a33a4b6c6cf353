// Package transform merges regional sales records, derives financial
// metrics, deduplicates by order and drops non-positive sales.
package transform

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-etl/internal/model"
)

// Stats counts what each transform step kept and dropped.
type Stats struct {
	Input       int `json:"input" yaml:"input"`
	Duplicates  int `json:"duplicates" yaml:"duplicates"`
	NonPositive int `json:"non_positive" yaml:"non_positive"`
	Output      int `json:"output" yaml:"output"`
}

// Result is the cleaned record set plus step statistics.
type Result struct {
	Records []model.EnrichedSalesRecord
	Stats   Stats
}

// Transform runs the fixed sequence merge, derive, dedup, filter over the
// two regional record sets. Region a's records precede region b's, and that
// order decides which duplicate survives.
func Transform(a, b []model.SalesRecord) Result {
	res, _ := run(a, b, false)
	return res
}

// TransformStrict is Transform but fails with model.ErrComputation when a
// derived metric is NaN or infinite. The whole batch is rejected.
func TransformStrict(a, b []model.SalesRecord) (Result, error) {
	return run(a, b, true)
}

func run(a, b []model.SalesRecord, strict bool) (Result, error) {
	merged := Merge(a, b)
	enriched := Derive(merged)
	if strict {
		if err := checkFinite(enriched); err != nil {
			return Result{}, err
		}
	}
	unique := Dedup(enriched)
	kept := FilterPositive(unique)

	return Result{
		Records: kept,
		Stats: Stats{
			Input:       len(merged),
			Duplicates:  len(enriched) - len(unique),
			NonPositive: len(unique) - len(kept),
			Output:      len(kept),
		},
	}, nil
}

// Merge concatenates a then b, preserving order within each.
func Merge(a, b []model.SalesRecord) []model.SalesRecord {
	out := make([]model.SalesRecord, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// Derive computes total_sales and net_sale for every record.
func Derive(recs []model.SalesRecord) []model.EnrichedSalesRecord {
	out := make([]model.EnrichedSalesRecord, len(recs))
	for i, r := range recs {
		out[i] = model.Enrich(r)
	}
	return out
}

// Dedup keeps the first record seen for each order_id and discards the
// rest. "First" is position in recs, not any sales value.
func Dedup(recs []model.EnrichedSalesRecord) []model.EnrichedSalesRecord {
	seen := make(map[int64]struct{}, len(recs))
	out := make([]model.EnrichedSalesRecord, 0, len(recs))
	for _, r := range recs {
		if _, dup := seen[r.OrderID]; dup {
			continue
		}
		seen[r.OrderID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// FilterPositive keeps records whose net_sale is strictly greater than
// zero. Dropping rather than correcting is deliberate policy; callers see
// the count in Stats.NonPositive.
func FilterPositive(recs []model.EnrichedSalesRecord) []model.EnrichedSalesRecord {
	out := make([]model.EnrichedSalesRecord, 0, len(recs))
	for _, r := range recs {
		if r.NetSale > 0 {
			out = append(out, r)
		}
	}
	return out
}

func checkFinite(recs []model.EnrichedSalesRecord) error {
	for _, r := range recs {
		if !r.Finite() {
			return eris.Wrapf(model.ErrComputation,
				"transform: order %d (region %s): non-finite derived value (total_sales=%v, net_sale=%v)",
				r.OrderID, r.Region, r.TotalSales, r.NetSale)
		}
	}
	return nil
}
