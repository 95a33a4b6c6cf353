// Package extract reads regional sales CSV files into sales records.
package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/sales-etl/internal/model"
)

// RequiredColumns are the header names every source file must carry.
var RequiredColumns = []string{
	"OrderId",
	"OrderItemId",
	"QuantityOrdered",
	"ItemPrice",
	"PromotionDiscount",
}

// Source is one regional input file.
type Source struct {
	Path   string       `yaml:"path" mapstructure:"path"`
	Region model.Region `yaml:"region" mapstructure:"region"`
}

// row is the CSV shape of a sales line. Pointers distinguish empty cells
// from zero values.
type row struct {
	OrderID           *int64   `csv:"OrderId"`
	OrderItemID       *int64   `csv:"OrderItemId"`
	QuantityOrdered   *int64   `csv:"QuantityOrdered"`
	ItemPrice         *float64 `csv:"ItemPrice"`
	PromotionDiscount *float64 `csv:"PromotionDiscount"`
}

// Extract reads the CSV file at path and stamps every record with region.
// Records are returned in file order.
func Extract(ctx context.Context, path string, region model.Region) ([]model.SalesRecord, error) {
	if strings.TrimSpace(string(region)) == "" {
		return nil, eris.Wrapf(model.ErrExtraction, "extract: empty region label for %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, model.WithKindf(model.ErrExtraction, err, "extract: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	records, err := Read(ctx, f, region)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s", path)
	}

	zap.L().Debug("extracted source",
		zap.String("path", path),
		zap.String("region", string(region)),
		zap.Int("rows", len(records)),
	)
	return records, nil
}

// ExtractAll extracts each source in order. The first failure aborts.
func ExtractAll(ctx context.Context, sources []Source) ([][]model.SalesRecord, error) {
	out := make([][]model.SalesRecord, 0, len(sources))
	for _, src := range sources {
		recs, err := Extract(ctx, src.Path, src.Region)
		if err != nil {
			return nil, err
		}
		out = append(out, recs)
	}
	return out, nil
}

// Read decodes sales records from CSV data in r. A leading byte-order mark
// is honoured and stripped.
func Read(ctx context.Context, r io.Reader, region model.Region) ([]model.SalesRecord, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.Wrap(model.ErrExtraction, "extract: empty file, no header row")
	}
	if err != nil {
		return nil, model.WithKind(model.ErrExtraction, err, "extract: read header")
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}
	if dup := duplicateColumn(header); dup != "" {
		return nil, eris.Wrapf(model.ErrExtraction, "extract: duplicate column %s", dup)
	}
	if missing := missingColumns(header); len(missing) > 0 {
		return nil, eris.Wrapf(model.ErrExtraction, "extract: missing required columns %s", strings.Join(missing, ", "))
	}

	dec, err := csvutil.NewDecoder(trimReader{reader}, header...)
	if err != nil {
		return nil, model.WithKind(model.ErrExtraction, err, "extract: init decoder")
	}

	var records []model.SalesRecord
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: context cancelled")
		}

		var rw row
		err := dec.Decode(&rw)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classify(err, lineOf(reader, err))
		}

		line, _ := reader.FieldPos(0)
		rec, err := rw.toRecord(region)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: line %d", line)
		}
		records = append(records, rec)
	}

	return records, nil
}

// trimReader strips surrounding whitespace from every cell.
type trimReader struct {
	*csv.Reader
}

func (t trimReader) Read() ([]string, error) {
	rec, err := t.Reader.Read()
	for i, v := range rec {
		rec[i] = strings.TrimSpace(v)
	}
	return rec, err
}

// classify maps a decode failure to its error kind.
func classify(err error, line int) error {
	var typeErr *csvutil.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return model.WithKindf(model.ErrComputation, err, "extract: line %d: non-numeric value %q", line, typeErr.Value)
	}
	return model.WithKindf(model.ErrExtraction, err, "extract: line %d: malformed row", line)
}

// lineOf returns the input line a decode failure refers to.
func lineOf(reader *csv.Reader, err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.StartLine
	}
	// The read itself succeeded, so the record has at least one field.
	line, _ := reader.FieldPos(0)
	return line
}

func (rw row) toRecord(region model.Region) (model.SalesRecord, error) {
	ints := []struct {
		name string
		v    *int64
	}{
		{"OrderId", rw.OrderID},
		{"OrderItemId", rw.OrderItemID},
		{"QuantityOrdered", rw.QuantityOrdered},
	}
	for _, c := range ints {
		if c.v == nil {
			return model.SalesRecord{}, eris.Wrapf(model.ErrComputation, "empty value in column %s", c.name)
		}
	}
	floats := []struct {
		name string
		v    *float64
	}{
		{"ItemPrice", rw.ItemPrice},
		{"PromotionDiscount", rw.PromotionDiscount},
	}
	for _, c := range floats {
		if c.v == nil {
			return model.SalesRecord{}, eris.Wrapf(model.ErrComputation, "empty value in column %s", c.name)
		}
	}

	return model.SalesRecord{
		OrderID:           *rw.OrderID,
		OrderItemID:       *rw.OrderItemID,
		QuantityOrdered:   *rw.QuantityOrdered,
		ItemPrice:         *rw.ItemPrice,
		PromotionDiscount: *rw.PromotionDiscount,
		Region:            region,
	}, nil
}

func duplicateColumn(header []string) string {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if seen[h] {
			return h
		}
		seen[h] = true
	}
	return ""
}

func missingColumns(header []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}
