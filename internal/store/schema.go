package store

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-etl/internal/model"
)

// typeFamily groups dialect column types that hold the same kind of value.
type typeFamily int

const (
	familyInteger typeFamily = iota + 1
	familyReal
	familyText
)

func (f typeFamily) String() string {
	switch f {
	case familyInteger:
		return "integer"
	case familyReal:
		return "real"
	case familyText:
		return "text"
	default:
		return "unknown"
	}
}

// expectedFamilies maps each sales column to the value family it stores.
var expectedFamilies = map[string]typeFamily{
	"order_id":           familyInteger,
	"order_item_id":      familyInteger,
	"quantity_ordered":   familyInteger,
	"item_price":         familyReal,
	"promotion_discount": familyReal,
	"region":             familyText,
	"total_sales":        familyReal,
	"net_sale":           familyReal,
}

// columnInfo describes one column of an existing table.
type columnInfo struct {
	Name       string
	Type       string
	PrimaryKey bool
}

// checkCompatible verifies that cols can hold the sales data: every
// expected column present with a compatible type, and order_id the sole
// primary key. family classifies a dialect type name; ok=false means the
// type is not recognised and is accepted as-is.
func checkCompatible(table string, cols []columnInfo, family func(string) (typeFamily, bool)) error {
	byName := make(map[string]columnInfo, len(cols))
	var pks []string
	for _, c := range cols {
		byName[strings.ToLower(c.Name)] = c
		if c.PrimaryKey {
			pks = append(pks, strings.ToLower(c.Name))
		}
	}

	var problems []string
	for _, name := range model.SalesColumns {
		c, ok := byName[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing column %s", name))
			continue
		}
		if got, known := family(c.Type); known && got != expectedFamilies[name] {
			problems = append(problems, fmt.Sprintf("column %s has type %s, want %s", name, c.Type, expectedFamilies[name]))
		}
	}
	if len(pks) != 1 || pks[0] != model.SalesPrimaryKey {
		problems = append(problems, fmt.Sprintf("primary key is (%s), want (%s)", strings.Join(pks, ", "), model.SalesPrimaryKey))
	}

	if len(problems) > 0 {
		return eris.Wrapf(model.ErrSchema, "store: table %s is incompatible: %s", table, strings.Join(problems, "; "))
	}
	return nil
}

// sqliteFamily follows SQLite's column affinity rules.
func sqliteFamily(declared string) (typeFamily, bool) {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return familyInteger, true
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return familyText, true
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return familyReal, true
	case strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return familyReal, true
	}
	return 0, false
}

// postgresFamily classifies information_schema.columns.data_type values.
func postgresFamily(dataType string) (typeFamily, bool) {
	switch strings.ToLower(dataType) {
	case "bigint", "integer", "smallint":
		return familyInteger, true
	case "double precision", "real", "numeric":
		return familyReal, true
	case "text", "character varying", "character":
		return familyText, true
	}
	return 0, false
}
