package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-etl/internal/model"
)

func salesColumns(pk ...string) []columnInfo {
	types := map[string]string{
		"order_id":           "INTEGER",
		"order_item_id":      "INTEGER",
		"quantity_ordered":   "INTEGER",
		"item_price":         "REAL",
		"promotion_discount": "REAL",
		"region":             "TEXT",
		"total_sales":        "REAL",
		"net_sale":           "REAL",
	}
	pkSet := make(map[string]bool)
	for _, p := range pk {
		pkSet[p] = true
	}
	var cols []columnInfo
	for _, name := range model.SalesColumns {
		cols = append(cols, columnInfo{Name: name, Type: types[name], PrimaryKey: pkSet[name]})
	}
	return cols
}

func TestCheckCompatible_OK(t *testing.T) {
	assert.NoError(t, checkCompatible("sales_data", salesColumns("order_id"), sqliteFamily))
}

func TestCheckCompatible_ExtraColumnsAllowed(t *testing.T) {
	cols := append(salesColumns("order_id"), columnInfo{Name: "loaded_at", Type: "DATETIME"})
	assert.NoError(t, checkCompatible("sales_data", cols, sqliteFamily))
}

func TestCheckCompatible_Problems(t *testing.T) {
	tests := []struct {
		name string
		cols []columnInfo
		want string
	}{
		{
			name: "missing column",
			cols: salesColumns("order_id")[:7],
			want: "missing column net_sale",
		},
		{
			name: "no primary key",
			cols: salesColumns(),
			want: "primary key is (), want (order_id)",
		},
		{
			name: "composite primary key",
			cols: salesColumns("order_id", "order_item_id"),
			want: "primary key is (order_id, order_item_id)",
		},
		{
			name: "wrong primary key",
			cols: salesColumns("order_item_id"),
			want: "want (order_id)",
		},
		{
			name: "wrong type",
			cols: func() []columnInfo {
				c := salesColumns("order_id")
				c[5].Type = "INTEGER"
				return c
			}(),
			want: "column region has type INTEGER, want text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkCompatible("sales_data", tt.cols, sqliteFamily)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrSchema)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckCompatible_UnknownTypeAccepted(t *testing.T) {
	cols := salesColumns("order_id")
	cols[3].Type = "" // SQLite allows untyped columns
	assert.NoError(t, checkCompatible("sales_data", cols, sqliteFamily))
}

func TestSQLiteFamily(t *testing.T) {
	tests := []struct {
		declared string
		want     typeFamily
		known    bool
	}{
		{"INTEGER", familyInteger, true},
		{"bigint", familyInteger, true},
		{"REAL", familyReal, true},
		{"DOUBLE PRECISION", familyReal, true},
		{"FLOAT", familyReal, true},
		{"NUMERIC(10,2)", familyReal, true},
		{"TEXT", familyText, true},
		{"VARCHAR(8)", familyText, true},
		{"BLOB", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			got, known := sqliteFamily(tt.declared)
			assert.Equal(t, tt.known, known)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostgresFamily(t *testing.T) {
	tests := []struct {
		dataType string
		want     typeFamily
		known    bool
	}{
		{"bigint", familyInteger, true},
		{"integer", familyInteger, true},
		{"double precision", familyReal, true},
		{"numeric", familyReal, true},
		{"text", familyText, true},
		{"character varying", familyText, true},
		{"jsonb", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.dataType, func(t *testing.T) {
			got, known := postgresFamily(tt.dataType)
			assert.Equal(t, tt.known, known)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckTableName(t *testing.T) {
	assert.NoError(t, checkTableName("sales_data"))
	assert.NoError(t, checkTableName("analytics.sales_data"))
	assert.Error(t, checkTableName(""))
	assert.Error(t, checkTableName("sales data"))
	assert.Error(t, checkTableName(`sales"; DROP TABLE x; --`))
	assert.Error(t, checkTableName("a.b.c"))
}
