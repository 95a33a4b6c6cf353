// Package store persists cleaned sales records and answers the validation
// queries. SQLite and Postgres backends share one contract.
package store

import (
	"context"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-etl/internal/model"
)

// DefaultTable is the destination relation.
const DefaultTable = "sales_data"

// Store is the persistence contract for the sales pipeline. One Store is
// opened per run and used sequentially by the schema, load and validate
// stages.
type Store interface {
	// EnsureSchema creates the sales table if absent and verifies an
	// existing one has the expected columns and primary key. It never
	// alters an incompatible table; that is reported as model.ErrSchema.
	EnsureSchema(ctx context.Context) error

	// Upsert writes records keyed by order_id in one transaction. An
	// existing row with the same key has every column replaced. On error
	// nothing from the batch is committed.
	Upsert(ctx context.Context, records []model.EnrichedSalesRecord) (int64, error)

	// Validation queries. All are read-only.
	CountRecords(ctx context.Context) (int64, error)
	TotalSalesByRegion(ctx context.Context) ([]model.RegionTotal, error)
	AverageSalesPerTransaction(ctx context.Context) (*float64, error)
	CheckDuplicates(ctx context.Context) ([]model.DuplicateKey, error)

	// Rows returns every stored record ordered by order_id.
	Rows(ctx context.Context) ([]model.EnrichedSalesRecord, error)

	// Table returns the destination table name.
	Table() string

	Close() error
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// checkTableName rejects names that would need quoting beyond plain
// identifiers, optionally schema-qualified.
func checkTableName(table string) error {
	if !tableNameRe.MatchString(table) {
		return eris.Errorf("store: invalid table name %q", table)
	}
	return nil
}

func tableOrDefault(table string) string {
	if table == "" {
		return DefaultTable
	}
	return table
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Open selects a backend by driver name ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn, table string, poolCfg *PoolConfig) (Store, error) {
	return open(ctx, driver, dsn, table, poolCfg, false)
}

// OpenReadOnly is Open for commands that only query. A SQLite database that
// does not exist yet is reported instead of created.
func OpenReadOnly(ctx context.Context, driver, dsn, table string, poolCfg *PoolConfig) (Store, error) {
	return open(ctx, driver, dsn, table, poolCfg, true)
}

func open(ctx context.Context, driver, dsn, table string, poolCfg *PoolConfig, readOnly bool) (Store, error) {
	switch driver {
	case "sqlite", "":
		if dsn == "" {
			dsn = "sales_data.db"
		}
		newFn := NewSQLite
		if readOnly {
			newFn = NewSQLiteReadOnly
		}
		s, err := newFn(dsn, table)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		if dsn == "" {
			return nil, eris.New("store: postgres requires store.database_url")
		}
		s, err := NewPostgres(ctx, dsn, table, poolCfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}
