package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sells-group/sales-etl/internal/db"
	"github.com/sells-group/sales-etl/internal/model"
	"github.com/sells-group/sales-etl/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	table   string
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString, table string, poolCfg *PoolConfig) (*PostgresStore, error) {
	table = tableOrDefault(table)
	if err := checkTableName(table); err != nil {
		return nil, err
	}

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: parse config")
	}

	// A run is sequential; a small pool is plenty.
	maxConns := int32(2)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: create pool")
	}
	if err := resilience.Do(ctx, resilience.PostgresConnect(), pool.Ping); err != nil {
		pool.Close()
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, table: table}, nil
}

// NewPostgresFromPool wraps an existing pool (or a pgxmock pool in tests).
func NewPostgresFromPool(pool db.Pool, table string) (*PostgresStore, error) {
	table = tableOrDefault(table)
	if err := checkTableName(table); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

func (s *PostgresStore) Table() string { return s.table }

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) quotedTable() string {
	return pgx.Identifier(strings.Split(s.table, ".")).Sanitize()
}

func (s *PostgresStore) createSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	order_id           BIGINT PRIMARY KEY,
	order_item_id      BIGINT,
	quantity_ordered   BIGINT,
	item_price         DOUBLE PRECISION,
	promotion_discount DOUBLE PRECISION,
	region             TEXT,
	total_sales        DOUBLE PRECISION,
	net_sale           DOUBLE PRECISION
)`, s.quotedTable())
}

const pgColumnsSQL = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2
ORDER BY ordinal_position`

const pgPrimaryKeySQL = `SELECT a.attname
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = $1::regclass AND i.indisprimary`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.postgres"), zap.String("table", s.table))

	if _, err := s.pool.Exec(ctx, s.createSQL()); err != nil {
		return model.WithKindf(model.ErrPersistence, err, "postgres: create table %s", s.table)
	}

	cols, err := s.columns(ctx)
	if err != nil {
		return err
	}
	if err := checkCompatible(s.table, cols, postgresFamily); err != nil {
		return err
	}

	log.Debug("schema verified", zap.Int("columns", len(cols)))
	return nil
}

func (s *PostgresStore) columns(ctx context.Context) ([]columnInfo, error) {
	schema, name, ok := strings.Cut(s.table, ".")
	if !ok {
		schema, name = "", s.table
	}

	rows, err := s.pool.Query(ctx, pgColumnsSQL, schema, name)
	if err != nil {
		return nil, model.WithKindf(model.ErrPersistence, err, "postgres: columns of %s", s.table)
	}
	var cols []columnInfo
	for rows.Next() {
		var c columnInfo
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			rows.Close()
			return nil, model.WithKind(model.ErrPersistence, err, "postgres: scan column")
		}
		cols = append(cols, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: columns iterate")
	}

	pkRows, err := s.pool.Query(ctx, pgPrimaryKeySQL, s.quotedTable())
	if err != nil {
		return nil, model.WithKindf(model.ErrPersistence, err, "postgres: primary key of %s", s.table)
	}
	defer pkRows.Close()

	pk := make(map[string]bool)
	for pkRows.Next() {
		var col string
		if err := pkRows.Scan(&col); err != nil {
			return nil, model.WithKind(model.ErrPersistence, err, "postgres: scan primary key")
		}
		pk[col] = true
	}
	if err := pkRows.Err(); err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: primary key iterate")
	}

	for i := range cols {
		cols[i].PrimaryKey = pk[cols[i].Name]
	}
	return cols, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, records []model.EnrichedSalesRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = r.Values()
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        s.table,
		Columns:      model.SalesColumns,
		ConflictKeys: []string{model.SalesPrimaryKey},
	}, rows)
	if err != nil {
		return 0, model.WithKindf(model.ErrPersistence, err, "postgres: upsert %d records", len(records))
	}
	return n, nil
}

func (s *PostgresStore) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+s.quotedTable()).Scan(&n); err != nil {
		return 0, model.WithKind(model.ErrPersistence, err, "postgres: count records")
	}
	return n, nil
}

func (s *PostgresStore) TotalSalesByRegion(ctx context.Context) ([]model.RegionTotal, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT COALESCE(region, ''), COALESCE(SUM(total_sales), 0) FROM "+s.quotedTable()+" GROUP BY region ORDER BY region")
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: total sales by region")
	}
	defer rows.Close()

	var out []model.RegionTotal
	for rows.Next() {
		var (
			region string
			total  float64
		)
		if err := rows.Scan(&region, &total); err != nil {
			return nil, model.WithKind(model.ErrPersistence, err, "postgres: scan region total")
		}
		out = append(out, model.RegionTotal{Region: model.Region(region), TotalSales: total})
	}
	if err := rows.Err(); err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: region totals iterate")
	}
	return out, nil
}

// AverageSalesPerTransaction returns nil for an empty table, where AVG is NULL.
func (s *PostgresStore) AverageSalesPerTransaction(ctx context.Context) (*float64, error) {
	var (
		n   int64
		avg float64
	)
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(AVG(total_sales), 0) FROM "+s.quotedTable()).Scan(&n, &avg)
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: average sales")
	}
	if n == 0 {
		return nil, nil
	}
	return &avg, nil
}

func (s *PostgresStore) CheckDuplicates(ctx context.Context) ([]model.DuplicateKey, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT order_id, COUNT(*) FROM "+s.quotedTable()+" GROUP BY order_id HAVING COUNT(*) > 1 ORDER BY order_id")
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: check duplicates")
	}
	defer rows.Close()

	var out []model.DuplicateKey
	for rows.Next() {
		var d model.DuplicateKey
		if err := rows.Scan(&d.OrderID, &d.Count); err != nil {
			return nil, model.WithKind(model.ErrPersistence, err, "postgres: scan duplicate")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: duplicates iterate")
	}
	return out, nil
}

func (s *PostgresStore) Rows(ctx context.Context) ([]model.EnrichedSalesRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+strings.Join(model.SalesColumns, ", ")+" FROM "+s.quotedTable()+" ORDER BY order_id")
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: list rows")
	}
	defer rows.Close()

	var out []model.EnrichedSalesRecord
	for rows.Next() {
		var (
			r      model.EnrichedSalesRecord
			region string
		)
		if err := rows.Scan(&r.OrderID, &r.OrderItemID, &r.QuantityOrdered, &r.ItemPrice,
			&r.PromotionDiscount, &region, &r.TotalSales, &r.NetSale); err != nil {
			return nil, model.WithKind(model.ErrPersistence, err, "postgres: scan row")
		}
		r.Region = model.Region(region)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "postgres: rows iterate")
	}
	return out, nil
}
