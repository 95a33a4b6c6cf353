package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sales-etl/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLite opens a SQLite database at the given path, creating it if
// needed. The pool is pinned to one connection so that ":memory:" databases
// and the single-session contract both hold.
func NewSQLite(dsn, table string) (*SQLiteStore, error) {
	return openSQLite(dsn, table,
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	)
}

// NewSQLiteReadOnly opens an existing database without write access. A
// missing file is an error and is not created.
func NewSQLiteReadOnly(dsn, table string) (*SQLiteStore, error) {
	return openSQLite(readOnlyDSN(dsn), table, "PRAGMA busy_timeout=5000")
}

func openSQLite(dsn, table string, pragmas ...string) (*SQLiteStore, error) {
	table = tableOrDefault(table)
	if err := checkTableName(table); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, model.WithKindf(model.ErrPersistence, err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, table: table}, nil
}

// readOnlyDSN turns a path or file: URI into a mode=ro URI.
func readOnlyDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&mode=ro"
	}
	return dsn + "?mode=ro"
}

// NewSQLiteFromDB wraps an already-open handle.
func NewSQLiteFromDB(db *sql.DB, table string) (*SQLiteStore, error) {
	table = tableOrDefault(table)
	if err := checkTableName(table); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, table: table}, nil
}

func (s *SQLiteStore) Table() string { return s.table }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) quotedTable() string {
	parts := strings.Split(s.table, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}

func (s *SQLiteStore) createSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	order_id           INTEGER PRIMARY KEY,
	order_item_id      INTEGER,
	quantity_ordered   INTEGER,
	item_price         REAL,
	promotion_discount REAL,
	region             TEXT,
	total_sales        REAL,
	net_sale           REAL
)`, s.quotedTable())
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.sqlite"), zap.String("table", s.table))

	if _, err := s.db.ExecContext(ctx, s.createSQL()); err != nil {
		return model.WithKindf(model.ErrPersistence, err, "sqlite: create table %s", s.table)
	}

	cols, err := s.columns(ctx)
	if err != nil {
		return err
	}
	if err := checkCompatible(s.table, cols, sqliteFamily); err != nil {
		return err
	}

	log.Debug("schema verified", zap.Int("columns", len(cols)))
	return nil
}

// columns reads the table layout via PRAGMA table_info.
func (s *SQLiteStore) columns(ctx context.Context) ([]columnInfo, error) {
	query := "PRAGMA table_info(" + s.quotedTable() + ")"
	if schema, name, ok := strings.Cut(s.table, "."); ok {
		query = fmt.Sprintf(`PRAGMA "%s".table_info("%s")`, schema, name)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, model.WithKindf(model.ErrPersistence, err, "sqlite: table_info %s", s.table)
	}
	defer rows.Close() //nolint:errcheck

	var cols []columnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, model.WithKind(model.ErrPersistence, err, "sqlite: scan table_info")
		}
		cols = append(cols, columnInfo{Name: name, Type: typ, PrimaryKey: pk > 0})
	}
	if err := rows.Err(); err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "sqlite: table_info iterate")
	}
	return cols, nil
}

func (s *SQLiteStore) upsertSQL() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(model.SalesColumns)), ", ")
	var sets []string
	for _, c := range model.SalesColumns {
		if c == model.SalesPrimaryKey {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		s.quotedTable(),
		strings.Join(model.SalesColumns, ", "),
		placeholders,
		model.SalesPrimaryKey,
		strings.Join(sets, ", "),
	)
}

func (s *SQLiteStore) Upsert(ctx context.Context, records []model.EnrichedSalesRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, model.WithKind(model.ErrPersistence, err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, s.upsertSQL())
	if err != nil {
		return 0, model.WithKind(model.ErrPersistence, err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Values()...); err != nil {
			return 0, model.WithKindf(model.ErrPersistence, err, "sqlite: upsert order %d", r.OrderID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, model.WithKind(model.ErrPersistence, err, "sqlite: commit upsert")
	}
	return n, nil
}

func (s *SQLiteStore) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.quotedTable()).Scan(&n)
	if err != nil {
		return 0, model.WithKind(model.ErrPersistence, err, "sqlite: count records")
	}
	return n, nil
}

func (s *SQLiteStore) TotalSalesByRegion(ctx context.Context) ([]model.RegionTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT region, SUM(total_sales) FROM "+s.quotedTable()+" GROUP BY region ORDER BY region")
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "sqlite: total sales by region")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RegionTotal
	for rows.Next() {
		var (
			region sql.NullString
			total  sql.NullFloat64
		)
		if err := rows.Scan(&region, &total); err != nil {
			return nil, model.WithKind(model.ErrPersistence, err, "sqlite: scan region total")
		}
		out = append(out, model.RegionTotal{Region: model.Region(region.String), TotalSales: total.Float64})
	}
	if err := rows.Err(); err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "sqlite: region totals iterate")
	}
	return out, nil
}

func (s *SQLiteStore) AverageSalesPerTransaction(ctx context.Context) (*float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, "SELECT AVG(total_sales) FROM "+s.quotedTable()).Scan(&avg)
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "sqlite: average sales")
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

func (s *SQLiteStore) CheckDuplicates(ctx context.Context) ([]model.DuplicateKey, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT order_id, COUNT(*) FROM "+s.quotedTable()+" GROUP BY order_id HAVING COUNT(*) > 1 ORDER BY order_id")
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "sqlite: check duplicates")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DuplicateKey
	for rows.Next() {
		var d model.DuplicateKey
		if err := rows.Scan(&d.OrderID, &d.Count); err != nil {
			return nil, model.WithKind(model.ErrPersistence, err, "sqlite: scan duplicate")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "sqlite: duplicates iterate")
	}
	return out, nil
}

func (s *SQLiteStore) Rows(ctx context.Context) ([]model.EnrichedSalesRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+strings.Join(model.SalesColumns, ", ")+" FROM "+s.quotedTable()+" ORDER BY order_id")
	if err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "sqlite: list rows")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.EnrichedSalesRecord
	for rows.Next() {
		var (
			r      model.EnrichedSalesRecord
			region string
		)
		if err := rows.Scan(&r.OrderID, &r.OrderItemID, &r.QuantityOrdered, &r.ItemPrice,
			&r.PromotionDiscount, &region, &r.TotalSales, &r.NetSale); err != nil {
			return nil, model.WithKind(model.ErrPersistence, err, "sqlite: scan row")
		}
		r.Region = model.Region(region)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WithKind(model.ErrPersistence, err, "sqlite: rows iterate")
	}
	return out, nil
}
