package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/miradorstack/mirador-vizchat/internal/cache"
	"github.com/miradorstack/mirador-vizchat/internal/metrics"
	"github.com/miradorstack/mirador-vizchat/internal/models"
)

// Driver names registered by the imported database/sql drivers.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// DatabaseOptions configures OpenDatabase.
type DatabaseOptions struct {
	Driver       string
	DSN          string
	Schema       string
	MaxRows      int
	ReadOnly     bool
	MaxOpenConns int
	ConnMaxIdle  time.Duration
	Cache        cache.Provider
	SchemaTTL    time.Duration
	Logger       *slog.Logger
}

// ResultSet holds rows returned by a query, keyed in column order.
type ResultSet struct {
	Columns   []string
	Rows      []models.Row
	Truncated bool
}

// Database executes generated SQL against the target database and reports
// its schema.
type Database struct {
	db        *sql.DB
	driver    string
	dsn       string
	schema    string
	maxRows   int
	readOnly  bool
	cache     cache.Provider
	schemaTTL time.Duration
	logger    *slog.Logger
}

// OpenDatabase opens and pings the target database.
func OpenDatabase(ctx context.Context, opts DatabaseOptions) (*Database, error) {
	switch opts.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	if opts.DSN == "" {
		return nil, errors.New("database dsn is required")
	}

	if opts.Driver == DriverSQLite && opts.ReadOnly {
		opts.DSN = sqliteQueryOnly(opts.DSN)
	}
	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxIdle > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdle)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}
	return newDatabase(db, opts), nil
}

// sqliteQueryOnly makes every pooled SQLite connection refuse writes.
func sqliteQueryOnly(dsn string) string {
	if strings.Contains(dsn, "query_only") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=query_only(1)"
}

func newDatabase(db *sql.DB, opts DatabaseOptions) *Database {
	if opts.Cache == nil {
		opts.Cache = cache.NoopProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	return &Database{
		db:        db,
		driver:    opts.Driver,
		dsn:       opts.DSN,
		schema:    opts.Schema,
		maxRows:   opts.MaxRows,
		readOnly:  opts.ReadOnly,
		cache:     opts.Cache,
		schemaTTL: opts.SchemaTTL,
		logger:    opts.Logger,
	}
}

// Driver reports the database/sql driver name.
func (d *Database) Driver() string { return d.driver }

// Ping checks connectivity.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close releases the connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// Execute runs query and collects at most maxRows rows. On Postgres a
// read-only database runs the query inside a read-only transaction. SQLite
// connections of a read-only database are opened with query_only set.
func (d *Database) Execute(ctx context.Context, query string) (*ResultSet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty query")
	}
	d.logger.Debug("executing sql", slog.String("sql", query))

	var (
		rows *sql.Rows
		err  error
	)
	if d.readOnly && d.driver == DriverPostgres {
		tx, txErr := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if txErr != nil {
			return nil, fmt.Errorf("begin read-only transaction: %w", txErr)
		}
		defer tx.Rollback()
		rows, err = tx.QueryContext(ctx, query)
	} else {
		rows, err = d.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	result, err := d.collect(rows)
	if err != nil {
		return nil, err
	}
	metrics.ObserveRows(len(result.Rows))
	if result.Truncated {
		d.logger.Warn("result truncated", slog.Int("max_rows", d.maxRows))
	}
	return result, nil
}

func (d *Database) collect(rows *sql.Rows) (*ResultSet, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	columns := make([]string, len(types))
	decimal := make([]bool, len(types))
	for i, ct := range types {
		columns[i] = ct.Name()
		decimal[i] = isDecimalType(ct.DatabaseTypeName())
	}

	result := &ResultSet{Columns: columns, Rows: []models.Row{}}
	for rows.Next() {
		if d.maxRows > 0 && len(result.Rows) >= d.maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v, decimal[i])
		}
		result.Rows = append(result.Rows, models.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func isDecimalType(name string) bool {
	name = strings.ToUpper(name)
	return strings.HasPrefix(name, "NUMERIC") || strings.HasPrefix(name, "DECIMAL")
}

// normalizeValue makes driver values JSON friendly: decimals become float64
// and byte slices become strings.
func normalizeValue(v any, decimal bool) any {
	switch x := v.(type) {
	case []byte:
		if decimal {
			if f, err := strconv.ParseFloat(string(x), 64); err == nil && isFinite(f) {
				return f
			}
		}
		return string(x)
	case string:
		if decimal {
			if f, err := strconv.ParseFloat(x, 64); err == nil && isFinite(f) {
				return f
			}
		}
		return x
	case int64:
		if decimal {
			return float64(x)
		}
		return x
	case float64:
		// NaN and infinities have no JSON encoding.
		if !isFinite(x) {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
		return x
	case float32:
		if f := float64(x); !isFinite(f) {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return x
	default:
		return v
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// TableMetadata returns table → columns for the configured schema. Results
// are cached when a schema TTL is configured.
func (d *Database) TableMetadata(ctx context.Context) (models.SchemaMetadata, error) {
	key := ""
	if d.schemaTTL > 0 {
		key = cache.Key("schema", d.driver, d.dsn, d.schema)
		data, err := d.cache.Get(ctx, key)
		if err == nil {
			var cached models.SchemaMetadata
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.ObserveCacheLookup("schema", true)
				return cached, nil
			}
		}
		metrics.ObserveCacheLookup("schema", false)
	}

	var (
		meta models.SchemaMetadata
		err  error
	)
	if d.driver == DriverSQLite {
		meta, err = d.sqliteMetadata(ctx)
	} else {
		meta, err = d.postgresMetadata(ctx)
	}
	if err != nil {
		return nil, err
	}

	if key != "" && len(meta) > 0 {
		if payload, err := json.Marshal(meta); err == nil {
			if err := d.cache.Set(ctx, key, payload, d.schemaTTL); err != nil {
				d.logger.Warn("schema cache write failed", slog.Any("error", err))
			}
		}
	}
	return meta, nil
}

func (d *Database) postgresMetadata(ctx context.Context) (models.SchemaMetadata, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`, d.schema)
	if err != nil {
		return nil, fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close()

	meta := models.SchemaMetadata{}
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return nil, fmt.Errorf("scan column metadata: %w", err)
		}
		meta[table] = append(meta[table], models.ColumnMeta{Name: column, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column metadata: %w", err)
	}
	return meta, nil
}

func (d *Database) sqliteMetadata(ctx context.Context) (models.SchemaMetadata, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query sqlite_master: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	meta := models.SchemaMetadata{}
	for _, table := range tables {
		cols, err := d.sqliteColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		meta[table] = cols
	}
	return meta, nil
}

func (d *Database) sqliteColumns(ctx context.Context, table string) ([]models.ColumnMeta, error) {
	quoted := `"` + strings.ReplaceAll(table, `"`, `""`) + `"`
	rows, err := d.db.QueryContext(ctx, "PRAGMA table_info("+quoted+")")
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []models.ColumnMeta
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info %s: %w", table, err)
		}
		cols = append(cols, models.ColumnMeta{Name: name, Type: strings.ToLower(colType)})
	}
	return cols, rows.Err()
}
