package repo

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func openTestDatabase(t *testing.T, opts DatabaseOptions) *Database {
	t.Helper()
	opts.Driver = DriverSQLite
	opts.DSN = filepath.Join(t.TempDir(), "shop.db")
	db, err := OpenDatabase(context.Background(), opts)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, region TEXT, amount NUMERIC, note BLOB)`,
		`INSERT INTO orders (id, region, amount, note) VALUES (1, 'north', 12.5, x'6869')`,
		`INSERT INTO orders (id, region, amount, note) VALUES (2, 'south', 30, NULL)`,
		`INSERT INTO orders (id, region, amount, note) VALUES (3, 'east', 7.25, NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := db.db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	return db
}

func TestExecuteKeepsColumnOrderAndConvertsValues(t *testing.T) {
	db := openTestDatabase(t, DatabaseOptions{})

	result, err := db.Execute(context.Background(), "SELECT region, amount, note, id FROM orders ORDER BY id")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Columns) != 4 || result.Columns[0] != "region" || result.Columns[3] != "id" {
		t.Fatalf("unexpected columns: %v", result.Columns)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Rows))
	}

	first := result.Rows[0]
	if keys := first.Keys(); keys[0] != "region" || keys[1] != "amount" {
		t.Fatalf("row lost column order: %v", keys)
	}
	if v, _ := first.Get("note"); v != "hi" {
		t.Fatalf("expected blob converted to string, got %#v", v)
	}
	if v, _ := result.Rows[1].Get("amount"); v != 30.0 {
		t.Fatalf("expected numeric column as float64, got %#v", v)
	}
	if v, _ := first.Get("id"); v != int64(1) {
		t.Fatalf("expected integer id, got %#v", v)
	}
}

func TestExecuteCapsRows(t *testing.T) {
	db := openTestDatabase(t, DatabaseOptions{MaxRows: 2})

	result, err := db.Execute(context.Background(), "SELECT id FROM orders")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 2 || !result.Truncated {
		t.Fatalf("expected 2 truncated rows, got %d truncated=%v", len(result.Rows), result.Truncated)
	}
}

func TestExecuteReportsErrors(t *testing.T) {
	db := openTestDatabase(t, DatabaseOptions{})
	if _, err := db.Execute(context.Background(), "SELECT * FROM missing"); err == nil {
		t.Fatalf("expected error for missing table")
	}
	if _, err := db.Execute(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestExecuteReadOnlySQLiteRefusesWrites(t *testing.T) {
	seeded := openTestDatabase(t, DatabaseOptions{})
	db, err := OpenDatabase(context.Background(), DatabaseOptions{
		Driver:   DriverSQLite,
		DSN:      seeded.dsn,
		ReadOnly: true,
	})
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Execute(context.Background(), "WITH x AS (SELECT 1) DELETE FROM orders RETURNING id"); err == nil {
		t.Fatalf("expected write to fail on a read-only database")
	}

	result, err := db.Execute(context.Background(), "SELECT count(*) AS n FROM orders")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if v, _ := result.Rows[0].Get("n"); v != int64(3) {
		t.Fatalf("expected rows to survive, got %#v", v)
	}
}

func TestSQLiteQueryOnlyDSN(t *testing.T) {
	cases := map[string]string{
		"shop.db":                       "shop.db?_pragma=query_only(1)",
		"file:shop.db?cache=shared":     "file:shop.db?cache=shared&_pragma=query_only(1)",
		"shop.db?_pragma=query_only(1)": "shop.db?_pragma=query_only(1)",
	}
	for in, want := range cases {
		if got := sqliteQueryOnly(in); got != want {
			t.Fatalf("sqliteQueryOnly(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTableMetadataSQLite(t *testing.T) {
	db := openTestDatabase(t, DatabaseOptions{})

	meta, err := db.TableMetadata(context.Background())
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	cols, ok := meta["orders"]
	if !ok || len(cols) != 4 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if cols[2].Name != "amount" || cols[2].Type != "numeric" {
		t.Fatalf("unexpected column: %+v", cols[2])
	}
}

func TestTableMetadataUsesCache(t *testing.T) {
	stub := newStubCache()
	db := openTestDatabase(t, DatabaseOptions{Cache: stub, SchemaTTL: time.Minute})

	if _, err := db.TableMetadata(context.Background()); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if len(stub.store) != 1 {
		t.Fatalf("expected schema to be cached, store=%d", len(stub.store))
	}
	for _, ttl := range stub.ttls {
		if ttl != time.Minute {
			t.Fatalf("unexpected ttl: %v", ttl)
		}
	}

	if _, err := db.db.Exec(`CREATE TABLE customers (id INTEGER)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	meta, err := db.TableMetadata(context.Background())
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if _, ok := meta["customers"]; ok {
		t.Fatalf("expected cached metadata without new table")
	}
	if stub.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", stub.hits)
	}
}

func TestOpenDatabaseRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenDatabase(context.Background(), DatabaseOptions{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestNormalizeValue(t *testing.T) {
	if v := normalizeValue([]byte("12.50"), true); v != 12.5 {
		t.Fatalf("expected decimal bytes as float, got %#v", v)
	}
	if v := normalizeValue("3.5", true); v != 3.5 {
		t.Fatalf("expected decimal string as float, got %#v", v)
	}
	if v := normalizeValue("3.5", false); v != "3.5" {
		t.Fatalf("non-decimal strings stay strings, got %#v", v)
	}
	if v := normalizeValue([]byte("NaN"), true); v != "NaN" {
		t.Fatalf("expected NaN decimal kept as text, got %#v", v)
	}
	if v := normalizeValue(math.Inf(1), false); v != "+Inf" {
		t.Fatalf("expected infinite float as text, got %#v", v)
	}
}
