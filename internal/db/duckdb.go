// Package db keeps a DuckDB copy of every loaded layer so it can be
// queried with SQL.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb/geojson"
)

// Config holds database configuration.
type Config struct {
	DataDir    string
	DBName     string   // empty opens an in-memory database
	Extensions []string // installed and loaded best-effort
}

// Store is a DuckDB database with one table per layer.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes DDL from concurrent loads

	tables map[string]string // layer -> table
	owners map[string]string // table -> layer
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	dsn := ""
	if cfg.DBName != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		dsn = filepath.Join(duckdbDir, cfg.DBName+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	for _, ext := range cfg.Extensions {
		// Extensions might already be installed, or be unavailable offline.
		_, _ = conn.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext))
	}
	return &Store{
		db:     conn,
		tables: map[string]string{},
		owners: map[string]string{},
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var unsafeIdent = regexp.MustCompile(`[^a-z0-9_]`)

// TableName maps a layer name to its base table name. Distinct layers can
// share a base name; the store suffixes later ones.
func TableName(layer string) string {
	return "layer_" + unsafeIdent.ReplaceAllString(strings.ToLower(layer), "_")
}

// tableFor returns the layer's table, claiming a free one on first use.
// Callers hold s.mu.
func (s *Store) tableFor(layer string) string {
	if t, ok := s.tables[layer]; ok {
		return t
	}
	base := TableName(layer)
	table := base
	for n := 2; ; n++ {
		if _, taken := s.owners[table]; !taken {
			break
		}
		table = fmt.Sprintf("%s_%d", base, n)
	}
	s.tables[layer] = table
	s.owners[table] = layer
	return table
}

// LayerTables returns which table holds each ingested layer.
func (s *Store) LayerTables() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.tables))
	for l, t := range s.tables {
		out[l] = t
	}
	return out
}

// Ingest replaces the layer's table with one row per feature.
func (s *Store) Ingest(ctx context.Context, layer string, fc *geojson.FeatureCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.tableFor(layer)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", layer, err)
	}
	defer tx.Rollback()

	ddl := fmt.Sprintf(`CREATE OR REPLACE TABLE %q (
		feature_index INTEGER,
		geometry_type VARCHAR,
		lon DOUBLE,
		lat DOUBLE,
		properties VARCHAR
	)`, table)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ingest %s: %w", layer, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q VALUES (?, ?, ?, ?, ?)`, table))
	if err != nil {
		return fmt.Errorf("ingest %s: %w", layer, err)
	}
	defer stmt.Close()

	for i, f := range fc.Features {
		var kind any
		var lon, lat any
		if f.Geometry != nil {
			kind = f.Geometry.GeoJSONType()
			c := f.Geometry.Bound().Center()
			lon, lat = c[0], c[1]
		}
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return fmt.Errorf("ingest %s feature %d: %w", layer, i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, kind, lon, lat, string(props)); err != nil {
			return fmt.Errorf("ingest %s feature %d: %w", layer, i, err)
		}
	}
	return tx.Commit()
}

// Tables lists the tables in the main schema.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}
	return tables, rows.Err()
}

// Result is a generic query result.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// Query executes a query and returns every row keyed by column name.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}
