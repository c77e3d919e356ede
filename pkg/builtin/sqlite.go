package builtin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"

	"localagent/pkg/capability"
)

const defaultQueryLimit = 100

var (
	databaseParam = capability.Optional("database", "SQLite file, defaults to the configured database")
	argsParam     = capability.Optional("args", "positional arguments bound to ? placeholders")
)

func sqliteCapabilities(deps Deps) []capability.Descriptor {
	db := sqliteHandlers{deps: deps}
	return []capability.Descriptor{
		describe("sqlite_query", "Run a read-only query and log the rows",
			capability.Signature{
				capability.Required("query", "SQL query"),
				databaseParam,
				argsParam,
				capability.Optional("limit", "maximum rows to log, default 100"),
			},
			db.query),
		describe("sqlite_exec", "Execute a statement that may modify the database",
			capability.Signature{
				capability.Required("statement", "SQL statement"),
				databaseParam,
				argsParam,
			},
			db.exec),
	}
}

type sqliteHandlers struct {
	deps Deps
}

func (h sqliteHandlers) query(ctx context.Context, params capability.Params) error {
	query, err := params.String("query")
	if err != nil {
		return err
	}
	limit, err := params.IntOr("limit", defaultQueryLimit)
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	args, err := sqlArgs(params)
	if err != nil {
		return err
	}
	path, err := h.database(params)
	if err != nil {
		return err
	}
	db, err := openSQLite(path, true)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return sqliteError("query", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return sqliteError("query", err)
	}
	var results []map[string]any
	truncated := false
	for rows.Next() {
		if len(results) == limit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return sqliteError("scan", err)
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			if raw, ok := values[i].([]byte); ok {
				values[i] = string(raw)
			}
			row[column] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return sqliteError("query", err)
	}
	h.deps.Logger.InfoContext(ctx, "Query results",
		"database", path, "columns", columns, "rows", results, "count", len(results), "truncated", truncated)
	return nil
}

func (h sqliteHandlers) exec(ctx context.Context, params capability.Params) error {
	statement, err := params.String("statement")
	if err != nil {
		return err
	}
	args, err := sqlArgs(params)
	if err != nil {
		return err
	}
	path, err := h.database(params)
	if err != nil {
		return err
	}
	db, err := openSQLite(path, false)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, statement, args...)
	if err != nil {
		return sqliteError("exec", err)
	}
	affected, _ := result.RowsAffected()
	h.deps.Logger.InfoContext(ctx, "Statement executed", "database", path, "rows_affected", affected)
	return nil
}

func (h sqliteHandlers) database(params capability.Params) (string, error) {
	path, err := params.StringOr("database", h.deps.SQLitePath)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", errors.New("no database given and none configured")
	}
	return path, nil
}

// sqliteDSN builds a file: URI for path. The path is percent-escaped so
// that '?', '#' and '%' in file names reach SQLite intact.
func sqliteDSN(path string, readOnly bool) string {
	query := url.Values{}
	query.Add("_pragma", "busy_timeout(5000)")
	if readOnly {
		query.Set("mode", "ro")
	}
	location := url.URL{Path: filepath.ToSlash(filepath.Clean(path))}
	return "file:" + location.EscapedPath() + "?" + query.Encode()
}

// openSQLite opens path with the modernc driver. A read-only handle refuses
// writes at the SQLite level, whatever the query text says.
func openSQLite(path string, readOnly bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path, readOnly))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db '%s': %w", path, err)
	}
	return db, nil
}

func sqlArgs(params capability.Params) ([]any, error) {
	value, ok := params["args"]
	if !ok || value == nil {
		return nil, nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter 'args' must be a list, got %T", value)
	}
	for i, item := range list {
		switch item.(type) {
		case string, float64, bool, nil:
		default:
			return nil, fmt.Errorf("parameter 'args' item %d must be a scalar, got %T", i, item)
		}
	}
	return list, nil
}

func sqliteError(op string, err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return fmt.Errorf("sqlite %s (code %d): %w", op, sqliteErr.Code(), err)
	}
	return fmt.Errorf("sqlite %s: %w", op, err)
}
