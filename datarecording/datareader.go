package datarecording

import (
	"context"
	"database/sql"
	"slices"

	"github.com/pkg/errors"
)

// ErrNoSuchTable is returned when a table is not in the database.
var ErrNoSuchTable = errors.New("no such table")

// SQLiteReader reads back a database written by a DataRecorder.
type SQLiteReader struct {
	*sql.DB

	filename string
}

// NewSQLiteReader creates a reader for the database path + ".sqlite3". Call
// Init before reading.
func NewSQLiteReader(path string) *SQLiteReader {
	return &SQLiteReader{filename: path + ".sqlite3"}
}

// Init opens the database read-only.
func (r *SQLiteReader) Init() error {
	db, err := sql.Open("sqlite3", "file:"+r.filename+"?mode=ro")
	if err != nil {
		return errors.Wrapf(err, "opening %s", r.filename)
	}

	r.DB = db

	return nil
}

// ListTables returns the names of the tables in the database, sorted.
func (r *SQLiteReader) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, errors.Wrap(err, "listing tables")
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "listing tables")
		}

		names = append(names, name)
	}

	return names, errors.Wrap(rows.Err(), "listing tables")
}

// CountRows returns the number of rows in a table. Only tables listed by
// ListTables are queried.
func (r *SQLiteReader) CountRows(ctx context.Context, table string) (int, error) {
	names, err := r.ListTables(ctx)
	if err != nil {
		return 0, err
	}

	if !slices.Contains(names, table) {
		return 0, errors.Wrap(ErrNoSuchTable, table)
	}

	var n int

	err = r.QueryRowContext(ctx, `SELECT COUNT(*) FROM "`+table+`"`).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "counting rows of %s", table)
	}

	return n, nil
}

// TableSize is the row count of one table.
type TableSize struct {
	Table string
	Rows  int
}

// Summary returns the row count of every table, in table name order.
func (r *SQLiteReader) Summary(ctx context.Context) ([]TableSize, error) {
	names, err := r.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	sizes := make([]TableSize, 0, len(names))

	for _, name := range names {
		n, err := r.CountRows(ctx, name)
		if err != nil {
			return nil, err
		}

		sizes = append(sizes, TableSize{Table: name, Rows: n})
	}

	return sizes, nil
}
