// Package datarecording stores simulation records, such as traced tasks, in
// SQLite databases.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/fatih/structs"
	"github.com/pkg/errors"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder writes rows into tables. Every table stores one struct type,
// one column per field.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of the sample
	// entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers a row. The entry must have the type of the sample
	// entry of the table.
	InsertData(tableName string, entry any)

	// ListTables returns the names of the tables created, sorted.
	ListTables() []string

	// Flush writes the buffered rows in one transaction.
	Flush()

	// Close flushes and releases the database.
	Close() error
}

// DefaultBatchSize is the number of buffered rows that triggers a flush.
const DefaultBatchSize = 100000

// New creates a DataRecorder that writes into path + ".sqlite3". An empty
// path picks a unique name. It panics if the file exists or cannot be
// opened. Buffered rows are flushed when the program exits through atexit.
func New(path string) DataRecorder {
	r, err := Open(path)
	if err != nil {
		panic(err)
	}

	return r
}

// Open is like New but returns the error.
func Open(path string) (DataRecorder, error) {
	if path == "" {
		path = "hyperbus_trace_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, errors.Errorf("%s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}

	fmt.Fprintf(os.Stderr, "Recording into %s\n", filename)

	return NewWithDB(db), nil
}

// NewWithDB creates a DataRecorder on an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	r := &sqliteRecorder{
		db:        db,
		batchSize: DefaultBatchSize,
		tables:    make(map[string]*tableSchema),
	}

	atexit.Register(r.Flush)

	return r
}

// tableSchema is a created table with the rows waiting for the next flush.
type tableSchema struct {
	entryType reflect.Type
	insertSQL string
	pending   []any
}

type sqliteRecorder struct {
	db *sql.DB

	mu        sync.Mutex
	tables    map[string]*tableSchema
	buffered  int
	batchSize int
	closed    bool
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) {
	columns, err := columnsOf(sampleEntry)
	if err != nil {
		panic(errors.Wrapf(err, "creating table %s", tableName))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.tables[tableName]; dup {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	r.mustExec(fmt.Sprintf("CREATE TABLE %s (%s)",
		tableName, strings.Join(columns, ", ")))

	names := structs.Names(sampleEntry)
	r.tables[tableName] = &tableSchema{
		entryType: reflect.TypeOf(sampleEntry),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			tableName, strings.Join(names, ", "),
			strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")),
	}
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	t, ok := r.tables[tableName]
	if !ok {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.entryType {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s stores %s, got %T",
			tableName, t.entryType, entry))
	}

	t.pending = append(t.pending, entry)
	r.buffered++
	full := r.buffered >= r.batchSize

	r.mu.Unlock()

	if full {
		r.Flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (r *sqliteRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.flush(); err != nil {
		panic(err)
	}
}

func (r *sqliteRecorder) flush() error {
	if r.buffered == 0 || r.closed {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "starting flush")
	}

	for name, t := range r.tables {
		if err := insertPending(tx, t); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "flushing %s", name)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing flush")
	}

	r.buffered = 0

	return nil
}

func insertPending(tx *sql.Tx, t *tableSchema) error {
	if len(t.pending) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(t.insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range t.pending {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return err
		}
	}

	t.pending = nil

	return nil
}

func (r *sqliteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	if err := r.flush(); err != nil {
		return err
	}

	r.closed = true

	return r.db.Close()
}

func (r *sqliteRecorder) mustExec(query string) {
	if _, err := r.db.Exec(query); err != nil {
		panic(errors.Wrapf(err, "executing %q", query))
	}
}

// columnsOf returns the column definitions of a flat struct of scalars.
func columnsOf(entry any) ([]string, error) {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Errorf("entry %T is not a struct", entry)
	}

	columns := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			return nil, errors.Errorf("field %s of %s is not exported",
				f.Name, t)
		}

		sqlType, ok := sqliteType(f.Type.Kind())
		if !ok {
			return nil, errors.Errorf("field %s of %s has unsupported kind %s",
				f.Name, t, f.Type.Kind())
		}

		columns = append(columns, f.Name+" "+sqlType)
	}

	return columns, nil
}

func sqliteType(k reflect.Kind) (string, bool) {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}
