// Package sqlitelog provides a persistence-backed log sink: a
// [logiface.Writer] implementation that appends structured log events to a
// SQLite database, for deployments that want their logs queryable after the
// fact.
//
// Usage:
//
//	w, err := sqlitelog.Open("app-log.db")
//	if err != nil {
//	    // ...
//	}
//	defer w.Close()
//
//	logger := stumpy.L.New(
//	    stumpy.L.WithStumpy(),
//	    stumpy.L.WithWriter(w),
//	)
//	crossthread.SetLogger(logger.Logger())
package sqlitelog

import (
	"database/sql"
	"errors"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	_ "github.com/mattn/go-sqlite3" // sqlite3 database/sql driver
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS debug(date DATETIME, level TEXT, entry TEXT)`
	insertSQL      = `INSERT INTO debug(date, level, entry) VALUES(?, ?, ?)`
)

// Writer appends log events to a SQLite table named "debug", one row per
// event: the event time (UTC), its level, and the full structured entry as
// JSON. Safe for concurrent use; database/sql provides the per-connection
// synchronization the driver requires.
type Writer struct {
	db    *sql.DB
	owned bool
}

var _ logiface.Writer[*stumpy.Event] = (*Writer)(nil)

// writerOptions holds configuration options for Open.
type writerOptions struct {
	singleConnection bool
}

// Option configures a [Writer] opened via [Open].
type Option interface {
	applyWriter(*writerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyWriterFunc func(*writerOptions) error
}

func (o *optionImpl) applyWriter(opts *writerOptions) error {
	return o.applyWriterFunc(opts)
}

// WithSingleConnection restricts the writer to one database connection,
// serializing all inserts. The default lets database/sql pool connections
// per concurrent writer.
func WithSingleConnection() Option {
	return &optionImpl{func(opts *writerOptions) error {
		opts.singleConnection = true
		return nil
	}}
}

// Open creates a writer appending to the SQLite database at filename,
// creating the file and the table as needed.
func Open(filename string, opts ...Option) (*Writer, error) {
	cfg := &writerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWriter(cfg); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}
	if cfg.singleConnection {
		db.SetMaxOpenConns(1)
	}

	w, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	w.owned = true
	return w, nil
}

// New creates a writer on an existing database handle, creating the table as
// needed. The caller retains ownership of db; [Writer.Close] will not close
// it.
func New(db *sql.DB) (*Writer, error) {
	if db == nil {
		return nil, errors.New("sqlitelog: nil database handle")
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, err
	}
	return &Writer{db: db}, nil
}

// Write persists one event. Implements [logiface.Writer].
func (x *Writer) Write(event *stumpy.Event) error {
	// Event.Bytes omits the closing brace of the JSON object.
	b := event.Bytes()
	entry := make([]byte, 0, len(b)+1)
	entry = append(entry, b...)
	entry = append(entry, '}')

	_, err := x.db.Exec(insertSQL, time.Now().UTC(), event.Level().String(), string(entry))
	return err
}

// Close releases the writer, closing the database handle if the writer
// opened it.
func (x *Writer) Close() error {
	if x.owned {
		return x.db.Close()
	}
	return nil
}
