// Package postgres implements the storage backend over a PostgreSQL table
// with one row per object. Range reads use substring on the bytea column
// and range writes use overlay, so partial I/O never transfers the whole
// object.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/objstream/objstream-go/internal/stream"
)

// DefaultTable is the table used when the mount does not name one.
const DefaultTable = "objects"

// Backend stores objects in a PostgreSQL table.
type Backend struct {
	db    *sql.DB
	table string
}

// New opens a connection pool on dsn and ensures the object table exists.
func New(dsn, table string) (*Backend, error) {
	if table == "" {
		table = DefaultTable
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	b := &Backend{db: db, table: table}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return b, nil
}

func (b *Backend) initSchema() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			path VARCHAR(4096) PRIMARY KEY,
			data BYTEA NOT NULL DEFAULT ''::bytea,
			size BIGINT NOT NULL DEFAULT 0,
			mtime TIMESTAMP NOT NULL DEFAULT NOW(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_%s_prefix ON %s(path text_pattern_ops);
	`, b.table, b.table, b.table)
	_, err := b.db.Exec(query)
	return err
}

// Object returns a handle for key.
func (b *Backend) Object(key string) stream.Object {
	return &object{key: key, b: b}
}

// Limits reports the backend buffer bounds. The whole object lives in one
// row, so parts stay modest.
func (b *Backend) Limits() stream.Limits {
	return stream.Limits{DefaultBufferSize: stream.DefaultBufferSize}
}

// Close closes the connection pool.
func (b *Backend) Close() error { return b.db.Close() }

// object implements stream.Object and stream.RangeObject on one row.
type object struct {
	key string
	b   *Backend
}

func (o *object) Name() string          { return o.key }
func (o *object) Limits() stream.Limits { return o.b.Limits() }

func (o *object) Head(ctx context.Context) (stream.Header, error) {
	query := fmt.Sprintf("SELECT size, mtime FROM %s WHERE path = $1", o.b.table)
	var size int64
	var mtime time.Time
	err := o.b.db.QueryRowContext(ctx, query, o.key).Scan(&size, &mtime)
	if err == sql.ErrNoRows {
		return stream.Header{}, fmt.Errorf("object %s: %w", o.key, os.ErrNotExist)
	}
	if err != nil {
		return stream.Header{}, fmt.Errorf("head object: %w", err)
	}
	return stream.Header{Size: size, ModTime: mtime}, nil
}

func (o *object) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	// substring is 1-based; FOR 0 yields empty, which matches a range
	// starting past EOF.
	var query string
	var row *sql.Row
	if end <= 0 {
		query = fmt.Sprintf("SELECT substring(data FROM $2::int) FROM %s WHERE path = $1", o.b.table)
		row = o.b.db.QueryRowContext(ctx, query, o.key, start+1)
	} else {
		query = fmt.Sprintf("SELECT substring(data FROM $2::int FOR $3::int) FROM %s WHERE path = $1", o.b.table)
		row = o.b.db.QueryRowContext(ctx, query, o.key, start+1, end-start)
	}
	var data []byte
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("object %s: %w", o.key, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("read range: %w", err)
	}
	return data, nil
}

func (o *object) ReadAll(ctx context.Context) ([]byte, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE path = $1", o.b.table)
	var data []byte
	err := o.b.db.QueryRowContext(ctx, query, o.key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("object %s: %w", o.key, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (o *object) Flush(ctx context.Context, data []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (path, data, size, mtime, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (path)
		DO UPDATE SET
			data = EXCLUDED.data,
			size = EXCLUDED.size,
			mtime = NOW(),
			updated_at = NOW()
	`, o.b.table)
	if _, err := o.b.db.ExecContext(ctx, query, o.key, data, len(data)); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

func (o *object) Create(ctx context.Context) error {
	return o.Flush(ctx, []byte{})
}

func (o *object) Delete(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE path = $1", o.b.table)
	result, err := o.b.db.ExecContext(ctx, query, o.key)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("object %s: %w", o.key, os.ErrNotExist)
	}
	return nil
}

// FlushRange overlays data at [start, end) in the stored bytea. Earlier
// ranges are guaranteed to have landed, so the overlay never starts past
// the current content.
func (o *object) FlushRange(ctx context.Context, data []byte, start, end int64) error {
	update := fmt.Sprintf(`
		UPDATE %s SET
			data = overlay(data PLACING $2 FROM $3::int),
			size = greatest(size, $4),
			mtime = NOW(),
			updated_at = NOW()
		WHERE path = $1
	`, o.b.table)
	result, err := o.b.db.ExecContext(ctx, update, o.key, data, start+1, end)
	if err != nil {
		return fmt.Errorf("write range: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	if start > 0 {
		return fmt.Errorf("range at %d on absent object %s: %w", start, o.key, os.ErrNotExist)
	}
	return o.Flush(ctx, data)
}
