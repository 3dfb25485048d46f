package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/internal/validation"
)

const schema = `
CREATE TABLE IF NOT EXISTS resources (
	path   TEXT PRIMARY KEY,
	body   BLOB NOT NULL,
	blake3 TEXT NOT NULL,
	size   INTEGER NOT NULL
)`

// Store keeps data resources in a single SQLite table keyed by resource path.
// It implements corpus.Source, so a reader can run from one database file.
type Store struct {
	db   *sql.DB
	path string
}

var _ corpus.Source = (*Store)(nil)

// OpenStore opens (creating if needed) a writable store at path.
func OpenStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, qerrors.NewIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, qerrors.NewIO("create schema", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// OpenStoreReadOnly opens an existing store without write access.
func OpenStoreReadOnly(path string) (*Store, error) {
	db, err := OpenReadOnly(path)
	if err != nil {
		return nil, qerrors.NewIO("open", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, qerrors.NewIO("open", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Open implements corpus.Source.
func (s *Store) Open(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM resources WHERE path = ?`, path).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &qerrors.NotFoundError{Resource: "resource", ID: path}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, qerrors.NewIO("query", path, err)
	}
	return body, nil
}

// Put stores one resource, replacing any previous body.
func (s *Store) Put(ctx context.Context, path string, body []byte) error {
	clean, err := validation.SanitizePath(path)
	if err != nil {
		return qerrors.NewValidation("path", err.Error())
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resources (path, body, blake3, size) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET body = excluded.body, blake3 = excluded.blake3, size = excluded.size`,
		clean, body, corpus.Hash(body), len(body))
	if err != nil {
		return qerrors.NewIO("insert", clean, err)
	}
	return nil
}

// Digest returns the stored BLAKE3 digest of path.
func (s *Store) Digest(ctx context.Context, path string) (corpus.Digest, error) {
	d := corpus.Digest{Path: path}
	err := s.db.QueryRowContext(ctx, `SELECT blake3, size FROM resources WHERE path = ?`, path).Scan(&d.BLAKE3, &d.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return corpus.Digest{}, &qerrors.NotFoundError{Resource: "resource", ID: path}
	}
	if err != nil {
		return corpus.Digest{}, qerrors.NewIO("query", path, err)
	}
	return d, nil
}

// Paths lists stored resource paths in ascending order.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM resources ORDER BY path`)
	if err != nil {
		return nil, qerrors.NewIO("query", s.path, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, qerrors.NewIO("scan", s.path, err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// ImportReport summarises an Import.
type ImportReport struct {
	Imported int
	Bytes    int64
	Missing  []string
}

// Import copies paths from src into the store inside one transaction.
// Resources absent from src are reported, not fatal.
func (s *Store) Import(ctx context.Context, src corpus.Source, paths []string) (ImportReport, error) {
	var report ImportReport

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return report, qerrors.NewIO("begin", s.path, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO resources (path, body, blake3, size) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET body = excluded.body, blake3 = excluded.blake3, size = excluded.size`)
	if err != nil {
		return report, qerrors.NewIO("prepare", s.path, err)
	}
	defer stmt.Close()

	for _, p := range paths {
		body, err := src.Open(ctx, p)
		if qerrors.IsNotFound(err) {
			report.Missing = append(report.Missing, p)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("import %s: %w", p, err)
		}
		if _, err := stmt.ExecContext(ctx, p, body, corpus.Hash(body), len(body)); err != nil {
			return report, qerrors.NewIO("insert", p, err)
		}
		report.Imported++
		report.Bytes += int64(len(body))
	}

	if err := tx.Commit(); err != nil {
		return report, qerrors.NewIO("commit", s.path, err)
	}
	return report, nil
}
