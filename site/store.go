// Package site keeps the published content of each site.
//
// Every site has its own embedded QL database holding a single table which
// maps URL paths to encoded entity lists. A Store is the handle for one
// site's database, and a Registry opens and caches Stores by site name. Access
// to a single path is handed out as a Cell, which can be split into a Getter
// and a Setter so a caller may be given only one of the two.
package site

import (
	"context"
	"database/sql"
	"path/filepath"
	"unicode/utf8"

	"github.com/BurntSushi/migration"
	_ "github.com/cznic/ql/driver" // registers the ql and ql-mem drivers
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"

	"github.com/ndlib/webpub/entity"
)

// DBFile is the name of the database file inside a site directory.
const DBFile = "site.ql"

// A Store is the database for one site. It is safe for concurrent use; QL
// serializes the transactions itself, so no locking is done here.
type Store struct {
	name string
	db   *sql.DB
}

// OpenStore opens the database inside the directory dir, creating it if
// needed. The directory must already exist.
func OpenStore(dir string) (*Store, error) {
	return openStore("ql", filepath.Join(dir, DBFile), filepath.Base(dir))
}

// OpenMemoryStore opens a database kept entirely in memory. Stores opened
// with the same name share contents. Useful for testing.
func OpenMemoryStore(name string) (*Store, error) {
	return openStore("ql-mem", name+".db", name)
}

func openStore(driver, dsn, name string) (*Store, error) {
	db, err := migration.OpenWith(
		driver,
		dsn,
		qlMigrations,
		qlVersion,
		qlSetVersion)
	if err != nil {
		return nil, storageError(err, "open", name)
	}
	return &Store{name: name, db: db}, nil
}

// Name returns the site name this store was opened for.
func (s *Store) Name() string { return s.name }

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Read returns the entity list stored at path. The boolean is false if
// nothing is stored there. Bytes which do not decode give an error wrapping
// entity.ErrCorrupt; that is never reported as a missing path.
func (s *Store) Read(ctx context.Context, path string) (entity.List, bool, error) {
	const query = `SELECT value FROM entities WHERE path == ?1 LIMIT 1`

	if !utf8.ValidString(path) {
		return nil, false, errors.Wrap(entity.ErrInvalidInput, "path is not UTF-8")
	}
	// the transaction is only read from, and is always rolled back.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, storageError(err, "read", s.name)
	}
	defer tx.Rollback()

	var value []byte
	err = tx.QueryRowContext(ctx, query, path).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, storageError(err, "read", s.name)
	}
	list, err := entity.Decode(value)
	if err != nil {
		return nil, false, errors.Wrapf(err, "site %s path %s", s.name, path)
	}
	return list, true, nil
}

// Write replaces the entity list stored at path. An empty list deletes the
// path, and deleting a missing path is not an error. The change is committed
// before Write returns.
func (s *Store) Write(ctx context.Context, path string, list entity.List) error {
	const (
		dbDelete = `DELETE FROM entities WHERE path == ?1`
		dbUpdate = `UPDATE entities SET value = ?2 WHERE path == ?1`
		dbInsert = `INSERT INTO entities VALUES (?1, ?2)`
	)

	if !utf8.ValidString(path) {
		return errors.Wrap(entity.ErrInvalidInput, "path is not UTF-8")
	}
	var value []byte
	if len(list) > 0 {
		var err error
		value, err = list.Encode()
		if err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(err, "write", s.name)
	}
	if value == nil {
		_, err = tx.ExecContext(ctx, dbDelete, path)
	} else {
		err = upsert(ctx, tx, dbUpdate, dbInsert, path, value)
	}
	if err != nil {
		_ = tx.Rollback()
		return storageError(err, "write", s.name)
	}
	if err = tx.Commit(); err != nil {
		return storageError(err, "commit", s.name)
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, update, insert string, path string, value []byte) error {
	result, err := tx.ExecContext(ctx, update, path, value)
	if err != nil {
		return err
	}
	nrows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if nrows == 0 {
		// record didn't exist. create it
		_, err = tx.ExecContext(ctx, insert, path, value)
	}
	return err
}

// Paths returns every path which has content, in sorted order.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	const query = `SELECT path FROM entities ORDER BY path`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageError(err, "list", s.name)
	}
	defer rows.Close()
	var result []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, storageError(err, "list", s.name)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "list", s.name)
	}
	return result, nil
}

// Getter returns a read capability for path.
func (s *Store) Getter(path string) Getter { return s.Cell(path).AsGetter() }

// Setter returns a write capability for path.
func (s *Store) Setter(path string) Setter { return s.Cell(path).AsSetter() }

// storageError reports err and converts it into an ErrStorageUnavailable.
func storageError(err error, op, name string) error {
	raven.CaptureError(err, map[string]string{"Site": name, "Op": op})
	return errors.Wrapf(entity.ErrStorageUnavailable, "site %s: %s: %s", name, op, err.Error())
}
