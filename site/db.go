package site

import (
	"database/sql"

	"github.com/BurntSushi/migration"
)

// Schema versions are kept in a QL table, since the migration package's
// default version table uses SQL that QL does not accept.
const (
	qlCreateVersion = `CREATE TABLE IF NOT EXISTS migration_version (version int, applied time)`
	qlGetVersion    = `SELECT max(version) FROM migration_version`
	qlInsertVersion = `INSERT INTO migration_version VALUES (?1, now())`
)

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var qlMigrations = []migration.Migrator{
	qlschema1,
}

func qlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS entities (
			path string,
			value blob
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS entitiespath ON entities (path)`,
	}
	return execlist(tx, s)
}

func execlist(tx migration.LimitedTx, stms []string) error {
	var err error
	for _, s := range stms {
		_, err = tx.Exec(s)
		if err != nil {
			break
		}
	}
	return err
}

// qlVersion returns the schema version of the database. A database
// without a version table, or with an empty one, is at version 0.
func qlVersion(tx migration.LimitedTx) (int, error) {
	var version sql.NullInt64
	if err := tx.QueryRow(qlGetVersion).Scan(&version); err != nil {
		// no version table yet
		return 0, nil
	}
	return int(version.Int64), nil
}

// qlSetVersion records that the database is now at version.
func qlSetVersion(tx migration.LimitedTx, version int) error {
	if _, err := tx.Exec(qlCreateVersion); err != nil {
		return err
	}
	_, err := tx.Exec(qlInsertVersion, version)
	return err
}
