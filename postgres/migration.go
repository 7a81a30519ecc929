// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  This runs "outside" the normal store flow, either at
// initial startup or from an external tool.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1-records",
			Up: []string{
				`CREATE TABLE ` + kindTable + `(
				    name VARCHAR PRIMARY KEY,
				    last_id BIGINT NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE ` + recordTable + `(
				    kind VARCHAR NOT NULL REFERENCES ` + kindTable + `(name) ON DELETE CASCADE,
				    id BIGINT NOT NULL,
				    data BYTEA NOT NULL,
				    modified TIMESTAMP WITH TIME ZONE NOT NULL,
				    PRIMARY KEY (kind, id)
				)`,
			},
			Down: []string{
				`DROP TABLE ` + recordTable,
				`DROP TABLE ` + kindTable,
			},
		},
	},
}

// Upgrade upgrades a database to the latest database schema version.
func Upgrade(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func Drop(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Down)
	return err
}
