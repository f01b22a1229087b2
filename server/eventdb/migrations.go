package eventdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE event(
			id INTEGER PRIMARY KEY,
			time INT NOT NULL,
			class INT NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			length INT NOT NULL,
			detail TEXT
		);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE INDEX idx_event_time ON event(time);
	`))

	return migs
}
