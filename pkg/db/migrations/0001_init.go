package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

var initStatements = []string{
	`CREATE TABLE IF NOT EXISTS laptops (
		laptop_serial  TEXT PRIMARY KEY,
		hostname       TEXT NOT NULL,
		ip_address     TEXT NOT NULL,
		logged_in_user TEXT,
		last_seen_utc  TEXT NOT NULL,
		drives_json    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS checkins (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		laptop_serial  TEXT NOT NULL,
		hostname       TEXT NOT NULL,
		ip_address     TEXT NOT NULL,
		logged_in_user TEXT,
		timestamp_utc  TEXT NOT NULL,
		drives_json    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_checkins_laptop_serial ON checkins(laptop_serial)`,
	`CREATE INDEX IF NOT EXISTS idx_checkins_timestamp ON checkins(timestamp_utc)`,
	`CREATE INDEX IF NOT EXISTS idx_laptops_last_seen ON laptops(last_seen_utc)`,
}

var dropStatements = []string{
	`DROP INDEX IF EXISTS idx_laptops_last_seen`,
	`DROP INDEX IF EXISTS idx_checkins_timestamp`,
	`DROP INDEX IF EXISTS idx_checkins_laptop_serial`,
	`DROP TABLE IF EXISTS checkins`,
	`DROP TABLE IF EXISTS laptops`,
}

func init() {
	register(goose.NewGoMigration(1,
		&goose.GoFunc{RunTx: upInit},
		&goose.GoFunc{RunTx: downInit},
	))
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, initStatements)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, dropStatements)
}
