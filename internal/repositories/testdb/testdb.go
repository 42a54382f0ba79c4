// Package testdb opens a throwaway sqlite database with the service schema
// for service-level tests. Production runs against MySQL through sqlconnect;
// the SQL in the services sticks to the portable subset shared by both.
package testdb

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE users (
	id            INTEGER PRIMARY KEY,
	clerk_id      TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	first_name    TEXT NOT NULL DEFAULT '',
	last_name     TEXT NOT NULL DEFAULT '',
	cardholder_id TEXT
);

CREATE TABLE subscription_groups (
	id                INTEGER PRIMARY KEY,
	name              TEXT NOT NULL,
	subscription_name TEXT NOT NULL DEFAULT '',
	amount            TEXT NOT NULL,
	total_mem         INTEGER NOT NULL DEFAULT 0,
	amount_each       TEXT NOT NULL DEFAULT '0',
	virtual_card_id   TEXT,
	created_at        TEXT
);

CREATE TABLE group_members (
	id        INTEGER PRIMARY KEY,
	group_id  INTEGER NOT NULL,
	user_id   INTEGER NOT NULL,
	user_role TEXT NOT NULL,
	joined_at TEXT,
	UNIQUE (group_id, user_id)
);

CREATE TABLE confirm_shares (
	id         INTEGER PRIMARY KEY,
	group_id   INTEGER NOT NULL,
	round_id   TEXT NOT NULL,
	user_id    INTEGER NOT NULL,
	status     INTEGER NOT NULL DEFAULT 0,
	created_at TEXT,
	UNIQUE (group_id, round_id, user_id)
);
`

// Open creates a temp sqlite database with the schema applied. The caller
// is responsible for invoking the returned cleanup.
func Open() (*sql.DB, func(), error) {
	tmp, err := os.CreateTemp("", "fairshare-test-*.db")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp db file: %w", err)
	}
	tmp.Close()

	db, err := sql.Open("sqlite", tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return nil, nil, fmt.Errorf("failed to open test db: %w", err)
	}
	// sqlite allows one writer; funnel everything through one connection so
	// concurrent service calls queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		os.Remove(tmp.Name())
		return nil, nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(tmp.Name())
	}
	return db, cleanup, nil
}
