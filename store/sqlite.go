package store

import (
	"context"
	"database/sql"
	"fmt"

	// registers the "sqlite3" driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/atlasdatatech/wfsd/internal/log"
)

// DB is the embedded relational store (§4.C, §6). Connection opens with
// write-ahead logging and referential-integrity enforcement on, so layer
// deletion cascades to features and symbology rules.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed without blocking the writer and vice versa
	// (§5); each request pulls its own pooled connection.
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS layers (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	name             TEXT    NOT NULL UNIQUE,
	title            TEXT    NOT NULL DEFAULT '',
	description      TEXT    NOT NULL DEFAULT '',
	geometry_type    TEXT    NOT NULL DEFAULT '',
	srid             INTEGER NOT NULL DEFAULT 4326,
	bbox_minx        REAL,
	bbox_miny        REAL,
	bbox_maxx        REAL,
	bbox_maxy        REAL,
	feature_count    INTEGER NOT NULL DEFAULT 0,
	attribute_schema TEXT    NOT NULL DEFAULT '{}',
	created_at       TIMESTAMP NOT NULL DEFAULT (datetime('now')),
	updated_at       TIMESTAMP NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS features (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	layer_id   INTEGER NOT NULL REFERENCES layers(id) ON DELETE CASCADE,
	fid        TEXT    NOT NULL,
	geometry   BLOB,
	properties TEXT    NOT NULL DEFAULT '{}',
	bbox_minx  REAL,
	bbox_miny  REAL,
	bbox_maxx  REAL,
	bbox_maxy  REAL,
	UNIQUE(layer_id, fid)
);

CREATE INDEX IF NOT EXISTS idx_features_layer
	ON features(layer_id);
CREATE INDEX IF NOT EXISTS idx_features_bbox
	ON features(layer_id, bbox_minx, bbox_miny, bbox_maxx, bbox_maxy);

CREATE TABLE IF NOT EXISTS symbology_rules (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	layer_id        INTEGER NOT NULL REFERENCES layers(id) ON DELETE CASCADE,
	rule_order      INTEGER NOT NULL DEFAULT 0,
	label           TEXT    NOT NULL DEFAULT '',
	filter_field    TEXT,
	filter_operator TEXT    NOT NULL DEFAULT 'eq',
	filter_value    TEXT,
	fill_color      TEXT    NOT NULL DEFAULT '#3388ff',
	fill_opacity    REAL    NOT NULL DEFAULT 0.6,
	stroke_color    TEXT    NOT NULL DEFAULT '#ffffff',
	stroke_width    REAL    NOT NULL DEFAULT 1.5,
	point_radius    REAL    NOT NULL DEFAULT 6.0,
	is_default      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_rules_layer
	ON symbology_rules(layer_id, rule_order);
`

func (db *DB) migrate() error {
	log.Debug("applying store schema")
	_, err := db.conn.Exec(schemaSQL)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting read helpers
// run either standalone or inside a unit of work.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
