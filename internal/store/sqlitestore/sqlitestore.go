// Package sqlitestore is a local file sink for runs without a MongoDB server.
package sqlitestore

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"tweetharvest/internal/model"
	"tweetharvest/internal/store"
)

const backend = "sqlite"

// DB wraps a SQLite database holding one row per record.
type DB struct{ sql *sql.DB }

// Open opens or creates the database at path and creates the tweets table.
func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases alive across calls
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close(context.Context) error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS tweets (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  query TEXT NOT NULL,
	  text TEXT NOT NULL,
	  language TEXT,
	  date INTEGER NOT NULL,
	  username TEXT,
	  user_followers INTEGER,
	  user_location TEXT,
	  retweets INTEGER,
	  likes INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_tweets_query ON tweets(query);
	`)
	return err
}

// Insert appends rec. Duplicates are kept.
func (d *DB) Insert(ctx context.Context, rec model.Record) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO tweets(query, text, language, date, username, user_followers, user_location, retweets, likes) VALUES(?,?,?,?,?,?,?,?,?)`,
		rec.Query, rec.Text, rec.Language, rec.Date.UnixMilli(), rec.Username, rec.UserFollowers, rec.UserLocation, rec.Retweets, rec.Likes)
	return store.Wrap(backend, err)
}

// Count returns the number of rows for query, or all rows if query is empty.
func (d *DB) Count(ctx context.Context, query string) (int, error) {
	var n int
	var err error
	if query == "" {
		err = d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM tweets`).Scan(&n)
	} else {
		err = d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM tweets WHERE query=?`, query).Scan(&n)
	}
	return n, err
}

// ByQuery returns stored records for query in insertion order.
func (d *DB) ByQuery(ctx context.Context, query string) ([]model.Record, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT query, text, language, date, username, user_followers, user_location, retweets, likes FROM tweets WHERE query=? ORDER BY id`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Record
	for rows.Next() {
		var r model.Record
		var ms int64
		if err := rows.Scan(&r.Query, &r.Text, &r.Language, &ms, &r.Username, &r.UserFollowers, &r.UserLocation, &r.Retweets, &r.Likes); err != nil {
			return nil, err
		}
		r.Date = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
