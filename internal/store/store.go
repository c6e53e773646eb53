// SPDX-License-Identifier: MIT

// Package store provides SQLite persistence for the catalog.
//
// The database is seeded by offline ingestion jobs and kept warm by the
// backfill scheduler. The request path only ever reads; writes happen in
// backfill tasks, batched into a single transaction per task.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// MediaType selects the movies or series side of a dual-keyed table.
type MediaType string

const (
	Movie MediaType = "movie"
	TV    MediaType = "tv"
)

// Valid reports whether m is one of the two known media types.
func (m MediaType) Valid() bool { return m == Movie || m == TV }

// Capabilities records which ingestion-owned tables exist in the opened
// database. The normalized genre tables are optional: older catalogs carry
// only the comma-joined genres label column and queries fall back to
// substring matching.
type Capabilities struct {
	GenreEdges bool // genres + title_genres present
}

// Store wraps the catalog database.
type Store struct {
	db   *sql.DB
	caps Capabilities
}

// Open opens (creating if necessary) the catalog database and runs
// migrations for the tables the backfill path owns. busy_timeout lets
// concurrent writers queue instead of failing.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := s.probe(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("probe schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Caps returns the capability flags probed at open.
func (s *Store) Caps() Capabilities { return s.caps }

// migrate creates the tables the request path and backfill scheduler write
// to. The normalized genre tables are deliberately absent: they belong to
// the ingestion jobs, and creating them empty would shadow the genres label
// fallback.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS movies (
		id INTEGER PRIMARY KEY,
		title TEXT,
		overview TEXT,
		vote_average REAL,
		vote_count INTEGER,
		release_date TEXT,
		popularity REAL,
		poster_path TEXT,
		backdrop_path TEXT,
		logos_json TEXT,
		genres TEXT
	);

	CREATE TABLE IF NOT EXISTS series (
		id INTEGER PRIMARY KEY,
		name TEXT,
		overview TEXT,
		vote_average REAL,
		vote_count INTEGER,
		first_air_date TEXT,
		popularity REAL,
		poster_path TEXT,
		backdrop_path TEXT,
		logos_json TEXT,
		genres TEXT,
		networks TEXT,
		number_of_seasons INTEGER,
		number_of_episodes INTEGER
	);

	CREATE TABLE IF NOT EXISTS title_translations (
		media_type TEXT NOT NULL,
		tmdb_id INTEGER NOT NULL,
		iso_639_1 TEXT NOT NULL,
		iso_3166_1 TEXT NOT NULL,
		title TEXT,
		overview TEXT,
		tagline TEXT,
		homepage TEXT,
		PRIMARY KEY (media_type, tmdb_id, iso_639_1, iso_3166_1)
	);

	CREATE TABLE IF NOT EXISTS title_videos (
		media_type TEXT NOT NULL,
		tmdb_id INTEGER NOT NULL,
		video_id TEXT,
		key TEXT,
		site TEXT,
		name TEXT,
		type TEXT,
		official INTEGER,
		published_at TEXT,
		iso_639_1 TEXT,
		iso_3166_1 TEXT,
		size INTEGER,
		PRIMARY KEY (media_type, tmdb_id)
	);

	CREATE TABLE IF NOT EXISTS title_cast (
		media_type TEXT NOT NULL,
		tmdb_id INTEGER NOT NULL,
		person_id INTEGER NOT NULL,
		credit_id TEXT NOT NULL,
		cast_id INTEGER,
		name TEXT,
		character TEXT,
		ord INTEGER,
		profile_path TEXT,
		PRIMARY KEY (media_type, tmdb_id, credit_id)
	);

	CREATE TABLE IF NOT EXISTS tv_seasons (
		series_id INTEGER NOT NULL,
		season_number INTEGER NOT NULL,
		season_id INTEGER,
		name TEXT,
		overview TEXT,
		air_date TEXT,
		poster_path TEXT,
		episode_count INTEGER,
		PRIMARY KEY (series_id, season_number)
	);

	CREATE TABLE IF NOT EXISTS tv_episodes (
		series_id INTEGER NOT NULL,
		season_number INTEGER NOT NULL,
		episode_number INTEGER NOT NULL,
		episode_id INTEGER,
		name TEXT,
		overview TEXT,
		air_date TEXT,
		runtime INTEGER,
		still_path TEXT,
		vote_average REAL,
		vote_count INTEGER,
		PRIMARY KEY (series_id, season_number, episode_number)
	);

	CREATE TABLE IF NOT EXISTS backfill_done (
		media_type TEXT NOT NULL,
		tmdb_id INTEGER NOT NULL,
		part TEXT NOT NULL,
		done_at INTEGER NOT NULL,
		PRIMARY KEY (media_type, tmdb_id, part)
	);

	CREATE TABLE IF NOT EXISTS season_fetch_done (
		series_id INTEGER NOT NULL,
		season_number INTEGER NOT NULL,
		done_at INTEGER NOT NULL,
		PRIMARY KEY (series_id, season_number)
	);

	CREATE INDEX IF NOT EXISTS idx_movies_popularity ON movies(popularity);
	CREATE INDEX IF NOT EXISTS idx_series_popularity ON series(popularity);
	CREATE INDEX IF NOT EXISTS idx_translations_lang ON title_translations(media_type, tmdb_id, iso_639_1);
	CREATE INDEX IF NOT EXISTS idx_episodes_series ON tv_episodes(series_id, season_number);
	`
	_, err := s.db.Exec(schema)
	return err
}

// probe records which optional ingestion-owned tables exist.
func (s *Store) probe() error {
	has := func(name string) (bool, error) {
		var one int
		err := s.db.QueryRow(`SELECT 1 FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&one)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	genres, err := has("genres")
	if err != nil {
		return err
	}
	edges, err := has("title_genres")
	if err != nil {
		return err
	}
	s.caps.GenreEdges = genres && edges
	return nil
}

// Reader pins a single connection for the duration of one request.
// Callers must Close it.
func (s *Store) Reader(ctx context.Context) (*Reader, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire read connection: %w", err)
	}
	return &Reader{conn: conn, caps: s.caps}, nil
}

// Writer opens a transaction for a backfill task. All upserts within the
// task commit atomically.
func (s *Store) Writer(ctx context.Context) (*Writer, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire write connection: %w", err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Writer{conn: conn, tx: tx}, nil
}

// Reader serves the read path.
type Reader struct {
	conn *sql.Conn
	caps Capabilities
}

// Close releases the pinned connection.
func (r *Reader) Close() error { return r.conn.Close() }

// Caps returns the capability flags of the underlying store.
func (r *Reader) Caps() Capabilities { return r.caps }

// Writer batches backfill upserts into one transaction.
type Writer struct {
	conn *sql.Conn
	tx   *sql.Tx
}

// Commit commits the batch and releases the connection.
func (w *Writer) Commit() error {
	err := w.tx.Commit()
	_ = w.conn.Close()
	return err
}

// Rollback abandons the batch and releases the connection.
func (w *Writer) Rollback() {
	_ = w.tx.Rollback()
	_ = w.conn.Close()
}
