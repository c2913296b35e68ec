package trackcache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"albumrank/aggregate"
)

// Store persists the cache in a local SQLite file so tracklists survive
// across pipeline runs.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the cache database and runs migrations.
func OpenStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// WAL keeps concurrent reads cheap
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infof("Track cache database initialized at %s", dbPath)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS album_tracks (
			album_id TEXT PRIMARY KEY,
			fetched_at TEXT NOT NULL,
			tracks TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_album_tracks_fetched_at ON album_tracks(fetched_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// Load reads every cached tracklist into the cache. Rows that fail to parse
// are skipped, not fatal; a stale or corrupt cache only costs refetches.
func (s *Store) Load(cache *Cache) error {
	rows, err := s.db.Query(`SELECT album_id, fetched_at, tracks FROM album_tracks`)
	if err != nil {
		return fmt.Errorf("failed to query track cache: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var albumID, fetchedAt, tracksJSON string
		if err := rows.Scan(&albumID, &fetchedAt, &tracksJSON); err != nil {
			return fmt.Errorf("failed to scan track cache row: %w", err)
		}

		fetched, err := time.Parse(time.RFC3339Nano, fetchedAt)
		if err != nil {
			log.Warnf("skipping cache row for %s: bad timestamp %q", albumID, fetchedAt)
			continue
		}
		var tracks []aggregate.TrackView
		if err := json.Unmarshal([]byte(tracksJSON), &tracks); err != nil {
			log.Warnf("skipping cache row for %s: %v", albumID, err)
			continue
		}

		cache.Put(albumID, Entry{FetchedAt: fetched, Tracks: tracks})
		loaded++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	log.Infof("Loaded %d cached album tracklists", loaded)
	return nil
}

// Save upserts every cache entry.
func (s *Store) Save(cache *Cache) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cache save: %w", err)
	}
	for albumID, entry := range cache.Snapshot() {
		tracksJSON, err := json.Marshal(entry.Tracks)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode tracks for %s: %w", albumID, err)
		}
		_, err = tx.Exec(
			`INSERT OR REPLACE INTO album_tracks (album_id, fetched_at, tracks) VALUES (?, ?, ?)`,
			albumID, entry.FetchedAt.UTC().Format(time.RFC3339Nano), string(tracksJSON),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save cache entry for %s: %w", albumID, err)
		}
	}
	return tx.Commit()
}

// LoadInto fills the cache from the store, degrading to an empty cache on any
// failure. A missing or unreadable cache must never abort the pipeline.
func LoadInto(cache *Cache, dbPath string) *Store {
	store, err := OpenStore(dbPath)
	if err != nil {
		log.Warnf("Track cache unavailable, starting empty: %v", err)
		return nil
	}
	if err := store.Load(cache); err != nil {
		log.Warnf("Track cache load failed, starting empty: %v", err)
	}
	return store
}
