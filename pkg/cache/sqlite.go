package cache

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/marketsearch/pkg/log"
	"github.com/rubiojr/marketsearch/pkg/normalize"
)

// DBFile is the database file name created inside the cache directory.
const DBFile = "search-cache.db"

// SQLite is a Store persisted to disk, so short-lived CLI invocations share
// the same cache window. Payloads are zstd-compressed JSON.
type SQLite struct {
	db      *sql.DB
	opts    Options
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	logger  *log.Logger
	counters
}

// OpenSQLite opens (creating if needed) the cache database in dir.
func OpenSQLite(dir string, opts Options) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS search_cache (
		key         TEXT PRIMARY KEY,
		payload     BLOB NOT NULL,
		inserted_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &SQLite{
		db:      db,
		opts:    opts.withDefaults(),
		encoder: encoder,
		decoder: decoder,
		logger:  log.ForService("cache"),
	}, nil
}

func (s *SQLite) Get(key string) ([]normalize.Result, bool) {
	var payload []byte
	var insertedAt int64
	err := s.db.QueryRow(`SELECT payload, inserted_at FROM search_cache WHERE key = ?`, key).Scan(&payload, &insertedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warnf("reading %q: %v", key, err)
		}
		s.misses.Add(1)
		return nil, false
	}

	if s.opts.Now().UnixMilli()-insertedAt >= s.opts.TTL.Milliseconds() {
		if _, err := s.db.Exec(`DELETE FROM search_cache WHERE key = ?`, key); err != nil {
			s.logger.Warnf("evicting %q: %v", key, err)
		}
		s.expired.Add(1)
		s.misses.Add(1)
		return nil, false
	}

	raw, err := s.decoder.DecodeAll(payload, nil)
	if err != nil {
		s.logger.Warnf("decompressing %q: %v", key, err)
		s.misses.Add(1)
		return nil, false
	}
	var items []normalize.Result
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		s.logger.Warnf("decoding %q: %v", key, err)
		s.misses.Add(1)
		return nil, false
	}
	if items == nil {
		items = []normalize.Result{}
	}
	s.hits.Add(1)
	return items, true
}

func (s *SQLite) Set(key string, items []normalize.Result) {
	if items == nil {
		items = []normalize.Result{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		s.logger.Warnf("encoding %q: %v", key, err)
		return
	}
	payload := s.encoder.EncodeAll(raw, nil)

	_, err = s.db.Exec(`INSERT INTO search_cache (key, payload, inserted_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, inserted_at = excluded.inserted_at`,
		key, payload, s.opts.Now().UnixMilli())
	if err != nil {
		s.logger.Warnf("writing %q: %v", key, err)
		return
	}
	s.writes.Add(1)
}

func (s *SQLite) Stats() Stats {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM search_cache`).Scan(&n); err != nil {
		s.logger.Warnf("counting entries: %v", err)
	}
	return s.counters.stats(n, s.opts.TTL, "sqlite")
}

func (s *SQLite) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM search_cache`); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	s.decoder.Close()
	if err := s.encoder.Close(); err != nil {
		s.db.Close()
		return fmt.Errorf("closing encoder: %w", err)
	}
	return s.db.Close()
}
