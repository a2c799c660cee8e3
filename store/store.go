// Package store is a persistent content-addressed noun store backed by
// SQLite. It holds encoded nouns in two tables mirroring the evaluator's
// memo tables, so a host can hand the evaluator durable storage behind
// opcodes 11-14, and the CLI can park nouns on disk between runs.
//
// The evaluator's own in-memory tables stay the default; opting into this
// store is a host decision.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/chazu/norn/vm"
)

// Store is a SQLite-backed vm.Memo. Safe for concurrent use.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS hash_nouns (
			hash BLOB PRIMARY KEY,
			data BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS key_nouns (
			key  BLOB PRIMARY KEY,
			data BLOB NOT NULL
		)`,
	} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreHash saves n in encoded form under the given content hash.
func (s *Store) StoreHash(h [vm.HashSize]byte, n *vm.Noun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO hash_nouns (hash, data) VALUES (?, ?)",
		h[:], vm.Encode(n),
	)
	if err != nil {
		return fmt.Errorf("storing by hash: %w", err)
	}
	return nil
}

// LoadHash retrieves the noun stored under h.
func (s *Store) LoadHash(h [vm.HashSize]byte) (*vm.Noun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow("SELECT data FROM hash_nouns WHERE hash = ?", h[:]).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading by hash: %w", err)
	}

	n, err := vm.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt stored noun: %w", err)
	}
	return n, true, nil
}

// StoreKey saves value under key. Keys compare by their encoding, which
// agrees with structural equality.
func (s *Store) StoreKey(key, value *vm.Noun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO key_nouns (key, data) VALUES (?, ?)",
		vm.Encode(key), vm.Encode(value),
	)
	if err != nil {
		return fmt.Errorf("storing by key: %w", err)
	}
	return nil
}

// LoadKey retrieves the noun stored under key.
func (s *Store) LoadKey(key *vm.Noun) (*vm.Noun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow("SELECT data FROM key_nouns WHERE key = ?", vm.Encode(key)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading by key: %w", err)
	}

	n, err := vm.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt stored noun: %w", err)
	}
	return n, true, nil
}

// Put stores n under its own content hash and returns the hash.
func (s *Store) Put(n *vm.Noun) ([vm.HashSize]byte, error) {
	h := n.ContentHash()
	if err := s.StoreHash(h, n); err != nil {
		return h, err
	}
	return h, nil
}

// Get retrieves the noun stored under h, if any.
func (s *Store) Get(h [vm.HashSize]byte) (*vm.Noun, bool, error) {
	return s.LoadHash(h)
}
