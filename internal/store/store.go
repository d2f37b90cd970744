// Package store persists fetched pages in a LevelDB database so repeated
// CLI runs do not hit Wikipedia again.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// record wraps a stored value with the time it was written.
type record struct {
	StoredAt time.Time       `json:"stored_at"`
	Data     json.RawMessage `json:"data"`
}

// Store is a TTL-aware JSON key/value store on LevelDB.
type Store struct {
	db     *leveldb.DB
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the database at path. Entries older than ttl read as misses;
// a ttl of zero keeps entries forever.
func Open(path string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	const op = "store.Open"

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{db: db, ttl: ttl, logger: logger, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Load decodes the value stored under key into v.
// It reports false when the key is absent or expired.
func (s *Store) Load(key string, v any) (bool, error) {
	const op = "store.Load"

	raw, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return false, fmt.Errorf("%s: corrupt record %q: %w", op, key, err)
	}
	if s.expired(rec) {
		return false, nil
	}
	if err := json.Unmarshal(rec.Data, v); err != nil {
		return false, fmt.Errorf("%s: decode %q: %w", op, key, err)
	}
	return true, nil
}

// Save stores v under key as JSON.
func (s *Store) Save(key string, v any) error {
	const op = "store.Save"

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: encode %q: %w", op, key, err)
	}
	raw, err := json.Marshal(record{StoredAt: s.now(), Data: data})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.db.Put([]byte(key), raw, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Prune deletes expired entries whose key starts with prefix ("" for all)
// and returns how many were removed.
func (s *Store) Prune(prefix string) (int, error) {
	const op = "store.Prune"

	var rng *util.Range
	if prefix != "" {
		rng = util.BytesPrefix([]byte(prefix))
	}

	iter := s.db.NewIterator(rng, nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil || s.expired(rec) {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if batch.Len() == 0 {
		return 0, nil
	}
	if err := s.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Debug("pruned page store", "prefix", prefix, "removed", batch.Len())
	return batch.Len(), nil
}

// Delete removes every entry whose key starts with prefix, expired or not,
// and returns how many were removed.
func (s *Store) Delete(prefix string) (int, error) {
	const op = "store.Delete"

	if prefix == "" {
		return 0, fmt.Errorf("%s: empty prefix", op)
	}

	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if batch.Len() == 0 {
		return 0, nil
	}
	if err := s.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return batch.Len(), nil
}

func (s *Store) expired(rec record) bool {
	return s.ttl > 0 && s.now().Sub(rec.StoredAt) > s.ttl
}
