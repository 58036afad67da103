package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
)

const lastSeenBucket = "last_seen"

// boltStore implements Store backed by BoltDB. Keys are source ids, values
// the raw fingerprint bytes. bbolt fsyncs on commit, so a returned nil from
// SetLast means the record survives a process restart.
type boltStore struct {
	db *bolt.DB
}

// Open initializes a BoltDB-backed Store at the given path.
func Open(path string) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state store requires a path")
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(lastSeenBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// GetLast reads the stored fingerprint for the source.
func (b *boltStore) GetLast(source domain.SourceID) (string, error) {
	if b == nil || b.db == nil {
		return "", fmt.Errorf("%w: store is closed", ErrUnavailable)
	}

	var fingerprint string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(lastSeenBucket))
		if bucket == nil {
			return fmt.Errorf("last_seen bucket missing")
		}
		if value := bucket.Get([]byte(source)); value != nil {
			fingerprint = string(value)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: read last fingerprint for %s: %w", ErrUnavailable, source, err)
	}
	return fingerprint, nil
}

// SetLast records the fingerprint for the source.
func (b *boltStore) SetLast(source domain.SourceID, fingerprint string) error {
	if b == nil || b.db == nil {
		return fmt.Errorf("%w: store is closed", ErrUnavailable)
	}
	if strings.TrimSpace(fingerprint) == "" {
		return fmt.Errorf("fingerprint must not be empty")
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(lastSeenBucket))
		if bucket == nil {
			return fmt.Errorf("last_seen bucket missing")
		}
		return bucket.Put([]byte(source), []byte(fingerprint))
	})
	if err != nil {
		return fmt.Errorf("%w: write last fingerprint for %s: %w", ErrUnavailable, source, err)
	}
	return nil
}
