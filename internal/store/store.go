// Package store keeps JSON values in a key-value datastore.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	levelds "github.com/ipfs/go-ds-leveldb"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("store")

// Well-known keys.
const (
	KeyVault              = "vault"
	KeyLastAccountIndex   = "last_account_index"
	KeyActiveAccount      = "active_account"
	KeyAutoLockMinutes    = "auto_lock_timer_minutes"
	KeyTransactions       = "transactions"
	KeyInscriptions       = "inscription-key"
	KeyInscriptionImageNo = "inscription-image-number-key"
	KeySessionVault       = "session-vault"
	KeyNetwork            = "xdag-env"
)

// Store is a durable string-keyed JSON store.
type Store interface {
	// Get decodes the value under key into out and reports whether it existed.
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// DatastoreStore adapts a go-datastore backend.
type DatastoreStore struct {
	ds ds.Datastore
}

var _ Store = (*DatastoreStore)(nil)

// New wraps an existing datastore.
func New(d ds.Datastore) *DatastoreStore {
	return &DatastoreStore{ds: d}
}

// NewMemory returns a store over a thread-safe in-memory map.
func NewMemory() *DatastoreStore {
	return New(dssync.MutexWrap(ds.NewMapDatastore()))
}

// OpenLevelDB opens (or creates) a LevelDB-backed store at dir.
func OpenLevelDB(dir string) (*DatastoreStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	d, err := levelds.NewDatastore(dir, &levelds.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb store: %w", err)
	}
	log.Infow("opened store", "path", dir)
	return New(d), nil
}

func (s *DatastoreStore) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.ds.Get(ctx, ds.NewKey(key))
	if errors.Is(err, ds.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *DatastoreStore) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.ds.Put(ctx, ds.NewKey(key), raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *DatastoreStore) Delete(ctx context.Context, key string) error {
	if err := s.ds.Delete(ctx, ds.NewKey(key)); err != nil && !errors.Is(err, ds.ErrNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *DatastoreStore) Close() error {
	return s.ds.Close()
}
