package storage

import (
	"errors"
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/raykavin/stardust/core"
)

// BuntState implements core.StateStore over BuntDB. The importer keeps its
// cursor and in-progress candles here so it can resume after a restart.
type BuntState struct {
	db *buntdb.DB
}

// StateFromMemory creates an in-memory state store, used by tests.
func StateFromMemory() (*BuntState, error) {
	return NewBuntState(":memory:")
}

// StateFromFile creates a file-backed state store.
func StateFromFile(file string) (*BuntState, error) {
	return NewBuntState(file)
}

// NewBuntState opens a BuntDB state store at the given source.
func NewBuntState(sourceFile string) (*BuntState, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	var config buntdb.Config
	if err := db.ReadConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to read buntdb config: %w", err)
	}
	config.SyncPolicy = buntdb.Always
	if err := db.SetConfig(config); err != nil {
		return nil, fmt.Errorf("failed to set buntdb config: %w", err)
	}

	return &BuntState{db: db}, nil
}

// Get returns the value stored under key.
func (b *BuntState) Get(key string) (string, error) {
	var value string
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", core.ErrStateKeyNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, nil
}

// Set stores one key.
func (b *BuntState) Set(key, value string) error {
	return b.SetAll(map[string]string{key: value})
}

// SetAll stores every pair in a single transaction.
func (b *BuntState) SetAll(values map[string]string) error {
	err := b.db.Update(func(tx *buntdb.Tx) error {
		for key, value := range values {
			if _, _, err := tx.Set(key, value, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// Close closes the state store.
func (b *BuntState) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
