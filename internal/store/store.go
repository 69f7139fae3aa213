// Package store persists the kill record. The whole state lives under one
// fixed key as a single document; writes are last-write-wins, which is the
// consistency model shared by every process holding an engine instance.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const stateKey = "respawn:state"

// State is the persisted record shape. Kills maps mob id to an ISO
// timestamp string; the engine's LoadState/SerializeState round-trip it
// exactly.
type State struct {
	Kills     map[string]string `json:"kills"`
	UpdatedAt string            `json:"updatedAt"`
}

type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Load reads the persisted state. A missing record is an empty state, not an
// error.
func (s *Store) Load() (State, error) {
	st := State{Kills: map[string]string{}}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})
	if err != nil {
		return State{}, fmt.Errorf("store: load: %w", err)
	}
	if st.Kills == nil {
		st.Kills = map[string]string{}
	}
	return st, nil
}

// Save overwrites the persisted state, stamping UpdatedAt.
func (s *Store) Save(kills map[string]string) error {
	st := State{Kills: kills, UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stateKey), data)
	})
	if err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	return nil
}
