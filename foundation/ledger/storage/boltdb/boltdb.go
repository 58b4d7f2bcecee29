// Package boltdb implements the database.Storage interface on top of a
// bbolt key-value store. Each block is stored under its big-endian block
// number and a head pointer tracks the current chain tip. Block and head
// are written in a single transaction so an append is atomic with respect
// to a process crash.
package boltdb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/corechain/ledger/foundation/ledger/database"
	"go.etcd.io/bbolt"
)

var (
	blocksBucket = []byte("blocks")
	chainBucket  = []byte("chain")
	headKey      = []byte("head")
)

// Boltdb represents the bbolt backed implementation of the chain store.
type Boltdb struct {
	db *bbolt.DB
}

// New opens or creates the chain store at the specified path. A store that
// is locked by another process fails here with an error rather than
// blocking forever.
func New(dbPath string) (*Boltdb, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening chain store %q: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(blocksBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(chainBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Boltdb{db: db}, nil
}

// Close releases the underlying bbolt file.
func (b *Boltdb) Close() error {
	return b.db.Close()
}

// Write stores the block under its number and advances the head pointer in
// the same transaction.
func (b *Boltdb) Write(blockData database.BlockData) error {
	data, err := json.Marshal(blockData)
	if err != nil {
		return err
	}

	key := blockKey(blockData.Header.Number)

	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(blocksBucket).Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(chainBucket).Put(headKey, key)
	})
}

// GetBlock returns the contents of the specified block by number.
func (b *Boltdb) GetBlock(num uint64) (database.BlockData, error) {
	var blockData database.BlockData

	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(blocksBucket).Get(blockKey(num))
		if data == nil {
			return database.ErrNotFound
		}
		return json.Unmarshal(data, &blockData)
	})
	if err != nil {
		return database.BlockData{}, err
	}

	return blockData, nil
}

// Head returns the block number of the chain tip. When the head pointer is
// missing or points at a block that does not exist, the head is re-derived
// from the last stored block. An empty chain reports zero.
func (b *Boltdb) Head() (uint64, error) {
	var head uint64

	err := b.db.View(func(tx *bbolt.Tx) error {
		blocks := tx.Bucket(blocksBucket)

		if key := tx.Bucket(chainBucket).Get(headKey); key != nil {
			if blocks.Get(key) != nil {
				head = binary.BigEndian.Uint64(key)
				return nil
			}
		}

		// Head pointer missing or stale. Recover from the highest key.
		if key, _ := blocks.Cursor().Last(); key != nil {
			head = binary.BigEndian.Uint64(key)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return head, nil
}

// ForEach returns an iterator to walk through all the blocks starting with
// block number 1.
func (b *Boltdb) ForEach() database.Iterator {
	return &iterator{store: b}
}

// Reset clears the chain store back to empty.
func (b *Boltdb) Reset() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{blocksBucket, chainBucket} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// blockKey forms the 8 byte big-endian key for the specified block number.
// Big-endian keeps the bucket ordered by block number.
func blockKey(num uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, num)
	return key
}

// =============================================================================

// iterator walks the stored blocks in block number order. This implements
// the database.Iterator interface.
type iterator struct {
	store   *Boltdb
	current uint64
	eoc     bool
}

// Next retrieves the next block from the store.
func (it *iterator) Next() (database.BlockData, error) {
	if it.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	it.current++
	blockData, err := it.store.GetBlock(it.current)
	if errors.Is(err, database.ErrNotFound) {
		it.eoc = true
	}

	return blockData, err
}

// Done returns the end of chain value.
func (it *iterator) Done() bool {
	return it.eoc
}
