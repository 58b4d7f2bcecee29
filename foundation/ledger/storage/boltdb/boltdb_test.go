package boltdb_test

import (
	"path/filepath"
	"testing"

	"github.com/corechain/ledger/foundation/ledger/database"
	"github.com/corechain/ledger/foundation/ledger/storage/boltdb"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func blockData(num uint64, prevHash string) database.BlockData {
	return database.BlockData{
		Hash: "0x00000000000000000000000000000000000000000000000000000000000000aa",
		Header: database.BlockHeader{
			Number:        num,
			PrevBlockHash: prevHash,
			TimeStamp:     1_700_000_000_000 + num,
			Difficulty:    1,
			Nonce:         num * 7,
		},
	}
}

func TestWriteGetRoundTrip(t *testing.T) {
	stor, err := boltdb.New(filepath.Join(t.TempDir(), "chain.db"))
	require.NoError(t, err)
	defer stor.Close()

	bd := blockData(1, "0x0")
	require.NoError(t, stor.Write(bd))

	got, err := stor.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, bd.Header.Number, got.Header.Number)
	require.Equal(t, bd.Header.Nonce, got.Header.Nonce)
	require.Equal(t, bd.Hash, got.Hash)

	_, err = stor.GetBlock(2)
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestHead(t *testing.T) {
	stor, err := boltdb.New(filepath.Join(t.TempDir(), "chain.db"))
	require.NoError(t, err)
	defer stor.Close()

	head, err := stor.Head()
	require.NoError(t, err)
	require.Zero(t, head, "an empty chain reports head zero")

	require.NoError(t, stor.Write(blockData(1, "0x0")))
	require.NoError(t, stor.Write(blockData(2, "0xaa")))

	head, err = stor.Head()
	require.NoError(t, err)
	require.Equal(t, uint64(2), head)
}

func TestHeadRecovery(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chain.db")

	stor, err := boltdb.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, stor.Write(blockData(1, "0x0")))
	require.NoError(t, stor.Write(blockData(2, "0xaa")))
	require.NoError(t, stor.Close())

	// Wipe the head pointer behind the store's back.
	raw, err := bbolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	err = raw.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("chain")).Delete([]byte("head"))
	})
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	stor, err = boltdb.New(dbPath)
	require.NoError(t, err)
	defer stor.Close()

	head, err := stor.Head()
	require.NoError(t, err)
	require.Equal(t, uint64(2), head, "head must be re-derived from the last stored block")
}

func TestIterator(t *testing.T) {
	stor, err := boltdb.New(filepath.Join(t.TempDir(), "chain.db"))
	require.NoError(t, err)
	defer stor.Close()

	require.NoError(t, stor.Write(blockData(1, "0x0")))
	require.NoError(t, stor.Write(blockData(2, "0xaa")))
	require.NoError(t, stor.Write(blockData(3, "0xaa")))

	var nums []uint64
	iter := stor.ForEach()
	for bd, err := iter.Next(); !iter.Done(); bd, err = iter.Next() {
		require.NoError(t, err)
		nums = append(nums, bd.Header.Number)
	}

	require.Equal(t, []uint64{1, 2, 3}, nums)
}

func TestReset(t *testing.T) {
	stor, err := boltdb.New(filepath.Join(t.TempDir(), "chain.db"))
	require.NoError(t, err)
	defer stor.Close()

	require.NoError(t, stor.Write(blockData(1, "0x0")))
	require.NoError(t, stor.Reset())

	head, err := stor.Head()
	require.NoError(t, err)
	require.Zero(t, head)

	_, err = stor.GetBlock(1)
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestPersistAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chain.db")

	stor, err := boltdb.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, stor.Write(blockData(1, "0x0")))
	require.NoError(t, stor.Close())

	stor, err = boltdb.New(dbPath)
	require.NoError(t, err)
	defer stor.Close()

	got, err := stor.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Header.Number)
}
