// Package database handles all the lower level support for maintaining the
// chain on disk and the in memory view of accounts and balances.
package database

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"sync"

	"github.com/corechain/ledger/foundation/ledger/genesis"
)

// ErrNotFound is returned by storage implementations when the requested
// block does not exist.
var ErrNotFound = errors.New("block not found")

// =============================================================================

// Storage interface represents the behavior required to be implemented by
// any package providing support for storing and reading the chain.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by
// any package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// DatabaseIterator provides iteration over full blocks, converting each
// stored BlockData as it goes.
type DatabaseIterator struct {
	iterator Iterator
}

// Next retrieves the next block from storage.
func (di *DatabaseIterator) Next() (Block, error) {
	blockData, err := di.iterator.Next()
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// Done returns the end of chain value.
func (di *DatabaseIterator) Done() bool {
	return di.iterator.Done()
}

// =============================================================================

// Database manages the chain on top of a storage implementation and keeps
// the derived balance view for accounts that have transacted on the ledger.
// Balances are a cache; Replay remains the ground truth.
type Database struct {
	mu sync.RWMutex

	genesis     genesis.Genesis
	latestBlock Block
	accounts    map[AccountID]uint64
	confirmed   map[string]string // tx id -> content hash

	storage Storage
}

// New constructs a new database, seeds the genesis balances and replays any
// blocks found in storage, validating each one as it goes. A chain that
// fails replay is not trusted and the error is surfaced to the operator.
func New(genesis genesis.Genesis, storage Storage, ev func(v string, args ...any)) (*Database, error) {
	db := Database{
		genesis:   genesis,
		accounts:  make(map[AccountID]uint64),
		confirmed: make(map[string]string),
		storage:   storage,
	}

	if err := db.seedGenesisBalances(); err != nil {
		return nil, err
	}

	iter := db.storage.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := ToBlock(blockData)
		if err != nil {
			return nil, err
		}

		if err := block.ValidateBlock(db.latestBlock, ev); err != nil {
			return nil, err
		}

		if err := db.applyBlockLocked(block); err != nil {
			return nil, err
		}

		db.latestBlock = block
	}

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() {
	db.storage.Close()
}

// Reset re-initializes the database back to the genesis state.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.storage.Reset(); err != nil {
		return err
	}

	db.latestBlock = Block{}
	db.accounts = make(map[AccountID]uint64)
	db.confirmed = make(map[string]string)

	return db.seedGenesisBalances()
}

// seedGenesisBalances applies the opening balances from the genesis file.
func (db *Database) seedGenesisBalances() error {
	for accountStr, balance := range db.genesis.Balances {
		accountID, err := ToAccountID(accountStr)
		if err != nil {
			return err
		}
		db.accounts[accountID] = balance
	}

	return nil
}

// =============================================================================

// Balance returns the current balance for the specified account.
func (db *Database) Balance(accountID AccountID) uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.accounts[accountID]
}

// CopyAccounts makes a copy of the current accounts and their balances.
func (db *Database) CopyAccounts() map[AccountID]Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make(map[AccountID]Account, len(db.accounts))
	for accountID, balance := range db.accounts {
		accounts[accountID] = newAccount(accountID, balance)
	}

	return accounts
}

// HasTransaction reports whether a transaction with the specified id or
// content hash has already been confirmed on the chain.
func (db *Database) HasTransaction(id string, txHash string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if _, exists := db.confirmed[id]; exists {
		return true
	}

	for _, hash := range db.confirmed {
		if hash == txHash {
			return true
		}
	}

	return false
}

// LatestBlock returns the latest block. For an empty chain this is the
// genesis block value whose hash is the zero sentinel.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// =============================================================================

// ApplyBlock writes the block to storage and applies its transactions to
// the balance view. The balance changes are dry-run first so a block that
// overdraws an account is rejected before anything is persisted, and a
// failed storage write leaves the in memory view untouched. Either way the
// chain and the view never diverge.
func (db *Database) ApplyBlock(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.checkBlockLocked(block); err != nil {
		return err
	}

	if err := db.storage.Write(NewBlockData(block)); err != nil {
		return fmt.Errorf("writing block %d: %w", block.Header.Number, err)
	}

	if err := db.applyBlockLocked(block); err != nil {
		return err
	}

	db.latestBlock = block

	return nil
}

// checkBlockLocked dry-runs the balance changes for the block against a
// scratch overlay. The caller must hold the write lock.
func (db *Database) checkBlockLocked(block Block) error {
	overlay := make(map[AccountID]uint64)
	balance := func(accountID AccountID) uint64 {
		if bal, exists := overlay[accountID]; exists {
			return bal
		}
		return db.accounts[accountID]
	}

	for _, tx := range block.Trans.Values() {
		if tx.IsCoinbase() {
			overlay[tx.ToID] = balance(tx.ToID) + tx.Value
			continue
		}

		from := balance(tx.FromID)
		spend, carry := bits.Add64(tx.Value, tx.Fee, 0)
		if carry != 0 {
			return fmt.Errorf("transaction invalid, value plus fee overflows, account %s", tx.FromID)
		}

		if from < spend {
			return fmt.Errorf("transaction invalid, insufficient funds, account %s, bal %d, needed %d", tx.FromID, from, spend)
		}

		overlay[tx.FromID] = from - spend
		overlay[tx.ToID] = balance(tx.ToID) + tx.Value
	}

	return nil
}

// applyBlockLocked applies the balance changes for every transaction in the
// block. The caller must hold the write lock.
func (db *Database) applyBlockLocked(block Block) error {
	for _, tx := range block.Trans.Values() {
		if err := db.applyTransactionLocked(tx); err != nil {
			return err
		}
	}

	return nil
}

// applyTransactionLocked performs the business logic for applying a single
// transaction to the balance view.
func (db *Database) applyTransactionLocked(tx SignedTx) error {
	if tx.IsCoinbase() {
		db.accounts[tx.ToID] += tx.Value
		db.confirmed[tx.ID] = tx.TxHash
		return nil
	}

	from := db.accounts[tx.FromID]
	spend, carry := bits.Add64(tx.Value, tx.Fee, 0)
	if carry != 0 {
		return fmt.Errorf("transaction invalid, value plus fee overflows, account %s", tx.FromID)
	}

	if from < spend {
		return fmt.Errorf("transaction invalid, insufficient funds, account %s, bal %d, needed %d", tx.FromID, from, spend)
	}

	db.accounts[tx.FromID] = from - spend
	db.accounts[tx.ToID] += tx.Value
	db.confirmed[tx.ID] = tx.TxHash

	return nil
}

// =============================================================================

// Replay recomputes every balance from genesis by walking the stored chain.
// This is the ground truth the cached view must always agree with.
func (db *Database) Replay() (map[AccountID]uint64, error) {
	balances := make(map[AccountID]uint64)
	for accountStr, balance := range db.genesis.Balances {
		accountID, err := ToAccountID(accountStr)
		if err != nil {
			return nil, err
		}
		balances[accountID] = balance
	}

	iter := db.storage.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		for _, tx := range blockData.Trans {
			if tx.IsCoinbase() {
				balances[tx.ToID] += tx.Value
				continue
			}

			spend, carry := bits.Add64(tx.Value, tx.Fee, 0)
			if carry != 0 {
				return nil, fmt.Errorf("replay failed, spend overflow by %s in block %d", tx.FromID, blockData.Header.Number)
			}
			if balances[tx.FromID] < spend {
				return nil, fmt.Errorf("replay failed, overdraft by %s in block %d", tx.FromID, blockData.Header.Number)
			}

			balances[tx.FromID] -= spend
			balances[tx.ToID] += tx.Value
		}
	}

	return balances, nil
}

// AuditBalances compares the cached balance view against a full replay of
// the chain. Any disagreement means the cache and chain have diverged.
func (db *Database) AuditBalances() error {
	replayed, err := db.Replay()
	if err != nil {
		return err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	ids := make([]AccountID, 0, len(db.accounts))
	for accountID := range db.accounts {
		ids = append(ids, accountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, accountID := range ids {
		if replayed[accountID] != db.accounts[accountID] {
			return fmt.Errorf("balance cache diverged for %s, cached %d, replayed %d", accountID, db.accounts[accountID], replayed[accountID])
		}
	}

	return nil
}

// =============================================================================

// Write adds a new block to storage without applying it. Used by tooling.
func (db *Database) Write(block Block) error {
	return db.storage.Write(NewBlockData(block))
}

// ForEach returns an iterator to walk through all the blocks starting with
// block number 1.
func (db *Database) ForEach() *DatabaseIterator {
	return &DatabaseIterator{iterator: db.storage.ForEach()}
}

// ForEachData returns an iterator over the raw serialized blocks, used when
// the stored hash itself needs to be inspected.
func (db *Database) ForEachData() Iterator {
	return db.storage.ForEach()
}

// GetBlock searches storage to locate and return the block by number.
func (db *Database) GetBlock(num uint64) (Block, error) {
	blockData, err := db.storage.GetBlock(num)
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}
