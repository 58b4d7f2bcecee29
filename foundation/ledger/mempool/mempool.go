// Package mempool maintains the pending transaction pool for the ledger.
// The pool is strictly insertion ordered: the oldest eligible transactions
// are always selected first.
package mempool

import (
	"errors"
	"math/bits"
	"sync"

	"github.com/corechain/ledger/foundation/ledger/database"
)

var (
	// ErrDuplicate is returned from Upsert when a transaction with the same
	// id or content hash is already pending.
	ErrDuplicate = errors.New("transaction already pending")

	// ErrConfirmed is returned from Upsert when the confirmed callback
	// reports the transaction is already on the chain.
	ErrConfirmed = errors.New("transaction already confirmed")
)

// =============================================================================

// Mempool represents the cache of pending transactions in arrival order.
type Mempool struct {
	mu        sync.RWMutex
	pool      []database.SignedTx
	ids       map[string]struct{}
	hashes    map[string]struct{}
	confirmed func(id string, txHash string) bool
}

// New constructs a new mempool. The confirmed callback reports whether a
// transaction id or content hash is already on the chain; it may be nil
// when no chain backs the pool.
func New(confirmed func(id string, txHash string) bool) *Mempool {
	return &Mempool{
		ids:       make(map[string]struct{}),
		hashes:    make(map[string]struct{}),
		confirmed: confirmed,
	}
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert appends a transaction to the pool in arrival order. A transaction
// whose id or content hash is already pending or already confirmed is
// rejected. The confirmed check runs under the pool lock, so a transaction
// being confirmed concurrently is either rejected here or removed by the
// Delete call that follows block commit; it can never come back.
func (mp *Mempool) Upsert(tx database.SignedTx) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.ids[tx.ID]; exists {
		return ErrDuplicate
	}
	if _, exists := mp.hashes[tx.TxHash]; exists {
		return ErrDuplicate
	}
	if mp.confirmed != nil && mp.confirmed(tx.ID, tx.TxHash) {
		return ErrConfirmed
	}

	mp.pool = append(mp.pool, tx)
	mp.ids[tx.ID] = struct{}{}
	mp.hashes[tx.TxHash] = struct{}{}

	return nil
}

// Delete removes a transaction from the pool, keeping the order of the
// remaining transactions.
func (mp *Mempool) Delete(tx database.SignedTx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for i, ptx := range mp.pool {
		if ptx.ID != tx.ID {
			continue
		}

		mp.pool = append(mp.pool[:i], mp.pool[i+1:]...)
		delete(mp.ids, ptx.ID)
		delete(mp.hashes, ptx.TxHash)
		return
	}
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = nil
	mp.ids = make(map[string]struct{})
	mp.hashes = make(map[string]struct{})
}

// Copy returns a copy of the pool in arrival order.
func (mp *Mempool) Copy() []database.SignedTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	cpy := make([]database.SignedTx, len(mp.pool))
	copy(cpy, mp.pool)

	return cpy
}

// PickBest returns up to howMany transactions, oldest first, filtered so
// the cumulative spend per sender never exceeds the balance reported by
// balanceOf. Transactions that would overdraw are deferred, not dropped:
// they stay pending for a future block. A howMany of -1 means no cap.
func (mp *Mempool) PickBest(howMany int, balanceOf func(database.AccountID) uint64) []database.SignedTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if howMany == -1 {
		howMany = len(mp.pool)
	}

	var picked []database.SignedTx
	spent := make(map[database.AccountID]uint64)

	for _, tx := range mp.pool {
		if len(picked) >= howMany {
			break
		}

		spend, carry := bits.Add64(tx.Value, tx.Fee, 0)
		if carry != 0 {
			continue
		}

		total, carry := bits.Add64(spent[tx.FromID], spend, 0)
		if carry != 0 || total > balanceOf(tx.FromID) {
			continue
		}

		spent[tx.FromID] = total
		picked = append(picked, tx)
	}

	return picked
}
