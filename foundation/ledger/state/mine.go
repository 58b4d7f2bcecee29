package state

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/corechain/ledger/foundation/ledger/database"
)

// MinePendingTransactions attempts to create the next block in the chain
// from the eligible pending transactions plus the mining reward. The nonce
// search runs without holding the state lock; the lock is taken only to
// commit the mined block.
func (s *State) MinePendingTransactions(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MinePendingTransactions: MINING: check mempool")

	// Snapshot the candidate set: oldest first, capped per block, with the
	// cumulative per-sender spend filter applied against confirmed balances.
	trans := s.mempool.PickBest(int(s.genesis.TransPerBlock), s.db.Balance)
	if len(trans) == 0 && !s.genesis.RewardOnlyMining {
		return database.Block{}, ErrNoTransactions
	}

	// The miner collects the reward plus every included fee through the
	// coinbase transaction. The sums are carry checked so a fee total that
	// wraps uint64 can never understate the coinbase.
	var fees uint64
	for _, tx := range trans {
		sum, carry := bits.Add64(fees, tx.Fee, 0)
		if carry != 0 {
			return database.Block{}, fmt.Errorf("block fee total overflows")
		}
		fees = sum
	}

	reward, carry := bits.Add64(s.genesis.MiningReward, fees, 0)
	if carry != 0 {
		return database.Block{}, fmt.Errorf("mining reward plus fees overflows")
	}
	trans = append(trans, database.NewCoinbaseTx(s.beneficiaryID, reward))

	s.evHandler("state: MinePendingTransactions: MINING: perform POW: txs[%d]", len(trans))

	tip := s.db.LatestBlock()

	block, err := database.POW(ctx, s.genesis.Difficulty, tip, trans, s.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MinePendingTransactions: MINING: commit block[%d]", block.Header.Number)

	if err := s.commitBlock(block, tip); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// commitBlock appends the mined block to the chain. It persists the block,
// applies the balance changes, and removes the now-confirmed transactions
// from the pending pool. If the tip advanced while the nonce search ran,
// the block is discarded and its transactions stay pending.
func (s *State) commitBlock(block database.Block, minedAgainst database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip := s.db.LatestBlock()
	if tip.Hash() != minedAgainst.Hash() {
		return fmt.Errorf("%w: mined against %s, tip is %s", ErrChainTipMoved, minedAgainst.Hash(), tip.Hash())
	}

	// Write to storage first. On failure nothing in memory changes, so the
	// in-memory chain never diverges from what was reported as persisted.
	if err := s.db.ApplyBlock(block); err != nil {
		return err
	}

	for _, tx := range block.Trans.Values() {
		s.mempool.Delete(tx)
	}

	return nil
}
