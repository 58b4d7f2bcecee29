package state

import (
	"fmt"
	"math/bits"

	"github.com/corechain/ledger/foundation/ledger/database"
)

// QueryLatest represents a query for the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// Balance returns the confirmed balance for the specified account.
func (s *State) Balance(accountID database.AccountID) uint64 {
	return s.db.Balance(accountID)
}

// Accounts returns a copy of the account balance view.
func (s *State) Accounts() map[database.AccountID]database.Account {
	return s.db.CopyAccounts()
}

// TransactionHistory returns every confirmed transaction touching the
// specified account, in chronological order.
func (s *State) TransactionHistory(accountID database.AccountID) ([]database.SignedTx, error) {
	var history []database.SignedTx

	iter := s.db.ForEachData()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		for _, tx := range blockData.Trans {
			if tx.FromID == accountID || tx.ToID == accountID {
				history = append(history, tx)
			}
		}
	}

	return history, nil
}

// BlocksByNumber returns the set of blocks for the inclusive number range.
// QueryLatest for either bound resolves to the current tip.
func (s *State) BlocksByNumber(from uint64, to uint64) []database.Block {
	latest := s.db.LatestBlock().Header.Number

	if from == QueryLatest {
		from = latest
	}
	if to == QueryLatest {
		to = latest
	}

	var out []database.Block
	for i := from; i <= to; i++ {
		block, err := s.db.GetBlock(i)
		if err != nil {
			s.evHandler("state: BlocksByNumber: ERROR: %s", err)
			return nil
		}
		out = append(out, block)
	}

	return out
}

// =============================================================================

// ValidateChain walks the chain from genesis in a single pass and checks
// every hash link, proof of work, merkle root, and transaction. It is the
// authoritative integrity check; any failure means the chain state cannot
// be trusted.
func (s *State) ValidateChain() error {
	s.evHandler("state: ValidateChain: started")
	defer s.evHandler("state: ValidateChain: completed")

	balances := make(map[database.AccountID]uint64)
	for accountStr, balance := range s.genesis.Balances {
		accountID, err := database.ToAccountID(accountStr)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrChainIntegrity, err)
		}
		balances[accountID] = balance
	}

	var prev database.Block
	seenIDs := make(map[string]struct{})
	seenHashes := make(map[string]struct{})

	iter := s.db.ForEachData()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return fmt.Errorf("%w: reading block: %s", ErrChainIntegrity, err)
		}

		// ToBlock rejects a stored hash that no longer matches the content.
		block, err := database.ToBlock(blockData)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrChainIntegrity, err)
		}

		if blockData.Header.Difficulty < s.genesis.Difficulty {
			return fmt.Errorf("%w: block %d mined below the chain difficulty", ErrChainIntegrity, blockData.Header.Number)
		}

		if err := block.ValidateBlock(prev, s.evHandler); err != nil {
			return fmt.Errorf("%w: block %d: %s", ErrChainIntegrity, blockData.Header.Number, err)
		}

		var coinbase database.SignedTx
		var coinbaseCount int
		var fees uint64

		for _, tx := range blockData.Trans {
			if tx.IsCoinbase() {
				coinbase = tx
				coinbaseCount++
				continue
			}

			if err := tx.Validate(); err != nil {
				return fmt.Errorf("%w: block %d, tx %s: %s", ErrChainIntegrity, blockData.Header.Number, tx.ID, err)
			}

			// No transaction may confirm twice across the whole chain.
			if _, exists := seenIDs[tx.ID]; exists {
				return fmt.Errorf("%w: block %d, tx %s confirmed more than once", ErrChainIntegrity, blockData.Header.Number, tx.ID)
			}
			if _, exists := seenHashes[tx.TxHash]; exists {
				return fmt.Errorf("%w: block %d, tx %s content confirmed more than once", ErrChainIntegrity, blockData.Header.Number, tx.ID)
			}
			seenIDs[tx.ID] = struct{}{}
			seenHashes[tx.TxHash] = struct{}{}

			spend, carry := bits.Add64(tx.Value, tx.Fee, 0)
			if carry != 0 {
				return fmt.Errorf("%w: block %d, spend overflow by %s", ErrChainIntegrity, blockData.Header.Number, tx.FromID)
			}
			if balances[tx.FromID] < spend {
				return fmt.Errorf("%w: block %d, overdraft by %s", ErrChainIntegrity, blockData.Header.Number, tx.FromID)
			}
			balances[tx.FromID] -= spend
			balances[tx.ToID] += tx.Value

			sum, carry := bits.Add64(fees, tx.Fee, 0)
			if carry != 0 {
				return fmt.Errorf("%w: block %d, fee total overflows", ErrChainIntegrity, blockData.Header.Number)
			}
			fees = sum
		}

		if coinbaseCount != 1 {
			return fmt.Errorf("%w: block %d carries %d coinbase transactions", ErrChainIntegrity, blockData.Header.Number, coinbaseCount)
		}

		reward, carry := bits.Add64(s.genesis.MiningReward, fees, 0)
		if carry != 0 {
			return fmt.Errorf("%w: block %d, mining reward plus fees overflows", ErrChainIntegrity, blockData.Header.Number)
		}
		if err := coinbase.ValidateCoinbase(reward); err != nil {
			return fmt.Errorf("%w: block %d: %s", ErrChainIntegrity, blockData.Header.Number, err)
		}
		balances[coinbase.ToID] += coinbase.Value

		prev = block
	}

	// The replayed balances are the ground truth; the cached view must
	// agree with them.
	for accountID, account := range s.db.CopyAccounts() {
		if balances[accountID] != account.Balance {
			return fmt.Errorf("%w: balance cache diverged for %s, cached %d, replayed %d", ErrChainIntegrity, accountID, account.Balance, balances[accountID])
		}
	}

	return nil
}
