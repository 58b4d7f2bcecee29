package state

import (
	"github.com/corechain/ledger/foundation/ledger/database"
	"github.com/corechain/ledger/foundation/ledger/genesis"
)

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// BeneficiaryID returns the account receiving mining rewards on this node.
func (s *State) BeneficiaryID() database.AccountID {
	return s.beneficiaryID
}

// LatestBlock returns a copy of the current latest block.
func (s *State) LatestBlock() database.Block {
	return s.db.LatestBlock()
}

// Mempool returns a copy of the pending pool in arrival order.
func (s *State) Mempool() []database.SignedTx {
	return s.mempool.Copy()
}

// MempoolLen returns the current length of the pending pool.
func (s *State) MempoolLen() int {
	return s.mempool.Count()
}
