package state

import (
	"errors"
	"fmt"

	"github.com/corechain/ledger/foundation/ledger/database"
	"github.com/corechain/ledger/foundation/ledger/mempool"
)

// SubmitTransaction accepts a signed transaction from a wallet for
// inclusion into the pending pool. The transaction is checked for
// structure, signature, duplicates, and funds before it is accepted.
func (s *State) SubmitTransaction(signedTx database.SignedTx) error {
	s.evHandler("state: SubmitTransaction: started: tx[%s]", signedTx)
	defer s.evHandler("state: SubmitTransaction: completed")

	if signedTx.IsCoinbase() {
		return fmt.Errorf("%w: coinbase transactions cannot be submitted", ErrInvalidTransaction)
	}

	if err := signedTx.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransaction, err)
	}

	// The submission-time balance check. The pending pool may hold other
	// spends from this sender; the cumulative check happens again at block
	// assembly time. Validate guarantees value plus fee does not wrap.
	spend := signedTx.Value + signedTx.Fee
	if balance := s.db.Balance(signedTx.FromID); balance < spend {
		return fmt.Errorf("%w: account %s, balance %d, needed %d", ErrInsufficientBalance, signedTx.FromID, balance, spend)
	}

	// The pool performs the duplicate checks, pending and confirmed, under
	// its own lock so a transaction being confirmed by a concurrent block
	// commit cannot slip back in.
	if err := s.mempool.Upsert(signedTx); err != nil {
		switch {
		case errors.Is(err, mempool.ErrDuplicate):
			return fmt.Errorf("%w: already pending", ErrDuplicateTransaction)
		case errors.Is(err, mempool.ErrConfirmed):
			return fmt.Errorf("%w: already confirmed", ErrDuplicateTransaction)
		}
		return err
	}

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return nil
}
