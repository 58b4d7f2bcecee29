package state

import "errors"

// Errors the engine reports to callers. They are values propagated to the
// caller, never used for normal control flow.
var (
	// ErrInvalidTransaction indicates the transaction failed its structural
	// or signature checks. The single request is rejected.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrInsufficientBalance indicates the sender cannot cover value plus
	// fee. The transaction stays out of the pool.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateTransaction indicates a transaction with the same id or
	// content hash is already pending or confirmed.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrNoTransactions is returned when a block is requested to be mined
	// and there are no eligible transactions and reward-only mining is off.
	ErrNoTransactions = errors.New("no transactions in mempool")

	// ErrChainIntegrity indicates the stored chain failed validation. Trust
	// in the current chain state is lost; this is surfaced to the operator
	// and never auto-corrected.
	ErrChainIntegrity = errors.New("chain integrity violation")

	// ErrChainTipMoved indicates the chain advanced while a block was being
	// mined against the old tip. The mined block is discarded and its
	// transactions stay pending.
	ErrChainTipMoved = errors.New("chain tip moved while mining")
)
