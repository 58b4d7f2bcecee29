// Package state is the core API for the ledger engine and implements all
// the business rules and processing.
package state

import (
	"fmt"
	"sync"

	"github.com/corechain/ledger/foundation/ledger/database"
	"github.com/corechain/ledger/foundation/ledger/genesis"
	"github.com/corechain/ledger/foundation/ledger/mempool"
)

// EventHandler defines a function that is called when events occur in the
// processing of transactions and blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for background mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
}

// =============================================================================

// Config represents the configuration required to start the ledger engine.
type Config struct {
	BeneficiaryID database.AccountID
	Genesis       genesis.Genesis
	Storage       database.Storage
	EvHandler     EventHandler
}

// State manages the ledger: the chain, the pending pool, and the derived
// balance view.
type State struct {
	mu sync.Mutex

	beneficiaryID database.AccountID
	evHandler     EventHandler

	genesis genesis.Genesis
	mempool *mempool.Mempool
	db      *database.Database

	Worker Worker
}

// New constructs a new ledger state, replaying any chain found in the
// configured storage. A stored chain that fails validation is surfaced as
// ErrChainIntegrity here; it is never silently corrected.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrChainIntegrity, err)
	}

	state := State{
		beneficiaryID: cfg.BeneficiaryID,
		evHandler:     ev,
		genesis:       cfg.Genesis,
		mempool:       mempool.New(db.HasTransaction),
		db:            db,
	}

	// The replay above only proves the blocks link and were mined. Every
	// transaction signature and coinbase value must also hold before the
	// stored chain can be trusted.
	if err := state.ValidateChain(); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running.

	return &state, nil
}

// Shutdown cleanly brings the engine down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the database is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all block writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}
