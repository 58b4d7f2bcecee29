// Package commands contains the admin tool commands for operating on a
// chain store offline.
package commands

import (
	"fmt"
	"os"

	"github.com/corechain/ledger/foundation/ledger/genesis"
	"github.com/corechain/ledger/foundation/ledger/state"
	"github.com/corechain/ledger/foundation/ledger/storage/boltdb"
	"github.com/spf13/cobra"
)

var (
	dbPath      string
	genesisPath string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db-path", "d", "zblock/chain.db", "Path to the chain database.")
	rootCmd.PersistentFlags().StringVarP(&genesisPath, "genesis", "g", "zblock/genesis.json", "Path to the genesis file.")
}

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operate on a chain store offline",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openState opens the chain store and replays it into a state value. The
// node must not be running; the store is locked exclusively.
func openState() (*state.State, error) {
	gen, err := genesis.Load(genesisPath)
	if err != nil {
		return nil, fmt.Errorf("loading genesis: %w", err)
	}

	storage, err := boltdb.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening chain store: %w", err)
	}

	st, err := state.New(state.Config{
		Genesis: gen,
		Storage: storage,
	})
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("replaying chain: %w", err)
	}

	return st, nil
}
