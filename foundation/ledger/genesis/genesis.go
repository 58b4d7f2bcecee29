// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Genesis represents the chain policy captured at initialization.
type Genesis struct {
	Date             time.Time         `json:"date"`
	ChainID          uint16            `json:"chain_id"`           // Unique id for this running instance.
	TransPerBlock    uint16            `json:"trans_per_block"`    // Maximum number of transactions that can be in a block.
	Difficulty       uint16            `json:"difficulty"`         // Number of leading hex zeros to solve the work problem.
	MiningReward     uint64            `json:"mining_reward"`      // Reward for mining a block.
	RewardOnlyMining bool              `json:"reward_only_mining"` // Allow mining a block with no pending transactions.
	Balances         map[string]uint64 `json:"balances"`           // Opening balances for founders of the ledger.
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}
