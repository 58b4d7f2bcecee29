package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/corechain/ledger/foundation/ledger/merkle"
	"github.com/corechain/ledger/foundation/ledger/signature"
)

// ErrNonceExhausted is returned when the mining loop wraps the nonce space
// without finding a solution. The caller must construct a fresh block with
// an updated timestamp to retry.
var ErrNonceExhausted = errors.New("nonce space exhausted, rebuild block to retry")

// =============================================================================

// BlockHeader represents common information required for each block. The
// block hash is the content hash of the header; transactions are committed
// to through the merkle root.
type BlockHeader struct {
	Number        uint64 `json:"number"`          // Block number in the chain, zero for genesis.
	TimeStamp     uint64 `json:"timestamp"`       // Time the block was constructed, in milliseconds.
	PrevBlockHash string `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TransRoot     string `json:"trans_root"`      // Merkle tree root hash of the transactions in this block.
	Difficulty    uint16 `json:"difficulty"`      // Number of leading hex zeros the hash must carry.
	Nonce         uint64 `json:"nonce"`           // Value identified to solve the hash solution.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header     BlockHeader
	Trans      *merkle.Tree[SignedTx]
	MiningTime time.Duration
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic puzzle.
func POW(ctx context.Context, difficulty uint16, prevBlock Block, trans []SignedTx, ev func(v string, args ...any)) (Block, error) {

	// When mining the first block, the previous block is genesis and its
	// hash is the zero sentinel.
	prevBlockHash := prevBlock.Hash()

	// Construct a merkle tree from the transactions for this block. The root
	// of this tree is part of the header to be mined.
	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, err
	}

	nb := Block{
		Header: BlockHeader{
			Number:        prevBlock.Header.Number + 1,
			TimeStamp:     uint64(time.Now().UTC().UnixMilli()),
			PrevBlockHash: prevBlockHash,
			TransRoot:     tree.RootHex(),
			Difficulty:    difficulty,
			Nonce:         0,
		},
		Trans: tree,
	}

	if err := nb.performPOW(ctx, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for the block.
// Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("database: performPOW: MINING: started: blk[%d]", b.Header.Number)
	defer ev("database: performPOW: MINING: completed: blk[%d]", b.Header.Number)

	for _, tx := range b.Trans.Values() {
		ev("database: performPOW: MINING: tx[%s]", tx)
	}

	t := time.Now()

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: performPOW: MINING: attempts[%d]", attempts)
		}

		if ctx.Err() != nil {
			ev("database: performPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		hash := b.Hash()
		if !IsHashSolved(b.Header.Difficulty, hash) {
			if b.Header.Nonce == math.MaxUint64 {
				return ErrNonceExhausted
			}
			b.Header.Nonce++
			continue
		}

		b.MiningTime = time.Since(t)

		ev("database: performPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.Header.PrevBlockHash, hash)
		ev("database: performPOW: MINING: attempts[%d]: duration[%v]", attempts, b.MiningTime)

		return nil
	}
}

// Hash returns the unique hash for the Block. Only the header is hashed;
// the transactions are committed to via the merkle root, so the chain can
// be checked with headers alone. Genesis hashes to the zero sentinel.
func (b Block) Hash() string {
	if b.Header.Number == 0 {
		return signature.ZeroHash
	}

	return signature.Hash(b.Header)
}

// ValidateBlock takes a block and validates it for inclusion into the
// chain after the specified previous block.
func (b Block) ValidateBlock(previousBlock Block, ev func(v string, args ...any)) error {
	ev("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("this block is not the next number, got %d, exp %d", b.Header.Number, nextNumber)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash() {
		return fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s", b.Header.PrevBlockHash, previousBlock.Hash())
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block difficulty is the same or greater than parent block difficulty", b.Header.Number)

	if b.Header.Difficulty < previousBlock.Header.Difficulty {
		return fmt.Errorf("block difficulty is less than previous block difficulty, parent %d, block %d", previousBlock.Header.Difficulty, b.Header.Difficulty)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Header.Number)

	hash := b.Hash()
	if !IsHashSolved(b.Header.Difficulty, hash) {
		return fmt.Errorf("%s invalid block hash", hash)
	}

	if previousBlock.Header.TimeStamp > 0 {
		ev("database: ValidateBlock: validate: blk[%d]: check: block's timestamp is not before parent block's timestamp", b.Header.Number)

		// Equal timestamps are allowed. Low difficulty can mint consecutive
		// blocks within the clock resolution.
		if b.Header.TimeStamp < previousBlock.Header.TimeStamp {
			return fmt.Errorf("block timestamp is before parent block, parent %d, block %d", previousBlock.Header.TimeStamp, b.Header.TimeStamp)
		}
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: merkle root does match transactions", b.Header.Number)

	if b.Header.TransRoot != b.Trans.RootHex() {
		return fmt.Errorf("merkle root does not match transactions, got %s, exp %s", b.Trans.RootHex(), b.Header.TransRoot)
	}

	return nil
}

// IsHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading hex zeros.
func IsHashSolved(difficulty uint16, hash string) bool {
	const match = "0x00000000000000000"

	if len(hash) != 66 || int(difficulty) > len(match)-2 {
		return false
	}

	return hash[:2+difficulty] == match[:2+difficulty]
}

// =============================================================================

// BlockData represents what is serialized to disk and over the wire.
type BlockData struct {
	Hash       string        `json:"hash"`
	Header     BlockHeader   `json:"block"`
	MiningTime time.Duration `json:"mining_time"`
	Trans      []SignedTx    `json:"trans"`
}

// NewBlockData constructs the value to serialize to disk.
func NewBlockData(block Block) BlockData {
	blockData := BlockData{
		Hash:       block.Hash(),
		Header:     block.Header,
		MiningTime: block.MiningTime,
		Trans:      block.Trans.Values(),
	}

	return blockData
}

// ToBlock converts a BlockData into a Block and checks the stored hash
// still matches a recomputation over the content. This detects tampering
// with the stored hash field independent of the nonce.
func ToBlock(blockData BlockData) (Block, error) {
	tree, err := merkle.NewTree(blockData.Trans)
	if err != nil {
		return Block{}, err
	}

	nb := Block{
		Header:     blockData.Header,
		Trans:      tree,
		MiningTime: blockData.MiningTime,
	}

	if nb.Hash() != blockData.Hash {
		return Block{}, fmt.Errorf("stored block hash does not match content, got %s, exp %s", blockData.Hash, nb.Hash())
	}

	return nb, nil
}
