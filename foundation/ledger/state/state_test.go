package state_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/corechain/ledger/foundation/ledger/database"
	"github.com/corechain/ledger/foundation/ledger/genesis"
	"github.com/corechain/ledger/foundation/ledger/state"
	"github.com/corechain/ledger/foundation/ledger/storage/boltdb"
	"github.com/corechain/ledger/foundation/ledger/storage/memory"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()

	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}

	return pk
}

func testGenesis() genesis.Genesis {
	return genesis.Genesis{
		Date:          time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       1,
		TransPerBlock: 10,
		Difficulty:    1,
		MiningReward:  700,
	}
}

func newState(t *testing.T, gen genesis.Genesis, beneficiaryID database.AccountID, stor database.Storage) *state.State {
	t.Helper()

	st, err := state.New(state.Config{
		BeneficiaryID: beneficiaryID,
		Genesis:       gen,
		Storage:       stor,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	return st
}

func submit(t *testing.T, st *state.State, pk *ecdsa.PrivateKey, toID database.AccountID, value uint64, fee uint64) database.SignedTx {
	t.Helper()

	fromID := database.PublicKeyToAccountID(pk.PublicKey)

	tx, err := database.NewTx(fromID, toID, value, fee)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create a transaction: %v", failed, err)
	}

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
	}

	if err := st.SubmitTransaction(signedTx); err != nil {
		t.Fatalf("\t%s\tShould be able to submit a transaction: %v", failed, err)
	}

	return signedTx
}

func mine(t *testing.T, st *state.State) database.Block {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	block, err := st.MinePendingTransactions(ctx)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	return block
}

// =============================================================================

func Test_TransferLifecycle(t *testing.T) {
	t.Log("Given the need to move value between accounts through mining.")
	{
		accountA := newKey(t)
		accountAID := database.PublicKeyToAccountID(accountA.PublicKey)
		accountBID := database.PublicKeyToAccountID(newKey(t).PublicKey)
		minerID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		gen := testGenesis()
		gen.Balances = map[string]uint64{string(accountAID): 1_000}

		stor, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		st := newState(t, gen, minerID, stor)
		defer st.Shutdown()

		signedTx := submit(t, st, accountA, accountBID, 10, 1)
		t.Logf("\t%s\tShould be able to submit a signed transaction.", success)

		if st.MempoolLen() != 1 {
			t.Fatalf("\t%s\tShould hold the transaction in the pending pool.", failed)
		}
		t.Logf("\t%s\tShould hold the transaction in the pending pool.", success)

		block := mine(t, st)
		t.Logf("\t%s\tShould be able to mine the pending transactions.", success)

		if block.Header.Number != 1 {
			t.Fatalf("\t%s\tShould extend the chain to block 1, got %d.", failed, block.Header.Number)
		}
		if st.LatestBlock().Hash() != block.Hash() {
			t.Fatalf("\t%s\tShould advance the chain tip to the mined block.", failed)
		}
		t.Logf("\t%s\tShould advance the chain tip to the mined block.", success)

		if got := st.Balance(accountAID); got != 989 {
			t.Fatalf("\t%s\tShould debit value plus fee from the sender, got %d, exp 989.", failed, got)
		}
		if got := st.Balance(accountBID); got != 10 {
			t.Fatalf("\t%s\tShould credit the value to the receiver, got %d, exp 10.", failed, got)
		}
		if got := st.Balance(minerID); got != 701 {
			t.Fatalf("\t%s\tShould credit the reward plus fee to the miner, got %d, exp 701.", failed, got)
		}
		t.Logf("\t%s\tShould settle all three balances.", success)

		if st.MempoolLen() != 0 {
			t.Fatalf("\t%s\tShould remove the confirmed transaction from the pending pool.", failed)
		}
		t.Logf("\t%s\tShould remove the confirmed transaction from the pending pool.", success)

		history, err := st.TransactionHistory(accountBID)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to read the transaction history: %v", failed, err)
		}
		if len(history) != 1 || history[0].ID != signedTx.ID {
			t.Fatalf("\t%s\tShould find the confirmed transaction in the history.", failed)
		}
		t.Logf("\t%s\tShould find the confirmed transaction in the history.", success)

		if err := st.ValidateChain(); err != nil {
			t.Fatalf("\t%s\tShould pass the full chain validation: %v", failed, err)
		}
		t.Logf("\t%s\tShould pass the full chain validation.", success)
	}
}

func Test_RewardOnlyMining(t *testing.T) {
	t.Log("Given the need to fund an account by mining an empty block.")
	{
		minerID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		gen := testGenesis()
		gen.RewardOnlyMining = true

		stor, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		st := newState(t, gen, minerID, stor)
		defer st.Shutdown()

		block := mine(t, st)
		t.Logf("\t%s\tShould be able to mine with an empty pool.", success)

		trans := block.Trans.Values()
		if len(trans) != 1 || !trans[0].IsCoinbase() {
			t.Fatalf("\t%s\tShould produce a block with only the coinbase.", failed)
		}
		t.Logf("\t%s\tShould produce a block with only the coinbase.", success)

		if got := st.Balance(minerID); got != gen.MiningReward {
			t.Fatalf("\t%s\tShould credit exactly the mining reward, got %d, exp %d.", failed, got, gen.MiningReward)
		}
		t.Logf("\t%s\tShould credit exactly the mining reward.", success)

		if err := st.ValidateChain(); err != nil {
			t.Fatalf("\t%s\tShould pass the full chain validation: %v", failed, err)
		}
		t.Logf("\t%s\tShould pass the full chain validation.", success)
	}
}

func Test_EmptyPool(t *testing.T) {
	t.Log("Given the need to refuse mining an empty block.")
	{
		minerID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		stor, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		st := newState(t, testGenesis(), minerID, stor)
		defer st.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := st.MinePendingTransactions(ctx); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould refuse to mine with an empty pool: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse to mine with an empty pool.", success)

		if st.LatestBlock().Header.Number != 0 {
			t.Fatalf("\t%s\tShould leave the chain untouched.", failed)
		}
		t.Logf("\t%s\tShould leave the chain untouched.", success)
	}
}

func Test_SubmitRejections(t *testing.T) {
	t.Log("Given the need to reject bad submissions at the door.")
	{
		accountA := newKey(t)
		accountAID := database.PublicKeyToAccountID(accountA.PublicKey)
		accountBID := database.PublicKeyToAccountID(newKey(t).PublicKey)
		minerID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		gen := testGenesis()
		gen.Balances = map[string]uint64{string(accountAID): 100}

		stor, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		st := newState(t, gen, minerID, stor)
		defer st.Shutdown()

		tx, err := database.NewTx(accountAID, accountBID, 500, 1)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a transaction: %v", failed, err)
		}
		overdraft, err := tx.Sign(accountA)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
		}

		if err := st.SubmitTransaction(overdraft); !errors.Is(err, state.ErrInsufficientBalance) {
			t.Fatalf("\t%s\tShould reject a transaction beyond the balance: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a transaction beyond the balance.", success)

		cb := database.NewCoinbaseTx(accountBID, 700)
		if err := st.SubmitTransaction(cb); !errors.Is(err, state.ErrInvalidTransaction) {
			t.Fatalf("\t%s\tShould reject a submitted coinbase: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a submitted coinbase.", success)

		signedTx := submit(t, st, accountA, accountBID, 10, 1)

		if err := st.SubmitTransaction(signedTx); !errors.Is(err, state.ErrDuplicateTransaction) {
			t.Fatalf("\t%s\tShould reject a duplicate pending transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a duplicate pending transaction.", success)

		mine(t, st)

		if err := st.SubmitTransaction(signedTx); !errors.Is(err, state.ErrDuplicateTransaction) {
			t.Fatalf("\t%s\tShould reject a replayed confirmed transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a replayed confirmed transaction.", success)

		tampered := signedTx
		tampered.Value = 5
		if err := st.SubmitTransaction(tampered); !errors.Is(err, state.ErrInvalidTransaction) {
			t.Fatalf("\t%s\tShould reject a tampered transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a tampered transaction.", success)
	}
}

func Test_DoubleSpendDeferred(t *testing.T) {
	t.Log("Given the need to keep competing spends from both confirming.")
	{
		accountA := newKey(t)
		accountAID := database.PublicKeyToAccountID(accountA.PublicKey)
		accountBID := database.PublicKeyToAccountID(newKey(t).PublicKey)
		minerID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		gen := testGenesis()
		gen.Balances = map[string]uint64{string(accountAID): 100}

		stor, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		st := newState(t, gen, minerID, stor)
		defer st.Shutdown()

		// Each transaction alone fits the balance of 100; together they
		// overdraw. Both pass the submission check.
		submit(t, st, accountA, accountBID, 60, 1)
		submit(t, st, accountA, accountBID, 60, 1)
		t.Logf("\t%s\tShould accept both submissions individually.", success)

		mine(t, st)

		if got := st.Balance(accountAID); got != 39 {
			t.Fatalf("\t%s\tShould confirm only the first spend, balance %d, exp 39.", failed, got)
		}
		t.Logf("\t%s\tShould confirm only the first spend.", success)

		if st.MempoolLen() != 1 {
			t.Fatalf("\t%s\tShould keep the competing spend pending.", failed)
		}
		t.Logf("\t%s\tShould keep the competing spend pending.", success)

		// The remaining spend can never be funded, so mining has nothing
		// eligible to work on.
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := st.MinePendingTransactions(ctx); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould find nothing eligible to mine: %v", failed, err)
		}
		t.Logf("\t%s\tShould find nothing eligible to mine.", success)

		if err := st.ValidateChain(); err != nil {
			t.Fatalf("\t%s\tShould pass the full chain validation: %v", failed, err)
		}
		t.Logf("\t%s\tShould pass the full chain validation.", success)
	}
}

func Test_ValidateChainTamper(t *testing.T) {
	t.Log("Given the need to detect a forged block in storage.")
	{
		minerID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		gen := testGenesis()
		gen.RewardOnlyMining = true

		stor, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		st := newState(t, gen, minerID, stor)
		defer st.Shutdown()

		block := mine(t, st)

		// Forge a follow-up block with honest proof of work but a coinbase
		// paying far more than the chain allows, and slip it into storage
		// behind the engine's back.
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		forgedTrans := []database.SignedTx{database.NewCoinbaseTx(minerID, gen.MiningReward+1_000)}
		forged, err := database.POW(ctx, gen.Difficulty, block, forgedTrans, func(v string, args ...any) {})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine the forged block: %v", failed, err)
		}

		if err := stor.Write(database.NewBlockData(forged)); err != nil {
			t.Fatalf("\t%s\tShould be able to write the forged block: %v", failed, err)
		}

		if err := st.ValidateChain(); !errors.Is(err, state.ErrChainIntegrity) {
			t.Fatalf("\t%s\tShould detect the forged coinbase: %v", failed, err)
		}
		t.Logf("\t%s\tShould detect the forged coinbase.", success)
	}
}

func Test_Persistence(t *testing.T) {
	t.Log("Given the need to survive a restart with the chain intact.")
	{
		accountA := newKey(t)
		accountAID := database.PublicKeyToAccountID(accountA.PublicKey)
		accountBID := database.PublicKeyToAccountID(newKey(t).PublicKey)
		minerID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		gen := testGenesis()
		gen.Balances = map[string]uint64{string(accountAID): 1_000}

		dbPath := filepath.Join(t.TempDir(), "chain.db")

		stor, err := boltdb.New(dbPath)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the chain database: %v", failed, err)
		}

		st := newState(t, gen, minerID, stor)

		submit(t, st, accountA, accountBID, 10, 1)
		mine(t, st)

		submit(t, st, accountA, accountBID, 25, 2)
		mine(t, st)

		tipHash := st.LatestBlock().Hash()
		balanceA := st.Balance(accountAID)
		balanceB := st.Balance(accountBID)

		if err := st.Shutdown(); err != nil {
			t.Fatalf("\t%s\tShould be able to shut the engine down: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to shut the engine down.", success)

		stor2, err := boltdb.New(dbPath)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reopen the chain database: %v", failed, err)
		}

		st2 := newState(t, gen, minerID, stor2)
		defer st2.Shutdown()
		t.Logf("\t%s\tShould be able to replay the stored chain on restart.", success)

		if st2.LatestBlock().Hash() != tipHash {
			t.Fatalf("\t%s\tShould restore the same chain tip.", failed)
		}
		if st2.LatestBlock().Header.Number != 2 {
			t.Fatalf("\t%s\tShould restore both blocks, got %d.", failed, st2.LatestBlock().Header.Number)
		}
		t.Logf("\t%s\tShould restore the same chain tip.", success)

		if st2.Balance(accountAID) != balanceA || st2.Balance(accountBID) != balanceB {
			t.Fatalf("\t%s\tShould restore identical balances.", failed)
		}
		t.Logf("\t%s\tShould restore identical balances.", success)

		if err := st2.ValidateChain(); err != nil {
			t.Fatalf("\t%s\tShould pass the full chain validation: %v", failed, err)
		}
		t.Logf("\t%s\tShould pass the full chain validation.", success)
	}
}

func Test_OverflowSpendRejected(t *testing.T) {
	t.Log("Given the need to reject a spend whose value plus fee wraps uint64.")
	{
		poorKey := newKey(t)
		poorID := database.PublicKeyToAccountID(poorKey.PublicKey)
		accountBID := database.PublicKeyToAccountID(newKey(t).PublicKey)
		minerID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		gen := testGenesis()

		stor, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		st := newState(t, gen, minerID, stor)
		defer st.Shutdown()

		// MaxUint64 plus a fee of 1 wraps to a spend of zero, which would
		// clear the balance gate for an unfunded account if left unchecked.
		// Built by hand since NewTx refuses the combination outright.
		tx := database.Tx{
			ID:        uuid.NewString(),
			FromID:    poorID,
			ToID:      accountBID,
			Value:     math.MaxUint64,
			Fee:       1,
			TimeStamp: uint64(time.Now().UTC().UnixMilli()),
		}

		signedTx, err := tx.Sign(poorKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
		}

		if err := st.SubmitTransaction(signedTx); !errors.Is(err, state.ErrInvalidTransaction) {
			t.Fatalf("\t%s\tShould reject the overflowing transaction, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject the overflowing transaction.", success)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := st.MinePendingTransactions(ctx); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould have nothing to mine, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould have nothing to mine.", success)

		if st.Balance(accountBID) != 0 {
			t.Fatalf("\t%s\tShould never credit the receiver, got %d.", failed, st.Balance(accountBID))
		}
		t.Logf("\t%s\tShould never credit the receiver.", success)

		if err := st.ValidateChain(); err != nil {
			t.Fatalf("\t%s\tShould pass the full chain validation: %v", failed, err)
		}
		t.Logf("\t%s\tShould pass the full chain validation.", success)
	}
}

func Test_ReplayRejectsTamperedSignature(t *testing.T) {
	t.Log("Given the need to refuse a stored chain with a tampered signature at startup.")
	{
		accountA := newKey(t)
		accountAID := database.PublicKeyToAccountID(accountA.PublicKey)
		accountBID := database.PublicKeyToAccountID(newKey(t).PublicKey)
		minerID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		gen := testGenesis()
		gen.Balances = map[string]uint64{string(accountAID): 1_000}

		dbPath := filepath.Join(t.TempDir(), "chain.db")

		stor, err := boltdb.New(dbPath)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the chain database: %v", failed, err)
		}

		st := newState(t, gen, minerID, stor)

		submit(t, st, accountA, accountBID, 10, 1)
		mine(t, st)

		if err := st.Shutdown(); err != nil {
			t.Fatalf("\t%s\tShould be able to shut the engine down: %v", failed, err)
		}

		// Replace the stored signature of the user transaction. The merkle
		// leaves commit only to the transaction content, so the block hash
		// still reads as intact.
		raw, err := boltdb.New(dbPath)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reopen the chain database: %v", failed, err)
		}

		blockData, err := raw.GetBlock(1)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to read the stored block: %v", failed, err)
		}

		var tampered bool
		for i, tx := range blockData.Trans {
			if !tx.IsCoinbase() {
				blockData.Trans[i].Sig = "0x00"
				tampered = true
			}
		}
		if !tampered {
			t.Fatalf("\t%s\tShould find a user transaction to tamper with.", failed)
		}

		if err := raw.Write(blockData); err != nil {
			t.Fatalf("\t%s\tShould be able to write the tampered block: %v", failed, err)
		}
		if err := raw.Close(); err != nil {
			t.Fatalf("\t%s\tShould be able to close the chain database: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to tamper with the stored block.", success)

		stor2, err := boltdb.New(dbPath)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reopen the chain database: %v", failed, err)
		}
		defer stor2.Close()

		_, err = state.New(state.Config{
			BeneficiaryID: minerID,
			Genesis:       gen,
			Storage:       stor2,
		})
		if !errors.Is(err, state.ErrChainIntegrity) {
			t.Fatalf("\t%s\tShould refuse the tampered chain at startup, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould refuse the tampered chain at startup.", success)
	}
}
