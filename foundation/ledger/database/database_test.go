package database_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/corechain/ledger/foundation/ledger/database"
	"github.com/corechain/ledger/foundation/ledger/genesis"
	"github.com/corechain/ledger/foundation/ledger/signature"
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

func noEv(v string, args ...any) {}

// =============================================================================

func Test_Transactions(t *testing.T) {
	t.Log("Given the need to create, sign, and validate transactions.")
	{
		fromPK := newKey(t)
		fromID := database.PublicKeyToAccountID(fromPK.PublicKey)

		toPK := newKey(t)
		toID := database.PublicKeyToAccountID(toPK.PublicKey)

		tx, err := database.NewTx(fromID, toID, 100, 15)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to create a transaction.", success)

		signedTx, err := tx.Sign(fromPK)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to sign a transaction.", success)

		if err := signedTx.Validate(); err != nil {
			t.Fatalf("\t%s\tShould be able to validate a signed transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to validate a signed transaction.", success)

		if _, err := tx.Sign(toPK); !errors.Is(err, database.ErrKeyMismatch) {
			t.Fatalf("\t%s\tShould reject signing with a foreign key: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject signing with a foreign key.", success)

		tampered := signedTx
		tampered.Value = 1_000_000
		if err := tampered.Validate(); err == nil {
			t.Fatalf("\t%s\tShould reject a transaction with a mutated value.", failed)
		}
		t.Logf("\t%s\tShould reject a transaction with a mutated value.", success)

		redirected := signedTx
		redirected.ToID = database.PublicKeyToAccountID(newKey(t).PublicKey)
		if err := redirected.Validate(); err == nil {
			t.Fatalf("\t%s\tShould reject a transaction with a mutated receiver.", failed)
		}
		t.Logf("\t%s\tShould reject a transaction with a mutated receiver.", success)
	}
}

func Test_TransactionInvariants(t *testing.T) {
	t.Log("Given the need to reject malformed transactions at creation.")
	{
		pk := newKey(t)
		fromID := database.PublicKeyToAccountID(pk.PublicKey)
		toID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		if _, err := database.NewTx(fromID, toID, 0, 1); err == nil {
			t.Fatalf("\t%s\tShould reject a zero value transaction.", failed)
		}
		t.Logf("\t%s\tShould reject a zero value transaction.", success)

		if _, err := database.NewTx(fromID, fromID, 10, 1); err == nil {
			t.Fatalf("\t%s\tShould reject a self transfer.", failed)
		}
		t.Logf("\t%s\tShould reject a self transfer.", success)

		if _, err := database.NewTx("not-an-account", toID, 10, 1); err == nil {
			t.Fatalf("\t%s\tShould reject a malformed from account.", failed)
		}
		t.Logf("\t%s\tShould reject a malformed from account.", success)

		if _, err := database.NewTx(fromID, toID, math.MaxUint64, 1); err == nil {
			t.Fatalf("\t%s\tShould reject a value plus fee that overflows.", failed)
		}
		t.Logf("\t%s\tShould reject a value plus fee that overflows.", success)

		// A signed transaction built around NewTx must fail validation for
		// the same reason. A wrapping spend would otherwise read as nearly
		// free and pass every balance check on the chain.
		tx := database.Tx{
			ID:        uuid.NewString(),
			FromID:    fromID,
			ToID:      toID,
			Value:     math.MaxUint64,
			Fee:       1,
			TimeStamp: uint64(time.Now().UTC().UnixMilli()),
		}
		signedTx, err := tx.Sign(pk)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
		}
		if err := signedTx.Validate(); err == nil {
			t.Fatalf("\t%s\tShould reject a signed transaction whose spend overflows.", failed)
		}
		t.Logf("\t%s\tShould reject a signed transaction whose spend overflows.", success)
	}
}

func Test_Coinbase(t *testing.T) {
	t.Log("Given the need to validate mining reward transactions.")
	{
		beneficiaryID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		cbTx := database.NewCoinbaseTx(beneficiaryID, 715)

		if !cbTx.IsCoinbase() {
			t.Fatalf("\t%s\tShould flag the reward transaction as coinbase.", failed)
		}
		t.Logf("\t%s\tShould flag the reward transaction as coinbase.", success)

		if err := cbTx.ValidateCoinbase(715); err != nil {
			t.Fatalf("\t%s\tShould accept a coinbase paying the expected value: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a coinbase paying the expected value.", success)

		if err := cbTx.ValidateCoinbase(700); err == nil {
			t.Fatalf("\t%s\tShould reject a coinbase paying the wrong value.", failed)
		}
		t.Logf("\t%s\tShould reject a coinbase paying the wrong value.", success)

		if err := cbTx.Validate(); err == nil {
			t.Fatalf("\t%s\tShould not validate a coinbase as a user transaction.", failed)
		}
		t.Logf("\t%s\tShould not validate a coinbase as a user transaction.", success)
	}
}

// =============================================================================

func mineBlock(t *testing.T, gen genesis.Genesis, prev database.Block, trans []database.SignedTx) database.Block {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	block, err := database.POW(ctx, gen.Difficulty, prev, trans, noEv)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	return block
}

func Test_POW(t *testing.T) {
	t.Log("Given the need to mine and validate a block of transactions.")
	{
		gen := testGenesis()

		fromPK := newKey(t)
		fromID := database.PublicKeyToAccountID(fromPK.PublicKey)
		toID := database.PublicKeyToAccountID(newKey(t).PublicKey)
		beneficiaryID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		tx, err := database.NewTx(fromID, toID, 100, 15)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a transaction: %v", failed, err)
		}
		signedTx, err := tx.Sign(fromPK)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
		}

		trans := []database.SignedTx{
			signedTx,
			database.NewCoinbaseTx(beneficiaryID, gen.MiningReward+15),
		}

		block := mineBlock(t, gen, database.Block{}, trans)
		t.Logf("\t%s\tShould be able to mine a block.", success)

		if !database.IsHashSolved(gen.Difficulty, block.Hash()) {
			t.Fatalf("\t%s\tShould produce a hash that solves the work problem.", failed)
		}
		t.Logf("\t%s\tShould produce a hash that solves the work problem.", success)

		if block.Header.Number != 1 {
			t.Fatalf("\t%s\tShould number the first block 1, got %d.", failed, block.Header.Number)
		}
		t.Logf("\t%s\tShould number the first block 1.", success)

		if block.Header.PrevBlockHash != signature.ZeroHash {
			t.Fatalf("\t%s\tShould link the first block to the zero hash.", failed)
		}
		t.Logf("\t%s\tShould link the first block to the zero hash.", success)

		if err := block.ValidateBlock(database.Block{}, noEv); err != nil {
			t.Fatalf("\t%s\tShould be able to validate the mined block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to validate the mined block.", success)

		forged := block
		forged.Header.Number = 2
		if err := forged.ValidateBlock(database.Block{}, noEv); err == nil {
			t.Fatalf("\t%s\tShould reject a block with the wrong number.", failed)
		}
		t.Logf("\t%s\tShould reject a block with the wrong number.", success)
	}
}

func Test_POWCancel(t *testing.T) {
	t.Log("Given the need to interrupt a nonce search.")
	{
		beneficiaryID := database.PublicKeyToAccountID(newKey(t).PublicKey)
		trans := []database.SignedTx{database.NewCoinbaseTx(beneficiaryID, 700)}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// Difficulty 17 is beyond reach, the cancelled context must win.
		if _, err := database.POW(ctx, 17, database.Block{}, trans, noEv); !errors.Is(err, context.Canceled) {
			t.Fatalf("\t%s\tShould stop the search when cancelled: %v", failed, err)
		}
		t.Logf("\t%s\tShould stop the search when cancelled.", success)
	}
}

func Test_BlockDataTamper(t *testing.T) {
	t.Log("Given the need to detect a tampered stored block.")
	{
		gen := testGenesis()
		beneficiaryID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		trans := []database.SignedTx{database.NewCoinbaseTx(beneficiaryID, gen.MiningReward)}
		block := mineBlock(t, gen, database.Block{}, trans)

		blockData := database.NewBlockData(block)

		if _, err := database.ToBlock(blockData); err != nil {
			t.Fatalf("\t%s\tShould be able to rebuild an untouched block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to rebuild an untouched block.", success)

		tampered := blockData
		tampered.Header.Nonce++
		if _, err := database.ToBlock(tampered); err == nil {
			t.Fatalf("\t%s\tShould reject a block whose content no longer matches its hash.", failed)
		}
		t.Logf("\t%s\tShould reject a block whose content no longer matches its hash.", success)
	}
}

// =============================================================================

func Test_DatabaseBalances(t *testing.T) {
	t.Log("Given the need to maintain balances from applied blocks.")
	{
		gen := testGenesis()

		fromPK := newKey(t)
		fromID := database.PublicKeyToAccountID(fromPK.PublicKey)
		toID := database.PublicKeyToAccountID(newKey(t).PublicKey)
		beneficiaryID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		gen.Balances = map[string]uint64{string(fromID): 1_000}

		stor, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		db, err := database.New(gen, stor, noEv)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to open the database.", success)

		if db.Balance(fromID) != 1_000 {
			t.Fatalf("\t%s\tShould seed the genesis balance, got %d.", failed, db.Balance(fromID))
		}
		t.Logf("\t%s\tShould seed the genesis balance.", success)

		tx, err := database.NewTx(fromID, toID, 100, 15)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a transaction: %v", failed, err)
		}
		signedTx, err := tx.Sign(fromPK)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
		}

		trans := []database.SignedTx{
			signedTx,
			database.NewCoinbaseTx(beneficiaryID, gen.MiningReward+15),
		}
		block := mineBlock(t, gen, database.Block{}, trans)

		if err := db.ApplyBlock(block); err != nil {
			t.Fatalf("\t%s\tShould be able to apply a mined block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to apply a mined block.", success)

		if got := db.Balance(fromID); got != 885 {
			t.Fatalf("\t%s\tShould debit value plus fee from the sender, got %d, exp 885.", failed, got)
		}
		t.Logf("\t%s\tShould debit value plus fee from the sender.", success)

		if got := db.Balance(toID); got != 100 {
			t.Fatalf("\t%s\tShould credit the value to the receiver, got %d, exp 100.", failed, got)
		}
		t.Logf("\t%s\tShould credit the value to the receiver.", success)

		if got := db.Balance(beneficiaryID); got != gen.MiningReward+15 {
			t.Fatalf("\t%s\tShould credit the reward plus fee to the miner, got %d.", failed, got)
		}
		t.Logf("\t%s\tShould credit the reward plus fee to the miner.", success)

		if !db.HasTransaction(signedTx.ID, signedTx.TxHash) {
			t.Fatalf("\t%s\tShould record the confirmed transaction.", failed)
		}
		t.Logf("\t%s\tShould record the confirmed transaction.", success)

		if err := db.AuditBalances(); err != nil {
			t.Fatalf("\t%s\tShould pass the balance audit: %v", failed, err)
		}
		t.Logf("\t%s\tShould pass the balance audit.", success)

		// Reopening against the same storage must replay to identical state.
		db2, err := database.New(gen, stor, noEv)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to replay the stored chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to replay the stored chain.", success)

		if db2.Balance(fromID) != db.Balance(fromID) || db2.Balance(toID) != db.Balance(toID) {
			t.Fatalf("\t%s\tShould replay to identical balances.", failed)
		}
		t.Logf("\t%s\tShould replay to identical balances.", success)

		if db2.LatestBlock().Hash() != block.Hash() {
			t.Fatalf("\t%s\tShould replay to the same chain tip.", failed)
		}
		t.Logf("\t%s\tShould replay to the same chain tip.", success)
	}
}

func Test_DatabaseOverdraft(t *testing.T) {
	t.Log("Given the need to reject a block that overdraws an account.")
	{
		gen := testGenesis()

		fromPK := newKey(t)
		fromID := database.PublicKeyToAccountID(fromPK.PublicKey)
		toID := database.PublicKeyToAccountID(newKey(t).PublicKey)
		beneficiaryID := database.PublicKeyToAccountID(newKey(t).PublicKey)

		gen.Balances = map[string]uint64{string(fromID): 50}

		stor, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		db, err := database.New(gen, stor, noEv)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}

		tx, err := database.NewTx(fromID, toID, 100, 15)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a transaction: %v", failed, err)
		}
		signedTx, err := tx.Sign(fromPK)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
		}

		trans := []database.SignedTx{
			signedTx,
			database.NewCoinbaseTx(beneficiaryID, gen.MiningReward+15),
		}
		block := mineBlock(t, gen, database.Block{}, trans)

		if err := db.ApplyBlock(block); err == nil {
			t.Fatalf("\t%s\tShould reject a block that overdraws the sender.", failed)
		}
		t.Logf("\t%s\tShould reject a block that overdraws the sender.", success)
	}
}
