package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/corechain/ledger/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

// ErrKeyMismatch is returned from Sign when the private key does not belong
// to the from account of the transaction.
var ErrKeyMismatch = errors.New("private key does not match the from account")

// =============================================================================

// Tx is the transactional information between two parties. These are the
// fields committed to by the content hash and the signature.
type Tx struct {
	ID        string    `json:"id"`        // Unique id assigned at creation.
	FromID    AccountID `json:"from"`      // Account sending the value.
	ToID      AccountID `json:"to"`        // Account receiving the value.
	Value     uint64    `json:"value"`     // Monetary value transferred.
	Fee       uint64    `json:"fee"`       // Fee offered to the miner.
	TimeStamp uint64    `json:"timestamp"` // Time the transaction was created.
}

// NewTx constructs a new unsigned transaction and enforces the structural
// invariants at creation.
func NewTx(fromID AccountID, toID AccountID, value uint64, fee uint64) (Tx, error) {
	if !fromID.IsAccountID() {
		return Tx{}, errors.New("from account is not properly formatted")
	}

	if !toID.IsAccountID() {
		return Tx{}, errors.New("to account is not properly formatted")
	}

	if fromID == toID {
		return Tx{}, fmt.Errorf("transaction from and to account are the same, %s", fromID)
	}

	if value == 0 {
		return Tx{}, errors.New("transaction value must be greater than zero")
	}

	if _, carry := bits.Add64(value, fee, 0); carry != 0 {
		return Tx{}, errors.New("transaction value plus fee overflows")
	}

	tx := Tx{
		ID:        uuid.NewString(),
		FromID:    fromID,
		ToID:      toID,
		Value:     value,
		Fee:       fee,
		TimeStamp: uint64(time.Now().UTC().UnixMilli()),
	}

	return tx, nil
}

// Sign uses the specified private key to sign the transaction. The key must
// belong to the from account.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {
	if PublicKeyToAccountID(privateKey.PublicKey) != tx.FromID {
		return SignedTx{}, ErrKeyMismatch
	}

	sig, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx:        tx,
		PublicKey: signature.EncodePublicKey(&privateKey.PublicKey),
		Sig:       sig,
		TxHash:    signature.Hash(tx),
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients like
// a wallet provide transactions for inclusion into the ledger.
type SignedTx struct {
	Tx
	PublicKey string `json:"public_key"` // Public key of the signer, hex encoded.
	Sig       string `json:"sig"`        // Signature over the content hash.
	TxHash    string `json:"hash"`       // Content hash of the Tx fields.
}

// NewCoinbaseTx constructs the mining reward transaction for a block. It
// carries no signature and originates from the coinbase sentinel.
func NewCoinbaseTx(beneficiaryID AccountID, value uint64) SignedTx {
	tx := Tx{
		ID:        uuid.NewString(),
		FromID:    Coinbase,
		ToID:      beneficiaryID,
		Value:     value,
		TimeStamp: uint64(time.Now().UTC().UnixMilli()),
	}

	return SignedTx{
		Tx:     tx,
		TxHash: signature.Hash(tx),
	}
}

// IsCoinbase reports whether this is a mining reward transaction.
func (tx SignedTx) IsCoinbase() bool {
	return tx.FromID == Coinbase
}

// Validate verifies the transaction is structurally sound, that the content
// hash matches the content, and that the signature was produced over that
// content by the key the from account is derived from. It knows nothing
// about balances, which are the ledger's responsibility.
func (tx SignedTx) Validate() error {
	if tx.IsCoinbase() {
		return errors.New("coinbase transactions are validated per block")
	}

	if !tx.FromID.IsAccountID() {
		return errors.New("from account is not properly formatted")
	}

	if !tx.ToID.IsAccountID() {
		return errors.New("to account is not properly formatted")
	}

	if tx.FromID == tx.ToID {
		return fmt.Errorf("transaction from and to account are the same, %s", tx.FromID)
	}

	if tx.Value == 0 {
		return errors.New("transaction value must be greater than zero")
	}

	// A value plus fee that wraps uint64 would pass every balance check
	// with a spend of nearly nothing, so it is structurally invalid.
	if _, carry := bits.Add64(tx.Value, tx.Fee, 0); carry != 0 {
		return errors.New("transaction value plus fee overflows")
	}

	if signature.Hash(tx.Tx) != tx.TxHash {
		return errors.New("transaction hash does not match the content")
	}

	pub, err := signature.DecodePublicKey(tx.PublicKey)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	if PublicKeyToAccountID(*pub) != tx.FromID {
		return errors.New("from account is not derived from the public key")
	}

	if !signature.Verify(tx.Tx, tx.PublicKey, tx.Sig) {
		return errors.New("invalid signature")
	}

	return nil
}

// ValidateCoinbase verifies a mining reward transaction pays exactly the
// expected value to a well formed account.
func (tx SignedTx) ValidateCoinbase(expectedValue uint64) error {
	if !tx.IsCoinbase() {
		return errors.New("not a coinbase transaction")
	}

	if !tx.ToID.IsAccountID() {
		return errors.New("to account is not properly formatted")
	}

	if tx.Value != expectedValue {
		return fmt.Errorf("coinbase value invalid, got %d, exp %d", tx.Value, expectedValue)
	}

	if signature.Hash(tx.Tx) != tx.TxHash {
		return errors.New("transaction hash does not match the content")
	}

	return nil
}

// Hash implements the merkle Hashable interface. The leaf hash is always
// recomputed from the content so a mutated transaction breaks the root.
func (tx SignedTx) Hash() ([]byte, error) {
	return hexutil.Decode(signature.Hash(tx.Tx))
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two transactions.
func (tx SignedTx) Equals(otherTx SignedTx) bool {
	return tx.ID == otherTx.ID && tx.Sig == otherTx.Sig
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%s", tx.FromID, tx.ID)
}
