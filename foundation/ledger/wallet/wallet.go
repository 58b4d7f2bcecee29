// Package wallet provides key custody and transaction construction on top
// of the signing primitives. A wallet owns exactly one key pair and never
// touches the ledger's own store; submitting the transactions it builds is
// the caller's responsibility.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/corechain/ledger/foundation/ledger/database"
	"github.com/corechain/ledger/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidKey is returned when a private key cannot be parsed.
var ErrInvalidKey = errors.New("invalid private key")

// =============================================================================

// Wallet represents custody over a single key pair.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
}

// Generate constructs a wallet with a newly generated key pair.
func Generate() (*Wallet, error) {
	privateKey, err := signature.GenerateKey()
	if err != nil {
		return nil, err
	}

	return &Wallet{privateKey: privateKey}, nil
}

// FromPrivateKeyHex constructs a wallet from a hex encoded private key.
func FromPrivateKeyHex(privateKeyHex string) (*Wallet, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}

	return &Wallet{privateKey: privateKey}, nil
}

// FromFile constructs a wallet from a private key file on disk.
func FromFile(path string) (*Wallet, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}

	return &Wallet{privateKey: privateKey}, nil
}

// Save writes the private key to the specified file.
func (w *Wallet) Save(path string) error {
	return crypto.SaveECDSA(path, w.privateKey)
}

// AccountID returns the address derived from the wallet's public key.
func (w *Wallet) AccountID() database.AccountID {
	return database.PublicKeyToAccountID(w.privateKey.PublicKey)
}

// PrivateKeyHex returns the hex encoding of the private key for export.
func (w *Wallet) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(w.privateKey))
}

// PublicKeyHex returns the hex encoding of the uncompressed public key.
func (w *Wallet) PublicKeyHex() string {
	return signature.EncodePublicKey(&w.privateKey.PublicKey)
}

// CreateTransaction constructs and signs a transaction from this wallet's
// account. The result is ready to submit to a ledger.
func (w *Wallet) CreateTransaction(toID database.AccountID, value uint64, fee uint64) (database.SignedTx, error) {
	tx, err := database.NewTx(w.AccountID(), toID, value, fee)
	if err != nil {
		return database.SignedTx{}, err
	}

	return tx.Sign(w.privateKey)
}
