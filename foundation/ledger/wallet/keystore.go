package wallet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/corechain/ledger/foundation/ledger/database"
)

// keyExtension is the file extension for private key files in a keystore.
const keyExtension = ".ecdsa"

// ErrUnknownAccount is returned when no key in the keystore belongs to the
// requested account.
var ErrUnknownAccount = errors.New("no wallet for account")

// =============================================================================

// Keystore manages a directory of named wallets for the node service.
type Keystore struct {
	folder string
}

// NewKeystore constructs a keystore over the specified folder, creating it
// when missing.
func NewKeystore(folder string) (*Keystore, error) {
	if err := os.MkdirAll(folder, 0700); err != nil {
		return nil, fmt.Errorf("creating keystore folder: %w", err)
	}

	return &Keystore{folder: folder}, nil
}

// Create generates a new wallet and persists its key under the given name.
func (ks *Keystore) Create(name string) (*Wallet, error) {
	w, err := Generate()
	if err != nil {
		return nil, err
	}

	if err := w.Save(ks.path(name)); err != nil {
		return nil, err
	}

	return w, nil
}

// Import persists a wallet from the specified hex private key under the
// given name.
func (ks *Keystore) Import(name string, privateKeyHex string) (*Wallet, error) {
	w, err := FromPrivateKeyHex(privateKeyHex)
	if err != nil {
		return nil, err
	}

	if err := w.Save(ks.path(name)); err != nil {
		return nil, err
	}

	return w, nil
}

// Load opens the wallet stored under the given name.
func (ks *Keystore) Load(name string) (*Wallet, error) {
	return FromFile(ks.path(name))
}

// LookupAccount walks the keystore for the wallet whose key derives the
// specified account id.
func (ks *Keystore) LookupAccount(accountID database.AccountID) (*Wallet, error) {
	var found *Wallet

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if found != nil || path.Ext(fileName) != keyExtension {
			return nil
		}

		w, err := FromFile(fileName)
		if err != nil {
			return err
		}

		if w.AccountID() == accountID {
			found = w
		}

		return nil
	}

	if err := filepath.Walk(ks.folder, fn); err != nil {
		return nil, fmt.Errorf("walking keystore: %w", err)
	}

	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}

	return found, nil
}

// Names returns the mapping of account ids to wallet names in the keystore.
func (ks *Keystore) Names() (map[database.AccountID]string, error) {
	names := make(map[database.AccountID]string)

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != keyExtension {
			return nil
		}

		w, err := FromFile(fileName)
		if err != nil {
			return err
		}

		names[w.AccountID()] = strings.TrimSuffix(path.Base(fileName), keyExtension)

		return nil
	}

	if err := filepath.Walk(ks.folder, fn); err != nil {
		return nil, fmt.Errorf("walking keystore: %w", err)
	}

	return names, nil
}

// path forms the file path for the named wallet.
func (ks *Keystore) path(name string) string {
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(ks.folder, name)
}
