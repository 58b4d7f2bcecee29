package public

import (
	"github.com/corechain/ledger/business/sys/validate"
	"github.com/corechain/ledger/foundation/ledger/database"
)

// generateWallet is the request to create a new named wallet in the node's
// keystore.
type generateWallet struct {
	Name string `json:"name" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (app generateWallet) Validate() error {
	return validate.Check(app)
}

// importWallet is the request to import an existing private key into the
// node's keystore.
type importWallet struct {
	Name       string `json:"name" validate:"required"`
	PrivateKey string `json:"private_key" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (app importWallet) Validate() error {
	return validate.Check(app)
}

// walletInfo is the response for wallet creation and import.
type walletInfo struct {
	Name      string `json:"name"`
	AccountID string `json:"account_id"`
	PublicKey string `json:"public_key"`
}

// submitTransaction is the request to build, sign, and submit a transaction
// from a wallet held in the node's keystore.
type submitTransaction struct {
	From  string `json:"from" validate:"required"`
	To    string `json:"to" validate:"required"`
	Value uint64 `json:"value" validate:"required,gt=0"`
	Fee   uint64 `json:"fee"`
}

// Validate checks the data in the model is considered clean.
func (app submitTransaction) Validate() error {
	return validate.Check(app)
}

// tx is the response form of a confirmed or pending transaction.
type tx struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	FromName  string `json:"from_name,omitempty"`
	To        string `json:"to"`
	ToName    string `json:"to_name,omitempty"`
	Value     uint64 `json:"value"`
	Fee       uint64 `json:"fee"`
	TimeStamp uint64 `json:"timestamp"`
	Hash      string `json:"hash"`
	Sig       string `json:"sig,omitempty"`
}

// toTx converts a signed transaction to its response form, resolving account
// names from the keystore when known.
func toTx(signedTx database.SignedTx, names map[database.AccountID]string) tx {
	return tx{
		ID:        signedTx.ID,
		From:      string(signedTx.FromID),
		FromName:  names[signedTx.FromID],
		To:        string(signedTx.ToID),
		ToName:    names[signedTx.ToID],
		Value:     signedTx.Value,
		Fee:       signedTx.Fee,
		TimeStamp: signedTx.TimeStamp,
		Hash:      signedTx.TxHash,
		Sig:       signedTx.Sig,
	}
}

// block is the response form of a block on the chain.
type block struct {
	Hash          string `json:"hash"`
	Number        uint64 `json:"number"`
	PrevBlockHash string `json:"prev_block_hash"`
	TimeStamp     uint64 `json:"timestamp"`
	TransRoot     string `json:"trans_root"`
	Difficulty    uint16 `json:"difficulty"`
	Nonce         uint64 `json:"nonce"`
	MiningTime    string `json:"mining_time"`
	Trans         []tx   `json:"trans"`
}

// toBlock converts a database block to its response form.
func toBlock(dbBlock database.Block, names map[database.AccountID]string) block {
	trans := dbBlock.Trans.Values()

	txs := make([]tx, len(trans))
	for i, signedTx := range trans {
		txs[i] = toTx(signedTx, names)
	}

	return block{
		Hash:          dbBlock.Hash(),
		Number:        dbBlock.Header.Number,
		PrevBlockHash: dbBlock.Header.PrevBlockHash,
		TimeStamp:     dbBlock.Header.TimeStamp,
		TransRoot:     dbBlock.Header.TransRoot,
		Difficulty:    dbBlock.Header.Difficulty,
		Nonce:         dbBlock.Header.Nonce,
		MiningTime:    dbBlock.MiningTime.String(),
		Trans:         txs,
	}
}

// balance is the response for a single account balance.
type balance struct {
	Account string `json:"account"`
	Name    string `json:"name,omitempty"`
	Balance uint64 `json:"balance"`
}

// validateResult is the response for a full chain validation.
type validateResult struct {
	Valid  bool   `json:"valid"`
	Blocks uint64 `json:"blocks"`
	Error  string `json:"error,omitempty"`
}
