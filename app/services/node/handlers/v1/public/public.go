// Package public maintains the group of handlers for public node access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/corechain/ledger/business/web/errs"
	"github.com/corechain/ledger/foundation/events"
	"github.com/corechain/ledger/foundation/ledger/database"
	"github.com/corechain/ledger/foundation/ledger/state"
	"github.com/corechain/ledger/foundation/ledger/wallet"
	"github.com/corechain/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	State    *state.State
	Keystore *wallet.Keystore
	Evts     *events.Events
	WS       websocket.Upgrader
}

// =============================================================================
// Wallet

// GenerateWallet creates a new named wallet in the node's keystore.
func (h Handlers) GenerateWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var app generateWallet
	if err := web.Decode(r, &app); err != nil {
		return err
	}

	wlt, err := h.Keystore.Create(app.Name)
	if err != nil {
		return fmt.Errorf("creating wallet: %w", err)
	}

	resp := walletInfo{
		Name:      app.Name,
		AccountID: string(wlt.AccountID()),
		PublicKey: wlt.PublicKeyHex(),
	}
	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// ImportWallet stores an existing private key as a named wallet in the
// node's keystore.
func (h Handlers) ImportWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var app importWallet
	if err := web.Decode(r, &app); err != nil {
		return err
	}

	wlt, err := h.Keystore.Import(app.Name, app.PrivateKey)
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidKey) {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		return fmt.Errorf("importing wallet: %w", err)
	}

	resp := walletInfo{
		Name:      app.Name,
		AccountID: string(wlt.AccountID()),
		PublicKey: wlt.PublicKeyHex(),
	}
	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// SubmitTransaction builds and signs a transaction from a keystore wallet
// and places it into the pending pool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var app submitTransaction
	if err := web.Decode(r, &app); err != nil {
		return err
	}

	fromID, err := database.ToAccountID(app.From)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	toID, err := database.ToAccountID(app.To)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	wlt, err := h.Keystore.LookupAccount(fromID)
	if err != nil {
		if errors.Is(err, wallet.ErrUnknownAccount) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("looking up wallet: %w", err)
	}

	signedTx, err := wlt.CreateTransaction(toID, app.Value, app.Fee)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := h.State.SubmitTransaction(signedTx); err != nil {
		return trusted(err)
	}

	names, _ := h.Keystore.Names()
	return web.Respond(ctx, w, toTx(signedTx, names), http.StatusCreated)
}

// =============================================================================
// Mining

// Mine signals the background worker to mine the pending transactions. With
// ?wait=true the block is mined on this request and returned.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if r.URL.Query().Get("wait") != "true" {
		h.State.Worker.SignalStartMining()

		resp := struct {
			Status string `json:"status"`
		}{
			Status: "mining signalled",
		}
		return web.Respond(ctx, w, resp, http.StatusAccepted)
	}

	blk, err := h.State.MinePendingTransactions(ctx)
	if err != nil {
		return trusted(err)
	}

	names, _ := h.Keystore.Names()
	return web.Respond(ctx, w, toBlock(blk, names), http.StatusCreated)
}

// =============================================================================
// Chain queries

// Genesis returns the genesis information the chain was started with.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Genesis(), http.StatusOK)
}

// Blockchain returns every block on the chain from block 1 to the tip.
func (h Handlers) Blockchain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	names, _ := h.Keystore.Names()

	blocks := []block{}
	if h.State.LatestBlock().Header.Number > 0 {
		for _, dbBlock := range h.State.BlocksByNumber(1, state.QueryLatest) {
			blocks = append(blocks, toBlock(dbBlock, names))
		}
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// LatestBlock returns the block at the tip of the chain.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.LatestBlock()
	if latest.Header.Number == 0 {
		return errs.NewTrusted(errors.New("chain is empty"), http.StatusNotFound)
	}

	names, _ := h.Keystore.Names()
	return web.Respond(ctx, w, toBlock(latest, names), http.StatusOK)
}

// BlockByNumber returns the block stored under the specified number.
func (h Handlers) BlockByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	number, err := strconv.ParseUint(web.Param(r, "number"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid block number: %w", err), http.StatusBadRequest)
	}

	blocks := h.State.BlocksByNumber(number, number)
	if len(blocks) == 0 {
		return errs.NewTrusted(fmt.Errorf("block %d not found", number), http.StatusNotFound)
	}

	names, _ := h.Keystore.Names()
	return web.Respond(ctx, w, toBlock(blocks[0], names), http.StatusOK)
}

// ValidateChain runs the full chain integrity audit.
func (h Handlers) ValidateChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := validateResult{
		Valid:  true,
		Blocks: h.State.LatestBlock().Header.Number,
	}

	if err := h.State.ValidateChain(); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
		return web.Respond(ctx, w, resp, http.StatusConflict)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Balance returns the confirmed balance for the specified account.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := database.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	names, _ := h.Keystore.Names()

	resp := balance{
		Account: string(accountID),
		Name:    names[accountID],
		Balance: h.State.Balance(accountID),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Transactions returns the confirmed transaction history for the specified
// account, oldest first.
func (h Handlers) Transactions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := database.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	history, err := h.State.TransactionHistory(accountID)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	names, _ := h.Keystore.Names()

	txs := make([]tx, len(history))
	for i, signedTx := range history {
		txs[i] = toTx(signedTx, names)
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}

// Mempool returns the pending transactions in arrival order.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	names, _ := h.Keystore.Names()

	txs := []tx{}
	for _, signedTx := range h.State.Mempool() {
		txs = append(txs, toTx(signedTx, names))
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}

// =============================================================================
// Events

// Events upgrades the connection to a websocket and streams engine events
// to the client until it disconnects.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v := web.GetValues(ctx)

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	h.Log.Infow("events", "traceid", v.TraceID, "status", "websocket open")
	defer h.Log.Infow("events", "traceid", v.TraceID, "status", "websocket closed")

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	for msg := range ch {
		if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return nil
		}
	}

	return nil
}

// =============================================================================

// trusted maps the engine's sentinel errors to trusted web errors so the
// client sees a proper status code instead of a 500.
func trusted(err error) error {
	switch {
	case errors.Is(err, state.ErrInvalidTransaction):
		return errs.NewTrusted(err, http.StatusBadRequest)
	case errors.Is(err, state.ErrInsufficientBalance):
		return errs.NewTrusted(err, http.StatusBadRequest)
	case errors.Is(err, state.ErrDuplicateTransaction):
		return errs.NewTrusted(err, http.StatusConflict)
	case errors.Is(err, state.ErrNoTransactions):
		return errs.NewTrusted(err, http.StatusBadRequest)
	case errors.Is(err, state.ErrChainTipMoved):
		return errs.NewTrusted(err, http.StatusConflict)
	}

	return err
}
