// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/corechain/ledger/app/services/node/handlers/v1/public"
	"github.com/corechain/ledger/foundation/events"
	"github.com/corechain/ledger/foundation/ledger/state"
	"github.com/corechain/ledger/foundation/ledger/wallet"
	"github.com/corechain/ledger/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log      *zap.SugaredLogger
	State    *state.State
	Keystore *wallet.Keystore
	Evts     *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:      cfg.Log,
		State:    cfg.State,
		Keystore: cfg.Keystore,
		Evts:     cfg.Evts,
	}

	app.Handle(http.MethodPost, version, "/wallet/generate", pbl.GenerateWallet)
	app.Handle(http.MethodPost, version, "/wallet/import", pbl.ImportWallet)
	app.Handle(http.MethodPost, version, "/wallet/transaction", pbl.SubmitTransaction)

	app.Handle(http.MethodPost, version, "/mine", pbl.Mine)

	app.Handle(http.MethodGet, version, "/blockchain", pbl.Blockchain)
	app.Handle(http.MethodGet, version, "/blockchain/latest", pbl.LatestBlock)
	app.Handle(http.MethodGet, version, "/blockchain/block/:number", pbl.BlockByNumber)
	app.Handle(http.MethodGet, version, "/blockchain/validate", pbl.ValidateChain)

	app.Handle(http.MethodGet, version, "/balance/:account", pbl.Balance)
	app.Handle(http.MethodGet, version, "/transactions/:account", pbl.Transactions)
	app.Handle(http.MethodGet, version, "/mempool", pbl.Mempool)
	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis)

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
}
