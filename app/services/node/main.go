package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/corechain/ledger/app/services/node/handlers"
	"github.com/corechain/ledger/foundation/events"
	"github.com/corechain/ledger/foundation/ledger/database"
	"github.com/corechain/ledger/foundation/ledger/genesis"
	"github.com/corechain/ledger/foundation/ledger/state"
	"github.com/corechain/ledger/foundation/ledger/storage/boltdb"
	"github.com/corechain/ledger/foundation/ledger/storage/memory"
	"github.com/corechain/ledger/foundation/ledger/wallet"
	"github.com/corechain/ledger/foundation/ledger/worker"
	"github.com/corechain/ledger/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Node struct {
			Beneficiary string `conf:"default:miner1"`
			DBPath      string `conf:"default:zblock/chain.db"`
			GenesisPath string `conf:"default:zblock/genesis.json"`
			MemFallback bool   `conf:"default:false"`
		}
		Keystore struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Keystore Support

	// The keystore holds the named private keys the node has custody over,
	// including the beneficiary key that collects mining rewards.
	ks, err := wallet.NewKeystore(cfg.Keystore.Folder)
	if err != nil {
		return fmt.Errorf("unable to open keystore: %w", err)
	}

	names, err := ks.Names()
	if err != nil {
		return fmt.Errorf("unable to read keystore: %w", err)
	}
	for account, name := range names {
		log.Infow("startup", "status", "keystore", "name", name, "account", account)
	}

	// Load (or create on first run) the beneficiary wallet so the account can
	// be credited with mining rewards and fees.
	beneficiary, err := ks.Load(cfg.Node.Beneficiary)
	if err != nil {
		log.Infow("startup", "status", "creating beneficiary wallet", "name", cfg.Node.Beneficiary)
		beneficiary, err = ks.Create(cfg.Node.Beneficiary)
		if err != nil {
			return fmt.Errorf("unable to create beneficiary wallet: %w", err)
		}
	}

	// =========================================================================
	// Ledger Engine Support

	gen, err := genesis.Load(cfg.Node.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis file: %w", err)
	}

	// Open the durable chain store. The memory fallback is opt-in and runs
	// the node without durability, so it is called out loudly in the logs.
	var storage database.Storage
	store, err := boltdb.New(cfg.Node.DBPath)
	switch {
	case err == nil:
		storage = store

	case cfg.Node.MemFallback:
		log.Errorw("startup", "status", "CHAIN STORE UNAVAILABLE, RUNNING IN MEMORY, NOTHING WILL BE PERSISTED", "ERROR", err)
		storage, err = memory.New()
		if err != nil {
			return fmt.Errorf("unable to open memory store: %w", err)
		}

	default:
		return fmt.Errorf("unable to open chain store: %w", err)
	}

	// The engine packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value represents the ledger engine. It manages the chain,
	// the pending pool, and the balance view, and provides an API for
	// application support.
	st, err := state.New(state.Config{
		BeneficiaryID: beneficiary.AccountID(),
		Genesis:       gen,
		Storage:       storage,
		EvHandler:     ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	// The store's head pointer (re-derived if missing or stale) must agree
	// with the tip the replay produced.
	if store != nil {
		head, err := store.Head()
		if err != nil {
			return fmt.Errorf("reading chain store head: %w", err)
		}
		if head != st.LatestBlock().Header.Number {
			return fmt.Errorf("chain store head %d disagrees with replayed tip %d", head, st.LatestBlock().Header.Number)
		}
	}

	log.Infow("startup", "status", "chain replayed", "latest", st.LatestBlock().Header.Number, "beneficiary", beneficiary.AccountID())

	// The worker runs the background mining workflow and registers itself
	// with the state.
	worker.Run(st, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	debugMux := handlers.DebugMux(build, log, st)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Keystore: ks,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
