package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"privscore/config"
	"privscore/core/types"
	"privscore/custody"
	"privscore/gateway"
	nativecommon "privscore/native/common"
	"privscore/native/credit"
	"privscore/native/disclosure"
	"privscore/native/lending"
	"privscore/observability/logging"
	"privscore/oracle"
	"privscore/state"
	"privscore/storage"
	"privscore/zkproof"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup("privscored", cfg.Environment)

	if err := run(cfg, logger); err != nil {
		logger.Error("node failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	var db storage.Database
	if cfg.DataDir == "" {
		db = storage.NewMemDB()
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		bolt, err := storage.NewBoltDB(filepath.Join(cfg.DataDir, "ledger.db"))
		if err != nil {
			return fmt.Errorf("open ledger db: %w", err)
		}
		db = bolt
	}
	defer db.Close()

	manager := state.NewManager(db)
	pauses := nativecommon.NewPauses(cfg.PausedModules...)

	emit := func(evt *types.Event) {
		logger.Info("event", "type", evt.Type, "attributes", evt.Attributes)
	}

	creditLedger := credit.NewLedger(manager)
	creditLedger.SetEmitter(emit)
	disclosureLedger := disclosure.NewLedger(manager)
	disclosureLedger.SetEmitter(emit)
	custodyLedger := custody.NewLedger(manager)

	engine := lending.NewEngine(custodyLedger)
	engine.SetState(lending.NewState(manager))
	engine.SetOracle(oracle.NewCustodyBacked(custodyLedger.BalanceOf))
	engine.SetPauses(pauses)
	engine.SetLoanDuration(cfg.LoanDuration)
	engine.SetEmitter(emit)

	switch cfg.VerifierMode {
	case config.VerifierGroth16:
		verifier, err := zkproof.LoadGroth16Verifier(cfg.VerifyingKeyPath)
		if err != nil {
			return err
		}
		engine.SetVerifier(verifier)
	default:
		logger.Warn("static proof verifier enabled, do not use in production")
		engine.SetVerifier(zkproof.Static{Result: true})
	}

	server, err := gateway.NewServer(creditLedger, disclosureLedger, engine, logger)
	if err != nil {
		return err
	}

	root := chi.NewRouter()
	root.Mount("/", server.Router())
	root.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
