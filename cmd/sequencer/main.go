package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/odyzzey/zk-accumulator-demo/config"
	"github.com/odyzzey/zk-accumulator-demo/crypto/ethereum"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/sequencer"
	"github.com/odyzzey/zk-accumulator-demo/service"
	"github.com/odyzzey/zk-accumulator-demo/storage"
	"go.vocdoni.io/dvote/db/metadb"
)

const (
	artifactsTimeout = 30 * time.Minute
	monitorInterval  = 10 * time.Second
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel, cfg.LogOutput, nil)
	log.Infow("starting sequencer",
		"datadir", cfg.DataDir,
		"api", fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort),
		"batchSize", cfg.BatchSize,
		"batchTimeWindow", cfg.BatchTimeWindow.String(),
		"workers", cfg.Workers,
	)

	database, err := metadb.New(cfg.DBType, cfg.DatabaseDir())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	stg := storage.New(database)
	defer stg.Close()

	artifacts, err := service.PrepareArtifacts(cfg.ArtifactsDir, artifactsTimeout)
	if err != nil {
		log.Fatalf("failed to prepare circuit artifacts: %v", err)
	}

	keys, retired, err := service.LoadProverKeys(stg, cfg.ProverKeys, cfg.Workers)
	if err != nil {
		log.Fatal(err)
	}
	authorized, err := authorizedProvers(cfg.AuthorizedProvers)
	if err != nil {
		log.Fatal(err)
	}
	// receipts signed by provers of a previous run are still queued
	authorized = append(authorized, retired...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	seq, err := service.NewSequencer(stg, artifacts, sequencer.Config{
		BatchSize:         cfg.BatchSize,
		BatchTimeWindow:   cfg.BatchTimeWindow,
		TickInterval:      cfg.TickInterval,
		Workers:           cfg.Workers,
		ProverKeys:        keys,
		AuthorizedProvers: authorized,
	})
	if err != nil {
		log.Fatal(err)
	}

	// contracts stored before the restart are registered before the
	// processors start
	monitor := service.NewContractMonitor(stg, seq.Sequencer, monitorInterval)
	if err := monitor.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer monitor.Stop()

	if err := seq.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer seq.Stop()

	api := service.NewAPI(stg, seq.Sequencer, cfg.APIHost, cfg.APIPort)
	if err := api.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer api.Stop()
	for _, addr := range seq.Sequencer.Provers() {
		log.Infow("local prover", "address", addr.Hex())
	}

	<-ctx.Done()
	log.Infow("shutting down")
}

func authorizedProvers(addrs []string) ([]common.Address, error) {
	var out []common.Address
	for _, a := range addrs {
		addr, err := ethereum.HexToAddress(a)
		if err != nil {
			return nil, fmt.Errorf("invalid authorized prover %q: %w", a, err)
		}
		out = append(out, addr)
	}
	return out, nil
}
